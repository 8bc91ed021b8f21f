package service

import (
	"context"

	"line-gpt-go/internal/model"
	"line-gpt-go/internal/repository"
	"line-gpt-go/pkg/log"
)

type exchangeRecorder struct {
	repo  repository.ExchangeRepository
	model string
}

// NewExchangeRecorder 创建把问答写入审计表的 ExchangeRecorder。
func NewExchangeRecorder(repo repository.ExchangeRepository, modelName string) ExchangeRecorder {
	return &exchangeRecorder{repo: repo, model: modelName}
}

// Record 写入失败只记录日志，不影响回复。
func (r *exchangeRecorder) Record(ctx context.Context, userID, question, answer string) {
	exchange := &model.Exchange{
		UserID:   userID,
		Question: question,
		Answer:   answer,
		Model:    r.model,
	}
	if err := r.repo.Create(exchange); err != nil {
		log.Errorf("[ExchangeRecorder] 写入问答记录失败, user: %s, error: %v", userID, err)
	}
}
