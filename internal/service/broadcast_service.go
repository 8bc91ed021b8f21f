package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"line-gpt-go/internal/model"
	"line-gpt-go/pkg/log"
)

// Pusher 向单个用户主动推送一条文本消息，返回 HTTP 状态码。
type Pusher interface {
	Push(ctx context.Context, userID, text string) (int, error)
}

// BroadcastService 把同一条消息分发给多个用户。
type BroadcastService interface {
	// Broadcast 为每个接收者返回一条结果，顺序与输入一致。单个接收者失败不影响其他接收者。
	Broadcast(ctx context.Context, userIDs []string, message string) model.BroadcastReport
}

type broadcastService struct {
	pusher      Pusher
	concurrency int
	timeout     time.Duration
}

// NewBroadcastService 创建一个新的 BroadcastService。
func NewBroadcastService(pusher Pusher, concurrency int, timeout time.Duration) BroadcastService {
	if concurrency <= 0 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = defaultBackendTimeout
	}
	return &broadcastService{pusher: pusher, concurrency: concurrency, timeout: timeout}
}

func (s *broadcastService) Broadcast(ctx context.Context, userIDs []string, message string) model.BroadcastReport {
	results := make([]model.DeliveryResult, len(userIDs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, userID := range userIDs {
		i, userID := i, userID
		g.Go(func() error {
			results[i] = s.deliver(ctx, userID, message)
			// 不返回错误，保证一个接收者失败不会取消其他投递
			return nil
		})
	}
	_ = g.Wait()

	report := model.BroadcastReport{Message: message, Attempted: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			report.Succeeded++
		}
	}
	log.Infow("广播完成", "attempted", report.Attempted, "succeeded", report.Succeeded)
	return report
}

func (s *broadcastService) deliver(ctx context.Context, userID, message string) model.DeliveryResult {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.pusher.Push(callCtx, userID, message)
	if err == nil && status == http.StatusOK {
		return model.DeliveryResult{UserID: userID, Success: true, Status: status}
	}
	if err == nil {
		err = &model.DeliveryError{UserID: userID, Status: status, Message: http.StatusText(status)}
	}
	var de *model.DeliveryError
	if errors.As(err, &de) && de.Status != 0 {
		status = de.Status
	}
	log.Warnw("推送消息失败", "user", userID, "status", status, "error", err)
	return model.DeliveryResult{UserID: userID, Success: false, Status: status, Error: err.Error()}
}
