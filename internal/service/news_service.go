package service

import (
	"context"
	"fmt"

	"line-gpt-go/internal/model"
	"line-gpt-go/pkg/log"
	"line-gpt-go/pkg/tasks"
)

// TaskPublisher 投递广播任务，Kafka 生产者与进程内执行器都实现该接口。
type TaskPublisher interface {
	Publish(ctx context.Context, task tasks.BroadcastTask) error
}

// NewsService 负责把财经新闻推送给已登记的接收者，同时是广播任务的处理器。
type NewsService interface {
	// SendNow 立即获取新闻并推送给 recipients，为空时使用配置的接收者。
	SendNow(ctx context.Context, recipients []string) (model.BroadcastReport, error)
	// Process 执行一个广播任务。只有新闻获取失败时返回错误，部分投递失败只记录日志。
	Process(ctx context.Context, task tasks.BroadcastTask) error
}

type newsService struct {
	dispatcher Dispatcher
	recipients []string
}

// NewNewsService 创建一个新的 NewsService。
func NewNewsService(dispatcher Dispatcher, recipients []string) NewsService {
	return &newsService{dispatcher: dispatcher, recipients: recipients}
}

func (s *newsService) resolve(recipients []string) []string {
	if len(recipients) > 0 {
		return recipients
	}
	return s.recipients
}

func (s *newsService) SendNow(ctx context.Context, recipients []string) (model.BroadcastReport, error) {
	recipients = s.resolve(recipients)
	if len(recipients) == 0 {
		log.Warnf("没有配置推送用户，跳过新闻推送")
		return model.BroadcastReport{Results: []model.DeliveryResult{}}, nil
	}
	digest, err := s.dispatcher.NewsDigest(ctx)
	if err != nil {
		return model.BroadcastReport{}, fmt.Errorf("获取新闻失败: %w", err)
	}
	return s.dispatcher.Broadcast(ctx, recipients, digest), nil
}

func (s *newsService) Process(ctx context.Context, task tasks.BroadcastTask) error {
	switch task.Kind {
	case tasks.KindNews:
		report, err := s.SendNow(ctx, task.Recipients)
		if err != nil {
			return err
		}
		log.Infow("新闻任务完成", "task", task.ID, "attempted", report.Attempted, "succeeded", report.Succeeded)
		return nil
	case tasks.KindText:
		recipients := s.resolve(task.Recipients)
		report := s.dispatcher.Broadcast(ctx, recipients, task.Message)
		log.Infow("文本广播任务完成", "task", task.ID, "attempted", report.Attempted, "succeeded", report.Succeeded)
		return nil
	default:
		// 无法识别的任务重试也不会成功，直接丢弃
		log.Warnf("未知的广播任务类型: %s, ID=%s", task.Kind, task.ID)
		return nil
	}
}

// InlinePublisher 在没有配置 Kafka 时直接在当前进程内执行任务。
type InlinePublisher struct {
	Processor interface {
		Process(ctx context.Context, task tasks.BroadcastTask) error
	}
}

func (p InlinePublisher) Publish(ctx context.Context, task tasks.BroadcastTask) error {
	return p.Processor.Process(ctx, task)
}
