package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"line-gpt-go/pkg/log"
	"line-gpt-go/pkg/tasks"
)

// NewsScheduler 每天在固定时间发布一条新闻广播任务。
type NewsScheduler struct {
	cron      *cron.Cron
	publisher TaskPublisher
	timeout   time.Duration
}

// DailySpec 把 "HH:MM" 转换为 cron 表达式。
func DailySpec(clock string) (string, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("无效的推送时间 %q: %w", clock, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// NewNewsScheduler 创建调度器，timeout 限制单次任务的发布与执行时间。
func NewNewsScheduler(clock string, publisher TaskPublisher, timeout time.Duration) (*NewsScheduler, error) {
	spec, err := DailySpec(clock)
	if err != nil {
		return nil, err
	}
	s := &NewsScheduler{
		cron:      cron.New(),
		publisher: publisher,
		timeout:   timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.Trigger); err != nil {
		return nil, fmt.Errorf("注册定时任务失败: %w", err)
	}
	log.Infof("每日新闻推送已安排在 %s", clock)
	return s, nil
}

// Trigger 发布一次新闻广播任务。
func (s *NewsScheduler) Trigger() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	task := tasks.NewBroadcastTask(tasks.KindNews, "", nil)
	if err := s.publisher.Publish(ctx, task); err != nil {
		log.Errorf("发布新闻广播任务失败: ID=%s, Error: %v", task.ID, err)
		return
	}
	log.Infof("已发布新闻广播任务: ID=%s", task.ID)
}

// Start 在后台启动调度。
func (s *NewsScheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束。
func (s *NewsScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
