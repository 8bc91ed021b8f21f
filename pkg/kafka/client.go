// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"line-gpt-go/internal/config"
	"line-gpt-go/pkg/log"
	"line-gpt-go/pkg/tasks"
)

// maxAttempts 之后提交 offset，放弃该任务
const maxAttempts = 3

// retryBackoff 是同一任务两次尝试之间的基础等待时间，逐次翻倍
const retryBackoff = 2 * time.Second

// TaskProcessor defines the interface for any service that can process a broadcast task.
// This decouples the Kafka consumer from the concrete service implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.BroadcastTask) error
}

// Brokers 把逗号分隔的 broker 列表拆分为切片。
func Brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Producer 把广播任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(Brokers(cfg)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Publish 发送一个广播任务到 Kafka。
func (p *Producer) Publish(ctx context.Context, task tasks.BroadcastTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ID),
		Value: taskBytes,
	})
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

func attemptsKey(taskID string) string {
	return fmt.Sprintf("kafka:attempts:%s", taskID)
}

// StartConsumer 启动一个 Kafka 消费者来处理广播任务，直到 ctx 被取消。
// 失败的任务原地重试，rdb 用于跨重启记录失败次数，可以为 nil。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  Brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.BroadcastTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理广播任务: ID=%s, Kind=%s", task.ID, task.Kind)
		if err := processWithRetry(ctx, rdb, processor, task, retryBackoff); err != nil {
			if ctx.Err() != nil {
				// 关闭过程中不提交，重启后该消息会被重新投递
				break
			}
			log.Errorf("广播任务多次失败(>=%d)，提交 offset 终止重试: ID=%s, Error: %v", maxAttempts, task.ID, err)
		} else {
			log.Infof("广播任务处理成功: ID=%s", task.ID)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// processWithRetry 在原地重试同一个任务，直到成功或达到 maxAttempts，ctx 取消时立即返回。
// 读取器不会重新投递未提交的消息，所以重试必须在这里完成。
func processWithRetry(ctx context.Context, rdb *redis.Client, processor TaskProcessor, task tasks.BroadcastTask, backoff time.Duration) error {
	wait := backoff
	for attempt := 1; ; attempt++ {
		err := processor.Process(ctx, task)
		if err == nil {
			if rdb != nil {
				_ = rdb.Del(ctx, attemptsKey(task.ID)).Err()
			}
			return nil
		}
		log.Errorf("处理广播任务失败: ID=%s, attempt=%d, Error: %v", task.ID, attempt, err)
		if shouldGiveUp(ctx, rdb, task.ID, attempt) {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
}

// shouldGiveUp 使用 Redis 计数失败次数，达到阈值后返回 true。
// Redis 计数在进程重启后依然有效；rdb 为 nil 或 Redis 异常时退回本地计数 attempt。
func shouldGiveUp(ctx context.Context, rdb *redis.Client, taskID string, attempt int) bool {
	if rdb == nil {
		return attempt >= maxAttempts
	}
	key := attemptsKey(taskID)
	attempts, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Warnf("记录广播任务失败次数失败: ID=%s, Error: %v", taskID, err)
		return attempt >= maxAttempts
	}
	_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts >= maxAttempts
}
