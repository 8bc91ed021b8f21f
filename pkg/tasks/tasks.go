// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastKind 区分广播任务的消息来源。
type BroadcastKind string

const (
	// KindNews 在处理时才拉取新闻，保证内容是最新的
	KindNews BroadcastKind = "news"
	KindText BroadcastKind = "text"
)

// BroadcastTask represents a message that should be pushed to a set of LINE users.
type BroadcastTask struct {
	ID         string        `json:"id"`
	Kind       BroadcastKind `json:"kind"`
	Message    string        `json:"message,omitempty"`
	Recipients []string      `json:"recipients,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewBroadcastTask 创建一个带有唯一 ID 的广播任务。
func NewBroadcastTask(kind BroadcastKind, message string, recipients []string) BroadcastTask {
	return BroadcastTask{
		ID:         uuid.NewString(),
		Kind:       kind,
		Message:    message,
		Recipients: recipients,
		CreatedAt:  time.Now(),
	}
}
