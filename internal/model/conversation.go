// Package model 包含了应用的数据模型定义。
package model

import "time"

// Role 表示一条对话消息的角色。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn 代表会话中的单条消息，按插入顺序保存。
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn 以当前时间创建一条消息。
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now()}
}

// Conversation 是某个用户的完整消息历史。
type Conversation struct {
	UserID string `json:"userId"`
	Turns  []Turn `json:"turns"`
}

// Exchange 代表一次成功的问答交互，写入 MySQL 供管理员审计。
type Exchange struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"userId"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Model     string    `gorm:"type:varchar(64)" json:"model"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Exchange) TableName() string {
	return "exchanges"
}
