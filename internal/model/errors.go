package model

import (
	"errors"
	"fmt"
)

// ErrEmptyInput 表示入站文本为空或只包含空白，无法分类。
var ErrEmptyInput = errors.New("empty input")

// BackendError 表示聊天或新闻后端调用失败。Status 为 0 表示请求未得到 HTTP 响应（网络错误或超时）。
type BackendError struct {
	Service string
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s backend error: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s backend error: status %d: %s", e.Service, e.Status, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }

// DeliveryError 表示向某个用户推送消息失败。
type DeliveryError struct {
	UserID  string
	Status  int
	Message string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("delivery to %s failed: %s", e.UserID, e.Message)
	}
	return fmt.Sprintf("delivery to %s failed: status %d: %s", e.UserID, e.Status, e.Message)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
