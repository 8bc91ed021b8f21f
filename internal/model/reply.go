package model

// Reply 是发给单个用户的出站消息。
type Reply struct {
	UserID  string      `json:"userId"`
	Text    string      `json:"text"`
	Command CommandKind `json:"-"`
	// Degraded 表示回复来自后端失败后的兜底文案
	Degraded bool `json:"degraded"`
}

// DeliveryResult 记录广播中单个接收者的投递结果。
type DeliveryResult struct {
	UserID  string `json:"userId"`
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Error   string `json:"error,omitempty"`
}

// BroadcastReport 汇总一次广播。
type BroadcastReport struct {
	Message   string           `json:"message"`
	Attempted int              `json:"attempted"`
	Succeeded int              `json:"succeeded"`
	Results   []DeliveryResult `json:"results"`
}
