// Package command 把入站文本解析为结构化的 Command。
package command

import (
	"strings"

	"line-gpt-go/internal/model"
)

const (
	chatPrefix = "/chat "
	resetCmd   = "/reset"
	newsCmd    = "/news"
	helpCmd    = "/help"
)

// Classify 按顺序匹配，第一个命中的规则生效，前缀比较区分大小写。
// 未识别的斜杠命令按普通消息处理，空白输入返回 model.ErrEmptyInput。
func Classify(raw string) (model.Command, error) {
	if strings.TrimSpace(raw) == "" {
		return model.Command{}, model.ErrEmptyInput
	}

	switch {
	case strings.HasPrefix(raw, chatPrefix):
		return model.Chat(strings.TrimSpace(raw[len(chatPrefix):])), nil
	case strings.HasPrefix(raw, resetCmd) && strings.TrimSpace(raw[len(resetCmd):]) == "":
		return model.Reset(), nil
	case raw == newsCmd:
		return model.News(), nil
	case raw == helpCmd:
		return model.Help(), nil
	default:
		return model.PlainMessage(raw), nil
	}
}

// HelpEntry 描述一条受支持的命令。
type HelpEntry struct {
	Name        string
	Usage       string
	Description string
}

var helpEntries = []HelpEntry{
	{Name: "chat", Usage: "/chat [message]", Description: "Chat with the AI assistant"},
	{Name: "reset", Usage: "/reset", Description: "Reset your conversation history"},
	{Name: "news", Usage: "/news", Description: "Get the latest financial news"},
	{Name: "help", Usage: "/help", Description: "Show this help message"},
}

// HelpEntries 返回受支持命令的副本。
func HelpEntries() []HelpEntry {
	out := make([]HelpEntry, len(helpEntries))
	copy(out, helpEntries)
	return out
}

// HelpText 把命令列表渲染为一条文本消息。
func HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, e := range helpEntries {
		b.WriteString("\n")
		b.WriteString(e.Usage)
		b.WriteString(" - ")
		b.WriteString(e.Description)
	}
	return b.String()
}
