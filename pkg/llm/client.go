// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
	"line-gpt-go/pkg/log"
)

// EmptyResponseText 在模型返回空内容时代替回复。
const EmptyResponseText = "I apologize, but I couldn't generate a response. Please try again."

// maxResponseBytes 限制读取的响应体大小
const maxResponseBytes = 1 << 20

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 以 role-based 消息与可选生成参数调用聊天接口，返回助手回复文本。
	// 失败时返回 *model.BackendError。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client for an OpenAI-compatible endpoint.
// 超时由调用方通过 ctx 控制。
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为，nil 字段不会出现在请求中
type GenerationParams struct {
	Model            string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Stream           bool      `json:"stream"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParamsFromConfig 把配置中的生成参数转换为 GenerationParams。
// 未配置的浮点参数与为 0 的 max_tokens 不会出现在请求中。
func ParamsFromConfig(cfg config.LLMConfig) *GenerationParams {
	gp := GenerationParams{
		Model:            cfg.Model,
		Temperature:      copyFloat(cfg.Generation.Temperature),
		TopP:             copyFloat(cfg.Generation.TopP),
		PresencePenalty:  copyFloat(cfg.Generation.PresencePenalty),
		FrequencyPenalty: copyFloat(cfg.Generation.FrequencyPenalty),
	}
	if cfg.Generation.MaxTokens != 0 {
		m := cfg.Generation.MaxTokens
		gp.MaxTokens = &m
	}
	return &gp
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Complete calls the chat completions API and returns the first choice.
func (c *openAICompatibleClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   false,
	}
	if gen == nil {
		gen = ParamsFromConfig(c.cfg)
	}
	if gen.Model != "" {
		reqBody.Model = gen.Model
	}
	reqBody.Temperature = gen.Temperature
	reqBody.TopP = gen.TopP
	reqBody.MaxTokens = gen.MaxTokens
	reqBody.PresencePenalty = gen.PresencePenalty
	reqBody.FrequencyPenalty = gen.FrequencyPenalty

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	log.Debugf("[LLMClient] 调用聊天接口, model: %s, messages: %d", reqBody.Model, len(messages))
	resp, err := c.client.Do(req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return "", &model.BackendError{Service: "llm", Message: msg, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &model.BackendError{Service: "llm", Status: resp.StatusCode, Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", &model.BackendError{Service: "llm", Status: resp.StatusCode, Message: msg}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", &model.BackendError{Service: "llm", Status: resp.StatusCode, Message: "failed to decode chat response", Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &model.BackendError{Service: "llm", Status: resp.StatusCode, Message: "chat response has no choices"}
	}

	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		log.Warnf("[LLMClient] 模型返回了空内容, 使用兜底文本")
		content = EmptyResponseText
	}
	return content, nil
}
