// Package news 提供了财经新闻源（Financial Modeling Prep）的客户端。
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
)

// Client 定义了新闻源的接口。
type Client interface {
	// FetchLatest 返回最新的新闻，失败时返回 *model.BackendError。
	FetchLatest(ctx context.Context) ([]model.NewsItem, error)
}

type fmpClient struct {
	cfg    config.NewsConfig
	client *http.Client
}

// NewClient 创建一个新的新闻客户端实例。超时由调用方通过 ctx 控制。
func NewClient(cfg config.NewsConfig) Client {
	return &fmpClient{cfg: cfg, client: &http.Client{}}
}

// FetchLatest 调用 stock_news 接口。
func (c *fmpClient) FetchLatest(ctx context.Context) ([]model.NewsItem, error) {
	limit := c.cfg.Limit
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("apikey", c.cfg.APIKey)
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/v3/stock_news?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("创建新闻请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return nil, &model.BackendError{Service: "news", Message: msg, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &model.BackendError{Service: "news", Status: resp.StatusCode, Message: string(body)}
	}

	var items []model.NewsItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &model.BackendError{Service: "news", Status: resp.StatusCode, Message: "failed to decode news response", Err: err}
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// NoNewsText 在新闻源没有返回任何条目时使用。
const NoNewsText = "No financial news available at the moment. Please try again later."

// Format 把新闻渲染为一条 LINE 文本消息。
func Format(items []model.NewsItem) string {
	if len(items) == 0 {
		return NoNewsText
	}
	var b strings.Builder
	b.WriteString("📈 Today's Financial News 📉\n\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Title)
		if item.Site != "" || item.PublishedDate != "" {
			fmt.Fprintf(&b, "   %s - %s\n", item.Site, item.PublishedDate)
		}
		if item.URL != "" {
			fmt.Fprintf(&b, "   %s\n", item.URL)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
