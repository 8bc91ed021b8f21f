package service

import (
	"context"
	"errors"
	"fmt"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
	"line-gpt-go/internal/repository"
	"line-gpt-go/pkg/hash"
	"line-gpt-go/pkg/token"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAdminDisabled 表示没有配置管理员密码
	ErrAdminDisabled = errors.New("admin login disabled")
	// ErrAuditDisabled 表示没有配置 MySQL，审计记录不可用
	ErrAuditDisabled = errors.New("exchange audit disabled")
)

// DebugInfo 是调试接口返回的运行状态，只暴露密钥长度而不暴露内容。
type DebugInfo struct {
	UsersWithHistory    []string `json:"usersWithHistory"`
	Recipients          []string `json:"recipients"`
	Model               string   `json:"model"`
	LineTokenLength     int      `json:"lineTokenLength"`
	LineSecretLength    int      `json:"lineSecretLength"`
	LLMKeyLength        int      `json:"llmKeyLength"`
	NewsKeyLength       int      `json:"newsKeyLength"`
	NewsSchedule        string   `json:"newsSchedule"`
	AuditedUsers        int64    `json:"auditedUsers"`
	ConversationBackend string   `json:"conversationBackend"`
}

// ExchangeView 是审计记录的展示结构。
type ExchangeView struct {
	ID        uint            `json:"id"`
	UserID    string          `json:"userId"`
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	Model     string          `json:"model"`
	CreatedAt model.LocalTime `json:"createdAt"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	Login(username, password string) (string, error)
	DebugInfo(ctx context.Context) (DebugInfo, error)
	ListExchanges(filter repository.ExchangeFilter) ([]ExchangeView, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	cfg           config.Config
	conversations ConversationService
	exchangeRepo  repository.ExchangeRepository
	jwtManager    *token.JWTManager
}

// NewAdminService 创建一个新的 AdminService 实例。exchangeRepo 可以为 nil。
func NewAdminService(cfg config.Config, conversations ConversationService, exchangeRepo repository.ExchangeRepository, jwtManager *token.JWTManager) AdminService {
	return &adminService{
		cfg:           cfg,
		conversations: conversations,
		exchangeRepo:  exchangeRepo,
		jwtManager:    jwtManager,
	}
}

// Login 校验管理员凭证并签发 access token。
func (s *adminService) Login(username, password string) (string, error) {
	if s.cfg.Admin.PasswordHash == "" || s.cfg.JWT.Secret == "" {
		return "", ErrAdminDisabled
	}
	if username != s.cfg.Admin.Username || !hash.CheckPasswordHash(password, s.cfg.Admin.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.jwtManager.GenerateToken(username, token.RoleAdmin)
}

func (s *adminService) DebugInfo(ctx context.Context) (DebugInfo, error) {
	users, err := s.conversations.Users(ctx)
	if err != nil {
		return DebugInfo{}, fmt.Errorf("读取会话用户失败: %w", err)
	}
	if users == nil {
		users = []string{}
	}
	recipients := s.cfg.Line.Recipients()
	if recipients == nil {
		recipients = []string{}
	}
	info := DebugInfo{
		UsersWithHistory:    users,
		Recipients:          recipients,
		Model:               s.cfg.LLM.Model,
		LineTokenLength:     len(s.cfg.Line.ChannelAccessToken),
		LineSecretLength:    len(s.cfg.Line.ChannelSecret),
		LLMKeyLength:        len(s.cfg.LLM.APIKey),
		NewsKeyLength:       len(s.cfg.News.APIKey),
		ConversationBackend: "memory",
	}
	if s.cfg.News.Enabled {
		info.NewsSchedule = s.cfg.News.ScheduleTime
	}
	if s.cfg.Database.Redis.Addr != "" {
		info.ConversationBackend = "redis"
	}
	if s.exchangeRepo != nil {
		count, err := s.exchangeRepo.CountUsers()
		if err != nil {
			return DebugInfo{}, fmt.Errorf("统计审计用户失败: %w", err)
		}
		info.AuditedUsers = count
	}
	return info, nil
}

// ListExchanges 按条件返回问答审计记录，最新的在前。
func (s *adminService) ListExchanges(filter repository.ExchangeFilter) ([]ExchangeView, error) {
	if s.exchangeRepo == nil {
		return nil, ErrAuditDisabled
	}
	exchanges, err := s.exchangeRepo.Find(filter)
	if err != nil {
		return nil, err
	}
	views := make([]ExchangeView, 0, len(exchanges))
	for _, e := range exchanges {
		views = append(views, ExchangeView{
			ID:        e.ID,
			UserID:    e.UserID,
			Question:  e.Question,
			Answer:    e.Answer,
			Model:     e.Model,
			CreatedAt: model.LocalTime(e.CreatedAt),
		})
	}
	return views, nil
}
