package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
	"line-gpt-go/internal/repository"
	"line-gpt-go/pkg/hash"
	"line-gpt-go/pkg/token"
)

type fakeExchangeRepo struct {
	created []model.Exchange
	filter  repository.ExchangeFilter
}

func (r *fakeExchangeRepo) Create(e *model.Exchange) error {
	r.created = append(r.created, *e)
	return nil
}

func (r *fakeExchangeRepo) Find(filter repository.ExchangeFilter) ([]model.Exchange, error) {
	r.filter = filter
	return r.created, nil
}

func (r *fakeExchangeRepo) CountUsers() (int64, error) {
	seen := map[string]bool{}
	for _, e := range r.created {
		seen[e.UserID] = true
	}
	return int64(len(seen)), nil
}

func newAdminConfig(t *testing.T) config.Config {
	t.Helper()
	hashed, err := hash.HashPassword("s3cret")
	require.NoError(t, err)
	var cfg config.Config
	cfg.Admin = config.AdminConfig{Username: "admin", PasswordHash: hashed}
	cfg.JWT = config.JWTConfig{Secret: "jwt-secret", AccessTokenExpireHours: 1}
	cfg.LLM.Model = "gpt-3.5-turbo"
	cfg.LLM.APIKey = "sk-12345"
	cfg.Line.ChannelAccessToken = "token"
	cfg.Line.UserIDs = "A, B"
	cfg.News.Enabled = true
	cfg.News.ScheduleTime = "08:00"
	return cfg
}

func TestAdminLogin(t *testing.T) {
	cfg := newAdminConfig(t)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, 1)
	svc := NewAdminService(cfg, newConversationService(), nil, jwtManager)

	tok, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)
	claims, err := jwtManager.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, token.RoleAdmin, claims.Role)

	_, err = svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("root", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLoginDisabledWithoutHash(t *testing.T) {
	cfg := newAdminConfig(t)
	cfg.Admin.PasswordHash = ""
	svc := NewAdminService(cfg, newConversationService(), nil, token.NewJWTManager("x", 1))

	_, err := svc.Login("admin", "")
	assert.ErrorIs(t, err, ErrAdminDisabled)
}

func TestAdminDebugInfo(t *testing.T) {
	ctx := context.Background()
	cfg := newAdminConfig(t)
	conversations := newConversationService()
	require.NoError(t, conversations.Append(ctx, "U9", model.NewTurn(model.RoleUser, "hi")))
	repo := &fakeExchangeRepo{created: []model.Exchange{{UserID: "U9"}, {UserID: "U9"}}}
	svc := NewAdminService(cfg, conversations, repo, token.NewJWTManager("x", 1))

	info, err := svc.DebugInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"U9"}, info.UsersWithHistory)
	assert.Equal(t, []string{"A", "B"}, info.Recipients)
	assert.Equal(t, "gpt-3.5-turbo", info.Model)
	assert.Equal(t, 8, info.LLMKeyLength)
	assert.Equal(t, 5, info.LineTokenLength)
	assert.Equal(t, "08:00", info.NewsSchedule)
	assert.Equal(t, "memory", info.ConversationBackend)
	assert.EqualValues(t, 1, info.AuditedUsers)
}

func TestListExchanges(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	repo := &fakeExchangeRepo{created: []model.Exchange{{ID: 1, UserID: "U1", Question: "q", Answer: "a", CreatedAt: created}}}
	svc := NewAdminService(newAdminConfig(t), newConversationService(), repo, token.NewJWTManager("x", 1))

	userID := "U1"
	views, err := svc.ListExchanges(repository.ExchangeFilter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "2024-01-02 03:04:05", views[0].CreatedAt.String())
	assert.Equal(t, &userID, repo.filter.UserID)

	disabled := NewAdminService(newAdminConfig(t), newConversationService(), nil, token.NewJWTManager("x", 1))
	_, err = disabled.ListExchanges(repository.ExchangeFilter{})
	assert.ErrorIs(t, err, ErrAuditDisabled)
}

func TestExchangeRecorder(t *testing.T) {
	repo := &fakeExchangeRepo{}
	NewExchangeRecorder(repo, "gpt-4o").Record(context.Background(), "U1", "q", "a")
	require.Len(t, repo.created, 1)
	assert.Equal(t, "gpt-4o", repo.created[0].Model)
	assert.Equal(t, "U1", repo.created[0].UserID)
}
