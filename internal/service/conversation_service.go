// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"sync"

	"line-gpt-go/internal/model"
	"line-gpt-go/internal/repository"
)

// ConversationService 是进程内共享的会话存储。
// 同一用户的操作串行执行，不同用户之间互不阻塞。
type ConversationService interface {
	// Get 返回用户的会话，不存在时返回空会话。
	Get(ctx context.Context, userID string) (model.Conversation, error)
	Append(ctx context.Context, userID string, turn model.Turn) error
	// AppendAndSnapshot 追加一条消息并在同一临界区内返回追加后的完整历史。
	AppendAndSnapshot(ctx context.Context, userID string, turn model.Turn) ([]model.Turn, error)
	// Clear 清空消息但保留用户，重复调用结果相同。
	Clear(ctx context.Context, userID string) error
	// Truncate 丢弃最旧的消息直到不超过 maxTurns 条，maxTurns <= 0 时不处理。
	Truncate(ctx context.Context, userID string, maxTurns int) error
	Users(ctx context.Context) ([]string, error)
}

// userLock 是单个用户的互斥锁，refs 记录持有或等待它的调用数。
type userLock struct {
	mu   sync.Mutex
	refs int
}

type conversationService struct {
	repo repository.ConversationRepository

	mu    sync.Mutex // 保护 locks
	locks map[string]*userLock
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo, locks: make(map[string]*userLock)}
}

// lock 获取用户的互斥锁，返回的函数释放它。没有调用者引用的锁会被移除。
func (s *conversationService) lock(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

func (s *conversationService) Get(ctx context.Context, userID string) (model.Conversation, error) {
	unlock := s.lock(userID)
	defer unlock()
	turns, err := s.repo.Load(ctx, userID)
	if err != nil {
		return model.Conversation{}, err
	}
	return model.Conversation{UserID: userID, Turns: turns}, nil
}

func (s *conversationService) Append(ctx context.Context, userID string, turn model.Turn) error {
	unlock := s.lock(userID)
	defer unlock()
	return s.repo.Append(ctx, userID, turn)
}

func (s *conversationService) AppendAndSnapshot(ctx context.Context, userID string, turn model.Turn) ([]model.Turn, error) {
	unlock := s.lock(userID)
	defer unlock()
	if err := s.repo.Append(ctx, userID, turn); err != nil {
		return nil, err
	}
	return s.repo.Load(ctx, userID)
}

func (s *conversationService) Clear(ctx context.Context, userID string) error {
	unlock := s.lock(userID)
	defer unlock()
	return s.repo.Clear(ctx, userID)
}

func (s *conversationService) Truncate(ctx context.Context, userID string, maxTurns int) error {
	if maxTurns <= 0 {
		return nil
	}
	unlock := s.lock(userID)
	defer unlock()
	return s.repo.Trim(ctx, userID, maxTurns)
}

func (s *conversationService) Users(ctx context.Context) ([]string, error) {
	return s.repo.Users(ctx)
}
