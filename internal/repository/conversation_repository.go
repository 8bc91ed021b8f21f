// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"line-gpt-go/internal/model"
)

// ConversationRepository 定义了对话历史记录的操作接口。
// 实现本身只保证单条命令的原子性，同一用户的读-改-写由上层按用户加锁串行化。
type ConversationRepository interface {
	Load(ctx context.Context, userID string) ([]model.Turn, error)
	Append(ctx context.Context, userID string, turn model.Turn) error
	Clear(ctx context.Context, userID string) error
	// Trim 只保留最近的 maxTurns 条消息，maxTurns <= 0 时不做处理
	Trim(ctx context.Context, userID string, maxTurns int) error
	// Users 返回所有出现过的用户，重置后的用户仍然保留
	Users(ctx context.Context) ([]string, error)
}

const usersKey = "conversation:users"

func conversationKey(userID string) string {
	return fmt.Sprintf("conversation:%s", userID)
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewConversationRepository 创建一个基于 Redis list 的 ConversationRepository。
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl}
}

// Load 从 Redis 获取对话历史记录。
func (r *redisConversationRepository) Load(ctx context.Context, userID string) ([]model.Turn, error) {
	items, err := r.redisClient.LRange(ctx, conversationKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	turns := make([]model.Turn, 0, len(items))
	for _, item := range items {
		var t model.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conversation turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append 在列表尾部追加一条消息并刷新过期时间。
func (r *redisConversationRepository) Append(ctx context.Context, userID string, turn model.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation turn: %w", err)
	}
	key := conversationKey(userID)
	_, err = r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.SAdd(ctx, usersKey, userID)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

// Clear 清空消息列表，但保留用户在用户集合中的记录。
func (r *redisConversationRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, conversationKey(userID))
		pipe.SAdd(ctx, usersKey, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
}

// Trim 使用 LTRIM 丢弃最旧的消息。
func (r *redisConversationRepository) Trim(ctx context.Context, userID string, maxTurns int) error {
	if maxTurns <= 0 {
		return nil
	}
	if err := r.redisClient.LTrim(ctx, conversationKey(userID), int64(-maxTurns), -1).Err(); err != nil {
		return fmt.Errorf("failed to trim conversation: %w", err)
	}
	return nil
}

// Users 返回用户集合，按字典序排列。
func (r *redisConversationRepository) Users(ctx context.Context) ([]string, error) {
	users, err := r.redisClient.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation users: %w", err)
	}
	sort.Strings(users)
	return users, nil
}

type memoryConversationRepository struct {
	mu    sync.RWMutex
	turns map[string][]model.Turn
}

// NewMemoryConversationRepository 创建一个进程内的 ConversationRepository，未配置 Redis 时使用。
func NewMemoryConversationRepository() ConversationRepository {
	return &memoryConversationRepository{turns: make(map[string][]model.Turn)}
}

// Load 对未出现过的用户会创建一个空会话。
func (r *memoryConversationRepository) Load(_ context.Context, userID string) ([]model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.turns[userID]
	if !ok {
		r.turns[userID] = []model.Turn{}
	}
	out := make([]model.Turn, len(src))
	copy(out, src)
	return out, nil
}

func (r *memoryConversationRepository) Append(_ context.Context, userID string, turn model.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns[userID] = append(r.turns[userID], turn)
	return nil
}

func (r *memoryConversationRepository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// 保留 key，仅清空消息
	r.turns[userID] = []model.Turn{}
	return nil
}

func (r *memoryConversationRepository) Trim(_ context.Context, userID string, maxTurns int) error {
	if maxTurns <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	turns := r.turns[userID]
	if len(turns) > maxTurns {
		kept := make([]model.Turn, maxTurns)
		copy(kept, turns[len(turns)-maxTurns:])
		r.turns[userID] = kept
	}
	return nil
}

func (r *memoryConversationRepository) Users(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.turns))
	for id := range r.turns {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}
