package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-gpt-go/internal/model"
)

func newRedisRepo(t *testing.T, ttl time.Duration) (ConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewConversationRepository(client, ttl), mr
}

func repositories(t *testing.T) map[string]ConversationRepository {
	redisRepo, _ := newRedisRepo(t, time.Hour)
	return map[string]ConversationRepository{
		"redis":  redisRepo,
		"memory": NewMemoryConversationRepository(),
	}
}

func contents(turns []model.Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Content)
	}
	return out
}

func TestConversationRepository(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			turns, err := repo.Load(ctx, "U1")
			require.NoError(t, err)
			assert.Empty(t, turns)

			for i := 0; i < 5; i++ {
				require.NoError(t, repo.Append(ctx, "U1", model.NewTurn(model.RoleUser, fmt.Sprintf("m%d", i))))
			}
			require.NoError(t, repo.Append(ctx, "U2", model.NewTurn(model.RoleUser, "other")))

			turns, err = repo.Load(ctx, "U1")
			require.NoError(t, err)
			assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, contents(turns))
			assert.Equal(t, model.RoleUser, turns[0].Role)

			require.NoError(t, repo.Trim(ctx, "U1", 3))
			turns, err = repo.Load(ctx, "U1")
			require.NoError(t, err)
			assert.Equal(t, []string{"m2", "m3", "m4"}, contents(turns))

			require.NoError(t, repo.Trim(ctx, "U1", 0))
			turns, _ = repo.Load(ctx, "U1")
			assert.Len(t, turns, 3)

			require.NoError(t, repo.Clear(ctx, "U1"))
			require.NoError(t, repo.Clear(ctx, "U1"))
			turns, err = repo.Load(ctx, "U1")
			require.NoError(t, err)
			assert.Empty(t, turns)

			other, err := repo.Load(ctx, "U2")
			require.NoError(t, err)
			assert.Equal(t, []string{"other"}, contents(other))

			users, err := repo.Users(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"U1", "U2"}, users)
		})
	}
}

func TestRedisConversationRepositoryTTL(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRedisRepo(t, time.Minute)

	require.NoError(t, repo.Append(ctx, "U1", model.NewTurn(model.RoleUser, "hello")))
	assert.Equal(t, time.Minute, mr.TTL(conversationKey("U1")))

	mr.FastForward(2 * time.Minute)
	turns, err := repo.Load(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRedisConversationRepositoryCorruptEntry(t *testing.T) {
	repo, mr := newRedisRepo(t, 0)
	_, err := mr.Push(conversationKey("U1"), "not-json")
	require.NoError(t, err)

	_, err = repo.Load(context.Background(), "U1")
	assert.Error(t, err)
}
