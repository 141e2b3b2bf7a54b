package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floe-ai/floe/llm"
	"github.com/floe-ai/floe/memory"
)

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewRedisStore(RedisOptions{Addr: mr.Addr()})
	defer store.Close()

	ctx := context.Background()

	// Append and Recent
	err = store.Append(ctx, "s1",
		memory.Message{Role: llm.RoleUser, Content: "hello", CreatedAt: time.Now().UTC()},
		memory.Message{Role: llm.RoleAssistant, Content: "hi there", CreatedAt: time.Now().UTC()},
	)
	require.NoError(t, err)

	err = store.Append(ctx, "s1", memory.Message{Role: llm.RoleUser, Content: "bye", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	history, err := store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "hello", history[0].Content)

	recent, err := store.Recent(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "hi there", recent[0].Content)
	assert.Equal(t, "bye", recent[1].Content)

	// Context values
	err = store.SetContext(ctx, "s1", "user_name", "ada", 0)
	require.NoError(t, err)

	val, ok, err := store.GetContext(ctx, "s1", "user_name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ada", val)

	_, ok, err = store.GetContext(ctx, "s1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// TTL expiry
	err = store.SetContext(ctx, "s1", "token", "abc", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, ok, err = store.GetContext(ctx, "s1", "token")
	require.NoError(t, err)
	assert.False(t, ok)

	// ReplaceHistory
	err = store.ReplaceHistory(ctx, "s1", []memory.Message{
		{Role: llm.RoleSystem, Content: "summary of earlier turns"},
	})
	require.NoError(t, err)

	history, err = store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, llm.RoleSystem, history[0].Role)

	// Clear
	err = store.Clear(ctx, "s1")
	require.NoError(t, err)

	history, err = store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, ok, err = store.GetContext(ctx, "s1", "user_name")
	require.NoError(t, err)
	assert.False(t, ok)
}
