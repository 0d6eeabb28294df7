package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore_Lifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewCredentialStore(time.Hour).WithClock(func() time.Time { return now })
	ctx := context.Background()

	assert.Nil(t, store.Get(ctx))
	assert.True(t, store.IsExpired(ctx))

	require.NoError(t, store.Save(ctx, "a", "r"))
	s := store.Get(ctx)
	require.NotNil(t, s)
	assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)
	assert.False(t, store.IsExpired(ctx))

	s.AccessToken = "mutated"
	assert.Equal(t, "a", store.Get(ctx).AccessToken, "Get returns a copy")

	now = now.Add(time.Hour)
	assert.True(t, store.IsExpired(ctx))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	assert.Nil(t, store.Get(ctx))
}
