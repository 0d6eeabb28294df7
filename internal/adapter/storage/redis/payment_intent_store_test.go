package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"healthpay-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentIntentStore_SaveTake(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPaymentIntentStore(client)
	ctx := context.Background()

	amount := decimal.RequireFromString("75.00")
	now := time.Now().UTC().Truncate(time.Second)
	intent := &domain.PaymentIntent{
		ID:          "HP0123456789ABCDEF",
		Kind:        domain.IntentKindQR,
		OwnerID:     uuid.New(),
		Amount:      &amount,
		Currency:    "EGP",
		Description: "Pharmacy",
		ExpiresAt:   now.Add(15 * time.Minute),
		CreatedAt:   now,
	}

	require.NoError(t, store.Save(ctx, intent, 15*time.Minute))
	assert.True(t, mr.Exists("intent:"+intent.ID))

	got, err := store.Take(ctx, intent.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, intent.OwnerID, got.OwnerID)
	assert.Equal(t, domain.IntentKindQR, got.Kind)
	require.NotNil(t, got.Amount)
	assert.True(t, amount.Equal(*got.Amount))
	assert.True(t, intent.ExpiresAt.Equal(got.ExpiresAt))
	assert.False(t, mr.Exists("intent:"+intent.ID))

	got, err = store.Take(ctx, intent.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "an intent can be taken once")
}

func TestPaymentIntentStore_TakeConcurrent(t *testing.T) {
	_, client := newTestClient(t)
	store := NewPaymentIntentStore(client)
	ctx := context.Background()

	intent := &domain.PaymentIntent{ID: "HPCONTENDED00001", Kind: domain.IntentKindQR, OwnerID: uuid.New(), Currency: "EGP"}
	require.NoError(t, store.Save(ctx, intent, time.Minute))

	var (
		wg    sync.WaitGroup
		taken atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Take(ctx, intent.ID)
			if err == nil && got != nil {
				taken.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), taken.Load())
}

func TestPaymentIntentStore_OpenAmount(t *testing.T) {
	_, client := newTestClient(t)
	store := NewPaymentIntentStore(client)
	ctx := context.Background()

	intent := &domain.PaymentIntent{ID: "HPOPENAMOUNT0001", Kind: domain.IntentKindQR, OwnerID: uuid.New(), Currency: "EGP"}
	require.NoError(t, store.Save(ctx, intent, time.Minute))

	got, err := store.Take(ctx, intent.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Amount)
}

func TestPaymentIntentStore_TTL(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPaymentIntentStore(client)
	ctx := context.Background()

	intent := &domain.PaymentIntent{ID: "HPSHORTLIVED0001", Kind: domain.IntentKindLink, OwnerID: uuid.New()}
	require.NoError(t, store.Save(ctx, intent, time.Minute))
	mr.FastForward(61 * time.Second)

	got, err := store.Take(ctx, intent.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPaymentIntentStore_CorruptPayload(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPaymentIntentStore(client)
	require.NoError(t, mr.Set("intent:HPBROKEN", "{not json"))

	_, err := store.Take(context.Background(), "HPBROKEN")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode intent")
}
