package checkout

import (
	"context"
	"testing"
	"time"

	"b3tr-store/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateGetDelete(t *testing.T) {
	h := newHarness(t)

	s, err := h.registry.Create(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, testAccount, s.View().Account)

	got, err := h.registry.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, h.registry.Delete(s.ID))
	_, err = h.registry.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, h.registry.Delete(s.ID), ErrSessionNotFound)

	_, err = s.Select(context.Background(), towelID)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestRegistry_CreateWithBadAccount(t *testing.T) {
	h := newHarness(t)

	_, err := h.registry.Create(context.Background(), "0x123")
	assert.ErrorIs(t, err, ErrInvalidAccount)
	assert.Zero(t, h.registry.Len())
}

func TestRegistry_ExpireIdleSessions(t *testing.T) {
	h := newHarness(t, pending())
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.registry.now = func() time.Time { return now }

	idle, err := h.registry.Create(ctx, testAccount)
	require.NoError(t, err)

	busy, err := h.registry.Create(ctx, testAccount)
	require.NoError(t, err)
	_, err = busy.Select(ctx, towelID)
	require.NoError(t, err)
	require.NoError(t, busy.Confirm(ctx, testBuyer))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, h.registry.Expire())

	_, err = h.registry.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.registry.Get(busy.ID)
	assert.NoError(t, err)
}

func TestRegistry_TracksLiveSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.registry.Create(ctx, "")
	require.NoError(t, err)
	_, err = h.registry.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, h.registry.Len())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CheckoutSessions))

	require.NoError(t, h.registry.Delete(a.ID))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CheckoutSessions))
}

func TestRegistry_ShutdownRecordsPurchaseAwaitingReceipt(t *testing.T) {
	h := newHarness(t, pending(), pending(), pending(), success())
	ctx := context.Background()

	s, err := h.registry.Create(ctx, testAccount)
	require.NoError(t, err)
	_, err = s.Select(ctx, towelID)
	require.NoError(t, err)
	require.NoError(t, s.Confirm(ctx, testBuyer))

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	h.registry.Shutdown(shutdownCtx)

	records, err := h.purchases.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xfeed", records[0].TxID)
	assert.Len(t, h.notifier.Infos(), 1)

	_, err = s.Select(ctx, towelID)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestRegistry_ShutdownDeadlineStopsPolling(t *testing.T) {
	h := newHarness(t, pending())
	ctx := context.Background()

	s, err := h.registry.Create(ctx, testAccount)
	require.NoError(t, err)
	_, err = s.Select(ctx, towelID)
	require.NoError(t, err)
	require.NoError(t, s.Confirm(ctx, testBuyer))

	shutdownCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	h.registry.Shutdown(shutdownCtx)

	calls := h.receipts.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, h.receipts.Calls())

	records, err := h.purchases.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
