package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"b3tr-store/internal/chain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_KeepsPollingThroughErrors(t *testing.T) {
	receipts := &fakeReceipts{steps: []receiptStep{
		{err: errors.New("node down")},
		{},
		{receipt: &chain.Receipt{Reverted: false}},
	}}

	state, receipt, err := NewPoller(receipts, time.Millisecond).Poll(context.Background(), "0xfeed")
	require.NoError(t, err)
	assert.Equal(t, PollSuccess, state)
	assert.NotNil(t, receipt)
	assert.Equal(t, 3, receipts.Calls())
}

func TestPoller_Reverted(t *testing.T) {
	receipts := &fakeReceipts{steps: []receiptStep{{receipt: &chain.Receipt{Reverted: true}}}}

	state, _, err := NewPoller(receipts, time.Hour).Poll(context.Background(), "0xfeed")
	require.NoError(t, err)
	assert.Equal(t, PollReverted, state)
	assert.Equal(t, 1, receipts.Calls())
}

func TestPoller_CancelStopsQueries(t *testing.T) {
	receipts := &fakeReceipts{steps: []receiptStep{{}}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var (
		state PollState
		err   error
	)
	go func() {
		defer close(done)
		state, _, err = NewPoller(receipts, time.Millisecond).Poll(ctx, "0xfeed")
	}()

	assert.Eventually(t, func() bool { return receipts.Calls() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PollIdle, state)

	calls := receipts.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, receipts.Calls())
}

func TestPoller_AlreadyCancelled(t *testing.T) {
	receipts := &fakeReceipts{steps: []receiptStep{{}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewPoller(receipts, time.Millisecond).Poll(ctx, "0xfeed")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, receipts.Calls())
}
