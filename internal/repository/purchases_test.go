package repository

import (
	"context"
	"testing"

	"b3tr-store/internal/domain"
	"b3tr-store/internal/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseLog_AppendIsIdempotentPerTransaction(t *testing.T) {
	ctx := context.Background()
	l := NewPurchaseLog(kvstore.NewMemoryStore())

	rec := domain.PurchaseRecord{
		Item:      "B3TR BEACH Towel",
		Amount:    200,
		Account:   "0xabc",
		TxID:      "0x01",
		Timestamp: "2025-06-01T10:00:00Z",
		UserName:  "Ada",
		UserEmail: "ada@example.com",
	}

	written, err := l.Append(ctx, rec)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = l.Append(ctx, rec)
	require.NoError(t, err)
	assert.False(t, written)

	rs, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, rec, rs[0])
}

func TestPurchaseLog_ListEmpty(t *testing.T) {
	rs, err := NewPurchaseLog(kvstore.NewMemoryStore()).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rs)
	assert.Empty(t, rs)
}

func TestPurchaseLog_ReadsOriginalFieldNames(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, PurchasesKey,
		`[{"item":"B3TR BEACH Cap","amount":200,"account":"0xdef","txId":"0x09","timestamp":"2025-01-01T00:00:00.000Z"}]`))

	rs, err := NewPurchaseLog(store).List(ctx)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "B3TR BEACH Cap", rs[0].Item)
	assert.Equal(t, "0x09", rs[0].TxID)
	assert.Empty(t, rs[0].UserName)
}
