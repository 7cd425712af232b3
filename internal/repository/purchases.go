package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"b3tr-store/internal/domain"
	"b3tr-store/internal/kvstore"
)

const PurchasesKey = "b3tr_purchases"

// PurchaseLog is the append-only list of successful purchases.
type PurchaseLog struct {
	store kvstore.Store
	mu    sync.Mutex
}

func NewPurchaseLog(store kvstore.Store) *PurchaseLog {
	return &PurchaseLog{store: store}
}

// Append adds rec unless a record with the same transaction id exists.
// It reports whether the record was written.
func (l *PurchaseLog) Append(ctx context.Context, rec domain.PurchaseRecord) (bool, error) {
	const op = "PurchaseLog.Append"

	l.mu.Lock()
	defer l.mu.Unlock()

	rs, err := l.load(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	for _, r := range rs {
		if r.TxID == rec.TxID {
			return false, nil
		}
	}

	rs = append(rs, rec)
	b, err := json.Marshal(rs)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := l.store.Set(ctx, PurchasesKey, string(b)); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (l *PurchaseLog) List(ctx context.Context) ([]domain.PurchaseRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rs, err := l.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("PurchaseLog.List: %w", err)
	}
	if rs == nil {
		rs = []domain.PurchaseRecord{}
	}
	return rs, nil
}

func (l *PurchaseLog) load(ctx context.Context) ([]domain.PurchaseRecord, error) {
	raw, ok, err := l.store.Get(ctx, PurchasesKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var rs []domain.PurchaseRecord
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, err
	}
	return rs, nil
}
