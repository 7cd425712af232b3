package checkout

import (
	"context"
	"time"

	"b3tr-store/internal/chain"
	"b3tr-store/internal/metrics"

	log "github.com/sirupsen/logrus"
)

type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txID string) (*chain.Receipt, error)
}

type PollState int

const (
	PollIdle PollState = iota
	PollPolling
	PollSuccess
	PollReverted
)

func (s PollState) String() string {
	switch s {
	case PollPolling:
		return "polling"
	case PollSuccess:
		return "success"
	case PollReverted:
		return "reverted"
	default:
		return "idle"
	}
}

// Poller waits for a transaction receipt by querying the node on a fixed interval.
type Poller struct {
	fetcher  ReceiptFetcher
	interval time.Duration
}

func NewPoller(fetcher ReceiptFetcher, interval time.Duration) *Poller {
	return &Poller{fetcher: fetcher, interval: interval}
}

// Poll queries immediately and then every interval until the receipt is
// found or ctx is done. Query errors are logged and the next tick retries.
// On cancellation it returns PollIdle and ctx.Err().
func (p *Poller) Poll(ctx context.Context, txID string) (PollState, *chain.Receipt, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return PollIdle, nil, err
		}

		metrics.ReceiptPollsTotal.Inc()
		receipt, err := p.fetcher.TransactionReceipt(ctx, txID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return PollIdle, nil, ctx.Err()
			}
			log.WithField("transaction_id", txID).WithError(err).Warn("Receipt query failed")
		case receipt != nil && receipt.Reverted:
			return PollReverted, receipt, nil
		case receipt != nil:
			return PollSuccess, receipt, nil
		}

		select {
		case <-ctx.Done():
			return PollIdle, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
