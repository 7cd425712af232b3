package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"b3tr-store/internal/domain"
	"b3tr-store/internal/metrics"

	log "github.com/sirupsen/logrus"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type PurchaseLog interface {
	Append(ctx context.Context, rec domain.PurchaseRecord) (bool, error)
}

// Notifier delivers a purchase receipt. Failures never affect the purchase.
type Notifier interface {
	NotifyPurchase(ctx context.Context, info domain.PurchaseInfo) error
}

type NopNotifier struct{}

func (NopNotifier) NotifyPurchase(context.Context, domain.PurchaseInfo) error { return nil }

// Recorder turns a terminal receipt state into a purchase log entry and a status line.
type Recorder struct {
	purchases     PurchaseLog
	notifier      Notifier
	notifyTimeout time.Duration
	now           func() time.Time
	wg            sync.WaitGroup

	appendAttempts int
	appendDelay    time.Duration
}

func NewRecorder(purchases PurchaseLog, notifier Notifier, notifyTimeout time.Duration) *Recorder {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Recorder{
		purchases:     purchases,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		now:           time.Now,

		appendAttempts: 3,
		appendDelay:    200 * time.Millisecond,
	}
}

type Result struct {
	State   PollState
	Product domain.Product
	Account string
	TxID    string
	Buyer   domain.Buyer
}

// Record appends a PurchaseRecord for a successful receipt and returns the
// status for the buyer. A reverted receipt writes nothing. The append is
// skipped when the log already holds the transaction.
//
// The transaction is final on chain, so the status stays successful when the
// log cannot be written. The error is returned and the receipt is still sent.
func (r *Recorder) Record(ctx context.Context, res Result) (string, error) {
	const op = "Recorder.Record"

	fields := log.Fields{"transaction_id": res.TxID, "product_id": res.Product.ID, "account": res.Account}

	switch res.State {
	case PollReverted:
		metrics.PurchasesRevertedTotal.Inc()
		log.WithFields(fields).Warn("Transaction reverted")
		return "Payment failed: Transaction reverted.", nil
	case PollSuccess:
	default:
		return "", fmt.Errorf("%s: unexpected state %s", op, res.State)
	}

	status := fmt.Sprintf("Payment successful for %s! Transaction ID: %s", res.Product.Name, res.TxID)

	rec := domain.PurchaseRecord{
		Item:        res.Product.Name,
		Amount:      res.Product.PriceB3TR,
		Account:     res.Account,
		TxID:        res.TxID,
		Timestamp:   r.now().UTC().Format(timestampLayout),
		UserName:    res.Buyer.Name,
		UserEmail:   res.Buyer.Email,
		UserAddress: res.Buyer.Address,
	}
	appended, err := r.append(ctx, rec)
	if err != nil {
		metrics.PurchaseRecordFailuresTotal.Inc()
		log.WithFields(fields).WithError(err).Error("Failed to write purchase log")
		r.notify(domain.NewPurchaseInfo(rec))
		return status, fmt.Errorf("%s: %w", op, err)
	}
	if !appended {
		log.WithFields(fields).Info("Purchase already recorded")
		return status, nil
	}

	metrics.PurchasesRecordedTotal.Inc()
	log.WithFields(fields).Info("Purchase recorded")

	r.notify(domain.NewPurchaseInfo(rec))
	return status, nil
}

func (r *Recorder) append(ctx context.Context, rec domain.PurchaseRecord) (bool, error) {
	delay := r.appendDelay
	var err error
	for attempt := 1; attempt <= r.appendAttempts; attempt++ {
		var appended bool
		if appended, err = r.purchases.Append(ctx, rec); err == nil {
			return appended, nil
		}
		if attempt == r.appendAttempts {
			break
		}

		log.WithFields(log.Fields{
			"attempt":        attempt,
			"max_attempts":   r.appendAttempts,
			"transaction_id": rec.TxID,
			"error":          err,
		}).Warn("Failed to write purchase log, retrying...")

		select {
		case <-ctx.Done():
			return false, err
		case <-time.After(delay):
			delay *= 2
		}
	}
	return false, err
}

func (r *Recorder) notify(info domain.PurchaseInfo) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.notifyTimeout)
		defer cancel()

		if err := r.notifier.NotifyPurchase(ctx, info); err != nil {
			log.WithField("transaction_id", info.TransactionID).WithError(err).Error("Failed to send purchase receipt")
		}
	}()
}

// Wait blocks until in-flight receipt notifications finish.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
