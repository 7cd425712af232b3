package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"b3tr-store/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session closed")
	ErrAttemptInProgress  = errors.New("a purchase is already in progress")
	ErrNoActiveAttempt    = errors.New("no product selected")
	ErrInvalidAccount     = errors.New("account must be a hex address")
	ErrWalletNotConnected = errors.New("Must be connected to VeChain mainnet with a selected product.")
)

type Stage string

const (
	StageBrowsing        Stage = "browsing"
	StageAwaitingWallet  Stage = "awaiting_wallet"
	StageConfirming      Stage = "confirming"
	StageSigning         Stage = "signing"
	StageAwaitingReceipt Stage = "awaiting_receipt"
)

// Catalog looks up the product a buyer selected.
type Catalog interface {
	Get(ctx context.Context, id int) (domain.Product, error)
}

// Services are the collaborators shared by every session.
type Services struct {
	Catalog   Catalog
	Guard     *Guard
	Submitter *Submitter
	Poller    *Poller
	Recorder  *Recorder
}

type attempt struct {
	product domain.Product
	buyer   domain.Buyer
	txID    string
	cancel  context.CancelFunc
}

// View is a snapshot of a session for the client.
type View struct {
	ID      string          `json:"id"`
	Account string          `json:"account,omitempty"`
	Stage   Stage           `json:"stage"`
	Product *domain.Product `json:"product,omitempty"`
	TxID    string          `json:"txId,omitempty"`
	Status  string          `json:"status"`
	Outcome string          `json:"outcome,omitempty"`
}

// Session is one buyer's checkout. All events are serialized by mu, and at
// most one purchase attempt exists at a time.
type Session struct {
	ID string

	svc  *Services
	root context.Context
	wg   *sync.WaitGroup

	mu       sync.Mutex
	account  string
	pending  *domain.Product
	attempt  *attempt
	signing  *attempt
	status   string
	lastTxID string
	outcome  PollState
	lastSeen time.Time
	closed   bool
}

func newSession(id string, svc *Services, root context.Context, wg *sync.WaitGroup, now time.Time) *Session {
	return &Session{ID: id, svc: svc, root: root, wg: wg, lastSeen: now}
}

func (s *Session) logger() *log.Entry {
	return log.WithField("session_id", s.ID)
}

// Connect sets the wallet account. A product chosen while disconnected is
// checked again now and its decision returned; otherwise the decision is nil.
func (s *Session) Connect(ctx context.Context, account string) (*Decision, error) {
	account = strings.TrimSpace(account)
	if !common.IsHexAddress(account) {
		return nil, ErrInvalidAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	s.account = strings.ToLower(account)
	s.logger().WithField("account", s.account).Info("Wallet connected")

	if s.pending == nil {
		return nil, nil
	}
	p := *s.pending
	s.pending = nil
	d := s.checkLocked(ctx, p)
	return &d, nil
}

// Disconnect forgets the account. A selection or confirmation view is
// dropped; a transaction already awaiting its receipt keeps polling under
// the account that signed it.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = ""
	s.pending = nil
	if s.attempt != nil && s.attempt.txID == "" && s.signing != s.attempt {
		s.attempt = nil
	}
	s.logger().Info("Wallet disconnected")
}

// Select starts a purchase of productID by running the guard.
func (s *Session) Select(ctx context.Context, productID int) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Decision{}, ErrSessionClosed
	}
	if s.busyLocked() {
		return Decision{}, ErrAttemptInProgress
	}

	p, err := s.svc.Catalog.Get(ctx, productID)
	if err != nil {
		return Decision{}, fmt.Errorf("Session.Select: %w", err)
	}

	s.attempt = nil
	s.status = ""
	s.lastTxID = ""
	s.outcome = PollIdle

	return s.checkLocked(ctx, p), nil
}

// busyLocked reports whether a transaction is with the wallet or awaiting its
// receipt. A signing request outlives Cancel until the wallet answers.
func (s *Session) busyLocked() bool {
	return s.signing != nil || (s.attempt != nil && s.attempt.txID != "")
}

func (s *Session) checkLocked(ctx context.Context, p domain.Product) Decision {
	d := s.svc.Guard.Check(ctx, p, s.account)
	switch d.Outcome {
	case NeedConnect:
		s.pending = &p
	case Rejected:
		s.status = d.Reason
	case Admit:
		s.attempt = &attempt{product: p}
	}
	s.logger().WithFields(log.Fields{"product_id": p.ID, "decision": d.Outcome.String()}).Info("Purchase guard checked")
	return d
}

// Confirm submits the active attempt with the buyer's details. On success
// the receipt is polled in the background.
func (s *Session) Confirm(ctx context.Context, buyer domain.Buyer) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.busyLocked() {
		s.mu.Unlock()
		return ErrAttemptInProgress
	}
	a := s.attempt
	if a == nil {
		s.mu.Unlock()
		return ErrNoActiveAttempt
	}
	if s.account == "" {
		s.status = ErrWalletNotConnected.Error()
		s.mu.Unlock()
		return ErrWalletNotConnected
	}
	account := s.account
	s.signing = a
	s.status = ""
	s.mu.Unlock()

	// The wallet may wait for the buyer, so the lock is released while signing.
	txID, err := s.svc.Submitter.Submit(ctx, account, a.product, buyer)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.signing = nil
	if s.attempt != a {
		if err == nil {
			s.logger().WithField("transaction_id", txID).Warn("Transaction sent after the purchase was closed")
		}
		return ErrNoActiveAttempt
	}

	if err != nil {
		s.status = s.svc.Submitter.FailureMessage(err)
		if !errors.Is(err, ErrInvalidBuyer) {
			s.attempt = nil
		}
		return err
	}

	a.buyer = buyer
	a.txID = txID
	s.lastTxID = txID
	s.status = sentStatus(txID)

	pollCtx, cancel := context.WithCancel(s.root)
	a.cancel = cancel
	s.wg.Add(1)
	go s.await(pollCtx, a, account)
	return nil
}

func (s *Session) await(ctx context.Context, a *attempt, account string) {
	defer s.wg.Done()

	state, _, err := s.svc.Poller.Poll(ctx, a.txID)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempt != a {
		return
	}
	a.cancel()

	status, err := s.svc.Recorder.Record(s.root, Result{
		State:   state,
		Product: a.product,
		Account: account,
		TxID:    a.txID,
		Buyer:   a.buyer,
	})
	if err != nil {
		s.logger().WithField("transaction_id", a.txID).WithError(err).Error("Failed to record purchase")
	}

	s.attempt = nil
	s.status = status
	s.outcome = state
}

// Cancel closes the confirmation view. Polling stops and nothing is recorded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Session) cancelLocked() {
	if s.attempt != nil && s.attempt.cancel != nil {
		s.attempt.cancel()
	}
	s.attempt = nil
	s.pending = nil
	s.status = ""
	s.lastTxID = ""
	s.outcome = PollIdle
}

// Close cancels any attempt and rejects further events.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.closed = true
}

// drain rejects further events but leaves a transaction that is awaiting its
// receipt to be polled and recorded. It reports whether one was left running.
func (s *Session) drain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.attempt != nil && s.attempt.txID != "" {
		s.pending = nil
		return true
	}
	s.cancelLocked()
	return false
}

// Balance is the connected wallet's spendable token and gas balance.
type Balance struct {
	Account string          `json:"account"`
	Token   decimal.Decimal `json:"token"`
	Gas     decimal.Decimal `json:"gas"`
}

// Balance reads the connected account's balances.
func (s *Session) Balance(ctx context.Context) (Balance, error) {
	s.mu.Lock()
	closed, account := s.closed, s.account
	s.mu.Unlock()

	if closed {
		return Balance{}, ErrSessionClosed
	}
	if account == "" {
		return Balance{}, ErrWalletNotConnected
	}
	return s.svc.Guard.Balances(ctx, account)
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:      s.ID,
		Account: s.account,
		Stage:   StageBrowsing,
		TxID:    s.lastTxID,
		Status:  s.status,
	}
	if s.outcome == PollSuccess || s.outcome == PollReverted {
		v.Outcome = s.outcome.String()
	}

	switch {
	case s.signing != nil:
		p := s.signing.product
		v.Stage = StageSigning
		v.Product = &p
	case s.pending != nil:
		p := *s.pending
		v.Stage = StageAwaitingWallet
		v.Product = &p
	case s.attempt != nil:
		p := s.attempt.product
		v.Product = &p
		switch {
		case s.attempt.txID != "":
			v.Stage = StageAwaitingReceipt
		default:
			v.Stage = StageConfirming
		}
	}
	return v
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// expired reports whether the session has been idle past ttl. Sessions
// still signing or waiting on a receipt never expire.
func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyLocked() {
		return false
	}
	return now.Sub(s.lastSeen) > ttl
}
