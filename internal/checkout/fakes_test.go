package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"b3tr-store/internal/chain"
	"b3tr-store/internal/domain"
	"b3tr-store/internal/kvstore"
	"b3tr-store/internal/repository"
	"b3tr-store/internal/wallet"

	"github.com/shopspring/decimal"
)

const (
	testAccount   = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x8d5fb3e576bbe08279a3a64194c01b36d4bbb0c9"
	testToken     = "0x7c255e1a8da128f7b2770875d32cc82e4f4e6d54"
)

var testBuyer = domain.Buyer{Name: "Ana", Email: "ana@example.com", Address: "1 Beach Rd"}

type fakeBalances struct {
	mu       sync.Mutex
	token    decimal.Decimal
	gas      decimal.Decimal
	tokenErr error
	gasErr   error
	calls    int
}

func (f *fakeBalances) TokenBalance(context.Context, string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.token, f.tokenErr
}

func (f *fakeBalances) GasBalance(context.Context, string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.gas, f.gasErr
}

func (f *fakeBalances) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSigner answers with txID or err. When block is set, it holds every
// request until block is closed, like a wallet waiting on the buyer.
type fakeSigner struct {
	mu    sync.Mutex
	txID  string
	err   error
	block chan struct{}
	calls int
	last  wallet.TxRequest
}

func (f *fakeSigner) SignTransaction(_ context.Context, req wallet.TxRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	txID, err, block := f.txID, f.err, f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return txID, err
}

func (f *fakeSigner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type receiptStep struct {
	receipt *chain.Receipt
	err     error
}

// fakeReceipts replays steps in order and repeats the last one.
type fakeReceipts struct {
	mu    sync.Mutex
	steps []receiptStep
	calls int
}

func (f *fakeReceipts) TransactionReceipt(context.Context, string) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	if i < 0 {
		return nil, nil
	}
	return f.steps[i].receipt, f.steps[i].err
}

func (f *fakeReceipts) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePurchaseLog fails every append with err.
type fakePurchaseLog struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakePurchaseLog) Append(context.Context, domain.PurchaseRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return false, f.err
}

func (f *fakePurchaseLog) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu    sync.Mutex
	infos []domain.PurchaseInfo
}

func (f *fakeNotifier) NotifyPurchase(_ context.Context, info domain.PurchaseInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, info)
	return nil
}

func (f *fakeNotifier) Infos() []domain.PurchaseInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PurchaseInfo(nil), f.infos...)
}

type harness struct {
	balances  *fakeBalances
	signer    *fakeSigner
	receipts  *fakeReceipts
	notifier  *fakeNotifier
	purchases *repository.PurchaseLog
	catalog   *repository.CatalogRepository
	registry  *Registry
}

func richBalances() *fakeBalances {
	return &fakeBalances{token: decimal.NewFromInt(1000), gas: decimal.NewFromInt(50)}
}

func newHarness(t *testing.T, receipts ...receiptStep) *harness {
	t.Helper()

	store := kvstore.NewMemoryStore()
	h := &harness{
		balances:  richBalances(),
		signer:    &fakeSigner{txID: "0xfeed"},
		receipts:  &fakeReceipts{steps: receipts},
		notifier:  &fakeNotifier{},
		purchases: repository.NewPurchaseLog(store),
		catalog:   repository.NewCatalogRepository(store),
	}

	svc := &Services{
		Catalog:   h.catalog,
		Guard:     NewGuard(h.balances, testPolicy()),
		Submitter: NewSubmitter(h.signer, testSubmitterConfig()),
		Poller:    NewPoller(h.receipts, 5*time.Millisecond),
		Recorder:  NewRecorder(h.purchases, h.notifier, time.Second),
	}
	h.registry = NewRegistry(svc, time.Minute)
	t.Cleanup(h.registry.Close)
	return h
}

func testPolicy() GuardPolicy {
	return GuardPolicy{TokenSymbol: "B3TR", GasSymbol: "VTHO", MinGasBalance: decimal.NewFromInt(1)}
}

func testSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		Token:       chain.NewToken(testToken, 18),
		TokenSymbol: "B3TR",
		GasSymbol:   "VTHO",
		Recipient:   testRecipient,
		GasLimit:    150000,
	}
}
