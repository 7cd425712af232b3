package checkout

import (
	"context"
	"errors"
	"fmt"

	"b3tr-store/internal/chain"
	"b3tr-store/internal/domain"
	"b3tr-store/internal/metrics"
	"b3tr-store/internal/validator"
	"b3tr-store/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidBuyer = errors.New("invalid buyer details")

type SubmitterConfig struct {
	Token       chain.Token
	TokenSymbol string
	GasSymbol   string
	Recipient   string
	GasLimit    uint64
	// Delegator is the fee delegation service URL, empty when the buyer pays gas.
	Delegator string
}

// Submitter builds the token transfer for a purchase and hands it to the wallet.
type Submitter struct {
	signer wallet.Signer
	cfg    SubmitterConfig
}

func NewSubmitter(signer wallet.Signer, cfg SubmitterConfig) *Submitter {
	return &Submitter{signer: signer, cfg: cfg}
}

// Comment is the memo attached to the purchase transaction.
func (s *Submitter) Comment(p domain.Product) string {
	return fmt.Sprintf("Purchase %s for %s %s", p.Name, decimal.NewFromFloat(p.PriceB3TR).String(), s.cfg.TokenSymbol)
}

// Submit validates the buyer, signs one transfer clause and returns the transaction id.
func (s *Submitter) Submit(ctx context.Context, account string, p domain.Product, buyer domain.Buyer) (string, error) {
	const op = "Submitter.Submit"

	if err := validator.ValidateBuyer(buyer); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBuyer, err)
	}

	clause, err := s.cfg.Token.TransferClause(common.HexToAddress(s.cfg.Recipient), decimal.NewFromFloat(p.PriceB3TR))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	txID, err := s.signer.SignTransaction(ctx, wallet.TxRequest{
		Signer:    account,
		Clauses:   []chain.Clause{clause},
		Gas:       s.cfg.GasLimit,
		Comment:   s.Comment(p),
		Delegator: s.cfg.Delegator,
	})
	if err == nil && txID == "" {
		err = wallet.ErrNoTransactionID
	}
	if err != nil {
		kind := wallet.Classify(err)
		metrics.PurchaseSubmitFailuresTotal.WithLabelValues(kind.String()).Inc()
		log.WithFields(log.Fields{
			"product_id": p.ID,
			"account":    account,
			"kind":       kind.String(),
		}).WithError(err).Error("Payment failed")
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.WithFields(log.Fields{
		"product_id":     p.ID,
		"account":        account,
		"transaction_id": txID,
	}).Info("Transaction sent")
	return txID, nil
}

// FailureMessage turns a Submit error into the status shown to the buyer.
func (s *Submitter) FailureMessage(err error) string {
	switch {
	case errors.Is(err, validator.ErrMissingBuyerDetails):
		return validator.ErrMissingBuyerDetails.Error()
	case errors.Is(err, ErrInvalidBuyer):
		return "Please enter a valid email address."
	}
	if wallet.Classify(err) == wallet.KindUnknown {
		err = unwrapOp(err)
	}
	return fmt.Sprintf("Error: %s. Ensure sufficient %s and %s.", wallet.UserMessage(err), s.cfg.TokenSymbol, s.cfg.GasSymbol)
}

// unwrapOp drops the op prefix added by Submit so unknown errors read as the wallet reported them.
func unwrapOp(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}

func sentStatus(txID string) string {
	return fmt.Sprintf("Transaction sent: %s. Awaiting confirmation...", txID)
}
