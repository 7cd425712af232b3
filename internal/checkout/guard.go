package checkout

import (
	"context"
	"fmt"

	"b3tr-store/internal/domain"
	"b3tr-store/internal/metrics"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// BalanceSource reads the balances a purchase depends on.
type BalanceSource interface {
	TokenBalance(ctx context.Context, account string) (decimal.Decimal, error)
	GasBalance(ctx context.Context, account string) (decimal.Decimal, error)
}

type Outcome int

const (
	NeedConnect Outcome = iota
	Rejected
	Admit
)

func (o Outcome) String() string {
	switch o {
	case NeedConnect:
		return "need_connect"
	case Rejected:
		return "rejected"
	case Admit:
		return "admit"
	default:
		return "unknown"
	}
}

// Decision is the result of a guard check. Reason is set only when Rejected.
type Decision struct {
	Outcome Outcome
	Reason  string
}

type GuardPolicy struct {
	TokenSymbol   string
	GasSymbol     string
	MinGasBalance decimal.Decimal
}

// Guard decides whether an account may start paying for a product.
type Guard struct {
	balances BalanceSource
	policy   GuardPolicy
}

func NewGuard(balances BalanceSource, policy GuardPolicy) *Guard {
	return &Guard{balances: balances, policy: policy}
}

// Check runs the preconditions in order and stops at the first failure.
// The wallet check comes first, so even a free product needs a connected account.
func (g *Guard) Check(ctx context.Context, p domain.Product, account string) Decision {
	if account == "" {
		return Decision{Outcome: NeedConnect}
	}

	fields := log.Fields{"product_id": p.ID, "account": account}
	price := decimal.NewFromFloat(p.PriceB3TR)

	tokenBal, err := g.balances.TokenBalance(ctx, account)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Token balance query failed")
		return g.reject("token_balance_error",
			fmt.Sprintf("Failed to fetch %s balance. Please try again.", g.policy.TokenSymbol))
	}
	if tokenBal.LessThan(price) {
		return g.reject("insufficient_token", fmt.Sprintf(
			"Insufficient %[1]s balance: required %[2]s %[1]s, available %[3]s %[1]s.",
			g.policy.TokenSymbol, price.String(), tokenBal.String()))
	}

	gasBal, err := g.balances.GasBalance(ctx, account)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Gas balance query failed")
		return g.reject("gas_balance_error",
			fmt.Sprintf("Failed to fetch %s balance. Please try again.", g.policy.GasSymbol))
	}
	if gasBal.LessThan(g.policy.MinGasBalance) {
		return g.reject("insufficient_gas", fmt.Sprintf(
			"Insufficient %[1]s for gas: required at least %[2]s %[1]s, available %[3]s %[1]s.",
			g.policy.GasSymbol, g.policy.MinGasBalance.String(), gasBal.String()))
	}

	return Decision{Outcome: Admit}
}

// Balances reads both balances Check compares against.
func (g *Guard) Balances(ctx context.Context, account string) (Balance, error) {
	const op = "Guard.Balances"

	tokenBal, err := g.balances.TokenBalance(ctx, account)
	if err != nil {
		return Balance{}, fmt.Errorf("%s: %s balance: %w", op, g.policy.TokenSymbol, err)
	}
	gasBal, err := g.balances.GasBalance(ctx, account)
	if err != nil {
		return Balance{}, fmt.Errorf("%s: %s balance: %w", op, g.policy.GasSymbol, err)
	}
	return Balance{Account: account, Token: tokenBal, Gas: gasBal}, nil
}

func (g *Guard) reject(reason, msg string) Decision {
	metrics.GuardRejectionsTotal.WithLabelValues(reason).Inc()
	return Decision{Outcome: Rejected, Reason: msg}
}
