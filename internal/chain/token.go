package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

const tokenABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// VTHO, the gas token, uses 18 decimals like VET.
const energyDecimals = 18

var (
	ErrFractionalUnits = errors.New("amount has more decimals than the token supports")
	ErrNegativeAmount  = errors.New("amount is negative")
	ErrCallReverted    = errors.New("contract call reverted")
)

var tokenABI = mustParseABI(tokenABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Errorf("chain: parse token abi: %w", err))
	}
	return parsed
}

// Token is a fungible token contract with a fixed decimal precision.
type Token struct {
	Contract common.Address
	Decimals int32
}

func NewToken(contract string, decimals int32) Token {
	return Token{Contract: common.HexToAddress(contract), Decimals: decimals}
}

// ToUnits converts a whole-token amount into the smallest unit.
func (t Token) ToUnits(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	shifted := amount.Shift(t.Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %s", ErrFractionalUnits, amount)
	}
	return shifted.BigInt(), nil
}

func (t Token) FromUnits(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -t.Decimals)
}

// TransferClause encodes transfer(to, amount) against the token contract.
func (t Token) TransferClause(to common.Address, amount decimal.Decimal) (Clause, error) {
	units, err := t.ToUnits(amount)
	if err != nil {
		return Clause{}, err
	}
	data, err := tokenABI.Pack("transfer", to, units)
	if err != nil {
		return Clause{}, fmt.Errorf("pack transfer: %w", err)
	}
	return Clause{
		To:    strings.ToLower(t.Contract.Hex()),
		Value: "0x0",
		Data:  hexutil.Encode(data),
	}, nil
}

func (t Token) balanceOfClause(owner common.Address) (Clause, error) {
	data, err := tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return Clause{}, fmt.Errorf("pack balanceOf: %w", err)
	}
	return Clause{
		To:    strings.ToLower(t.Contract.Hex()),
		Value: "0x0",
		Data:  hexutil.Encode(data),
	}, nil
}

// Balances answers the token and gas balance questions asked before a purchase.
type Balances struct {
	client *Client
	token  Token
}

func NewBalances(client *Client, token Token) *Balances {
	return &Balances{client: client, token: token}
}

func (b *Balances) TokenBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	const op = "Balances.TokenBalance"

	clause, err := b.token.balanceOfClause(common.HexToAddress(account))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	res, err := b.client.Call(ctx, "", clause)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	if res.Reverted {
		return decimal.Zero, fmt.Errorf("%s: %w: %s", op, ErrCallReverted, res.VMError)
	}

	raw, err := hexutil.Decode(res.Data)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	out, err := tokenABI.Unpack("balanceOf", raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: unexpected balanceOf output %T", op, out[0])
	}
	return b.token.FromUnits(bal), nil
}

// GasBalance returns the account's VTHO energy.
func (b *Balances) GasBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	const op = "Balances.GasBalance"

	acc, err := b.client.Account(ctx, account)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	energy, err := parseHexBig(acc.Energy)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return decimal.NewFromBigInt(energy, -energyDecimals), nil
}
