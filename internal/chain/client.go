package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

var ErrInvalidHex = errors.New("invalid hex quantity")

// Clause is one VeChainThor transaction clause.
type Clause struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

type CallResult struct {
	Data     string `json:"data"`
	GasUsed  uint64 `json:"gasUsed"`
	Reverted bool   `json:"reverted"`
	VMError  string `json:"vmError"`
}

type Account struct {
	Balance string `json:"balance"`
	Energy  string `json:"energy"`
	HasCode bool   `json:"hasCode"`
}

type ReceiptMeta struct {
	BlockID        string `json:"blockID"`
	BlockNumber    uint32 `json:"blockNumber"`
	BlockTimestamp uint64 `json:"blockTimestamp"`
	TxID           string `json:"txID"`
	TxOrigin       string `json:"txOrigin"`
}

type Receipt struct {
	GasUsed  uint64      `json:"gasUsed"`
	GasPayer string      `json:"gasPayer"`
	Paid     string      `json:"paid"`
	Reward   string      `json:"reward"`
	Reverted bool        `json:"reverted"`
	Meta     ReceiptMeta `json:"meta"`
}

// Client talks to the REST API of a Thor node.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type callRequest struct {
	Clauses []Clause `json:"clauses"`
	Caller  string   `json:"caller,omitempty"`
}

// Call executes clause read-only against the best block.
func (c *Client) Call(ctx context.Context, caller string, clause Clause) (CallResult, error) {
	body, err := json.Marshal(callRequest{Clauses: []Clause{clause}, Caller: caller})
	if err != nil {
		return CallResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/accounts/*", bytes.NewReader(body))
	if err != nil {
		return CallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var results []CallResult
	if err := c.do(req, &results); err != nil {
		return CallResult{}, err
	}
	if len(results) != 1 {
		return CallResult{}, fmt.Errorf("node returned %d call results, want 1", len(results))
	}
	return results[0], nil
}

func (c *Client) Account(ctx context.Context, addr string) (Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/accounts/"+addr, nil)
	if err != nil {
		return Account{}, err
	}
	var acc Account
	if err := c.do(req, &acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// TransactionReceipt returns nil while the transaction is not yet in a block.
func (c *Client) TransactionReceipt(ctx context.Context, txID string) (*Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/transactions/"+txID+"/receipt", nil)
	if err != nil {
		return nil, err
	}
	var receipt *Receipt
	if err := c.do(req, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("node request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg := "node request failed"
		if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			trimmed := strings.TrimSpace(string(body))
			if trimmed != "" {
				msg = fmt.Sprintf("%s: %s", msg, trimmed)
			}
		}
		return fmt.Errorf("%s (status %d)", msg, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

// parseHexBig accepts node quantities such as "0x0", "0x" and zero-padded values.
func parseHexBig(s string) (*big.Int, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return v, nil
}
