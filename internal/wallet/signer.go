package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"b3tr-store/internal/chain"
)

// TxRequest asks the wallet to sign and send one transaction.
type TxRequest struct {
	Signer    string         `json:"signer"`
	Clauses   []chain.Clause `json:"clauses"`
	Gas       uint64         `json:"gas"`
	Comment   string         `json:"comment"`
	Delegator string         `json:"delegator,omitempty"`
}

// Signer signs and broadcasts a transaction, returning its id.
type Signer interface {
	SignTransaction(ctx context.Context, req TxRequest) (string, error)
}

// RemoteSigner forwards signing requests to a wallet bridge over HTTP.
type RemoteSigner struct {
	BaseURL string
	HTTP    *http.Client
}

func NewRemoteSigner(baseURL string) *RemoteSigner {
	return &RemoteSigner{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			// the wallet waits for the buyer to approve
			Timeout: 5 * time.Minute,
		},
	}
}

type signResponse struct {
	TxID  string `json:"txid"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *RemoteSigner) SignTransaction(ctx context.Context, txReq TxRequest) (string, error) {
	body, err := json.Marshal(txReq)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/sign", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", &Error{Kind: KindNetworkUnreachable, Err: fmt.Errorf("wallet bridge unreachable: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", &Error{Kind: KindNetworkUnreachable, Err: err}
	}

	var out signResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("wallet bridge request failed (status %d)", resp.StatusCode)
		}
		kind := ParseKind(out.Kind)
		if kind == KindUnknown {
			kind = classifyMessage(msg)
		}
		return "", &Error{Kind: kind, Err: errors.New(msg)}
	}

	if decodeErr != nil {
		return "", fmt.Errorf("decode wallet bridge response: %w", decodeErr)
	}
	if strings.TrimSpace(out.TxID) == "" {
		return "", ErrNoTransactionID
	}
	return out.TxID, nil
}
