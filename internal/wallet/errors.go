package wallet

import (
	"errors"
	"strings"
)

// Kind classifies why a signing request failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedMethod
	KindUserRejected
	KindNetworkUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedMethod:
		return "unsupported_method"
	case KindUserRejected:
		return "user_rejected"
	case KindNetworkUnreachable:
		return "network_unreachable"
	default:
		return "unknown"
	}
}

func ParseKind(s string) Kind {
	switch s {
	case "unsupported_method":
		return KindUnsupportedMethod
	case "user_rejected":
		return KindUserRejected
	case "network_unreachable":
		return KindNetworkUnreachable
	default:
		return KindUnknown
	}
}

var ErrNoTransactionID = errors.New("No transaction ID returned")

// Error is a signing failure with a known kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify returns the kind carried by err, falling back to matching
// the message against the phrases wallets are known to return.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var werr *Error
	if errors.As(err, &werr) && werr.Kind != KindUnknown {
		return werr.Kind
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) Kind {
	switch {
	case strings.Contains(msg, "method not supported"):
		return KindUnsupportedMethod
	case strings.Contains(msg, "User rejected"):
		return KindUserRejected
	case strings.Contains(msg, "node"), strings.Contains(msg, "CORS"):
		return KindNetworkUnreachable
	default:
		return KindUnknown
	}
}

// UserMessage rewrites a signing failure into the text shown to the buyer.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindUnsupportedMethod:
		return "VeWorld does not support the requested transaction method. Please ensure VeWorld is updated or contact support@veworld.net."
	case KindUserRejected:
		return "Transaction rejected by user."
	case KindNetworkUnreachable:
		return "Unable to connect to VeChain node. Check network connection or try a different node URL."
	}
	if err == nil || err.Error() == "" {
		return "Unknown error"
	}
	return err.Error()
}
