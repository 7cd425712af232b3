package validator

import (
	"errors"
	"regexp"
	"strings"

	"b3tr-store/internal/domain"
)

var (
	ErrMissingBuyerDetails = errors.New("Please fill in your name, email, and address.")
	ErrEmptyEmail          = errors.New("email is empty")
	ErrInvalidEmailFormat  = errors.New("invalid email format")
	ErrEmptyTransactionID  = errors.New("transaction ID is empty")
	ErrEmptyItem           = errors.New("item is empty")
	ErrMissingProductField = errors.New("Please fill in all fields with valid values.")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmptyEmail
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmailFormat
	}
	return nil
}

func ValidateTransactionID(transactionID string) error {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return ErrEmptyTransactionID
	}
	return nil
}

// ValidateBuyer requires every contact field and a well-formed email.
func ValidateBuyer(b domain.Buyer) error {
	if strings.TrimSpace(b.Name) == "" || strings.TrimSpace(b.Email) == "" || strings.TrimSpace(b.Address) == "" {
		return ErrMissingBuyerDetails
	}
	return ValidateEmail(b.Email)
}

// ValidateProduct checks an admin catalog form. Prices must be non-zero.
func ValidateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Description) == "" {
		return ErrMissingProductField
	}
	if p.PriceUSD <= 0 || p.PriceB3TR <= 0 {
		return ErrMissingProductField
	}
	return nil
}

func ValidatePurchaseInfo(purchaseInfo domain.PurchaseInfo) error {
	if err := ValidateEmail(purchaseInfo.UserEmail); err != nil {
		return err
	}
	if err := ValidateTransactionID(purchaseInfo.TransactionID); err != nil {
		return err
	}
	if strings.TrimSpace(purchaseInfo.Item) == "" {
		return ErrEmptyItem
	}
	return nil
}
