package domain

import "database/sql"

// Product is a catalog entry. PriceB3TR is authoritative for payment, PriceUSD is display only.
type Product struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	PriceUSD    float64 `json:"priceUSD"`
	PriceB3TR   float64 `json:"priceB3TR"`
	Description string  `json:"description"`
}

// Buyer holds the contact details collected on the confirmation view.
type Buyer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// PurchaseRecord is one entry of the append-only purchase log.
type PurchaseRecord struct {
	Item        string  `json:"item"`
	Amount      float64 `json:"amount"`
	Account     string  `json:"account"`
	TxID        string  `json:"txId"`
	Timestamp   string  `json:"timestamp"`
	UserName    string  `json:"userName"`
	UserEmail   string  `json:"userEmail"`
	UserAddress string  `json:"userAddress"`
}

// PurchaseInfo is the event published for every recorded purchase.
type PurchaseInfo struct {
	TransactionID string  `json:"transaction_id"`
	Account       string  `json:"account"`
	Item          string  `json:"item"`
	Amount        float64 `json:"amount"`
	UserName      string  `json:"user_name"`
	UserEmail     string  `json:"user_email"`
	UserAddress   string  `json:"user_address"`
	Timestamp     string  `json:"timestamp"`
}

func NewPurchaseInfo(r PurchaseRecord) PurchaseInfo {
	return PurchaseInfo{
		TransactionID: r.TxID,
		Account:       r.Account,
		Item:          r.Item,
		Amount:        r.Amount,
		UserName:      r.UserName,
		UserEmail:     r.UserEmail,
		UserAddress:   r.UserAddress,
		Timestamp:     r.Timestamp,
	}
}

type EmailStatus string

const (
	StatusSent   EmailStatus = "sent"
	StatusFailed EmailStatus = "failed"
)

type EmailLog struct {
	TransactionID  string
	RecipientEmail string
	Subject        string
	Status         EmailStatus
	ErrorMessage   sql.NullString
}
