package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"b3tr-store/internal/domain"
)

// ReceiptService defines the interface for purchase receipt business logic
type ReceiptService interface {
	ProcessPurchase(ctx context.Context, purchase domain.PurchaseInfo) error
}

type purchaseHandler struct {
	receiptService ReceiptService
}

func NewPurchaseHandler(receiptService ReceiptService) *purchaseHandler {
	return &purchaseHandler{receiptService: receiptService}
}

func (h *purchaseHandler) HandleMessage(ctx context.Context, message []byte) error {
	var purchase domain.PurchaseInfo
	if err := json.Unmarshal(message, &purchase); err != nil {
		return fmt.Errorf("decode purchase event: %w", err)
	}
	return h.receiptService.ProcessPurchase(ctx, purchase)
}
