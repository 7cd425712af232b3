package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"html/template"
	"time"

	"b3tr-store/internal/domain"
	"b3tr-store/internal/sender"
	"b3tr-store/internal/validator"

	log "github.com/sirupsen/logrus"
)

// EmailRepository defines the interface for email log data access
type EmailRepository interface {
	SaveLog(ctx context.Context, log domain.EmailLog) error
}

var receiptHTML = template.Must(template.New("receipt").Parse(`<p>Hello {{.UserName}},</p>
<p>Thank you for shopping at {{.Store}}. Your payment for <strong>{{.Item}}</strong> ({{.Amount}} {{.Symbol}}) is confirmed on VeChain.</p>
<p>Transaction ID: <code>{{.TransactionID}}</code><br>
Shipping to: {{.UserAddress}}</p>`))

type ReceiptService struct {
	emailSender     sender.EmailSender
	emailRepository EmailRepository
	storeName       string
	tokenSymbol     string

	maxAttempts  int
	initialDelay time.Duration
	timeout      time.Duration
	saveTimeout  time.Duration
}

func NewReceiptService(emailSender sender.EmailSender, emailRepository EmailRepository, storeName, tokenSymbol string) *ReceiptService {
	return &ReceiptService{
		emailSender:     emailSender,
		emailRepository: emailRepository,
		storeName:       storeName,
		tokenSymbol:     tokenSymbol,
		maxAttempts:     3,
		initialDelay:    1 * time.Second,
		timeout:         10 * time.Second,
		saveTimeout:     5 * time.Second,
	}
}

// NotifyPurchase sends the receipt in-process when no broker is configured.
func (s *ReceiptService) NotifyPurchase(ctx context.Context, purchase domain.PurchaseInfo) error {
	return s.ProcessPurchase(ctx, purchase)
}

func (s *ReceiptService) ProcessPurchase(ctx context.Context, purchase domain.PurchaseInfo) error {
	if err := validator.ValidatePurchaseInfo(purchase); err != nil {
		log.WithFields(log.Fields{
			"error":          err,
			"transaction_id": purchase.TransactionID,
		}).Error("Purchase info validation failed")
		return fmt.Errorf("validation error: %w", err)
	}

	msg, err := s.receipt(purchase)
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	delay := s.initialDelay
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.emailSender.Send(ctx, msg)
		if err == nil {
			if attempt > 1 {
				log.WithFields(log.Fields{
					"attempt":      attempt,
					"max_attempts": s.maxAttempts,
					"email":        purchase.UserEmail,
				}).Info("Email sent successfully after retry")
			}
			break
		}

		if attempt < s.maxAttempts {
			log.WithFields(log.Fields{
				"attempt":      attempt,
				"max_attempts": s.maxAttempts,
				"error":        err,
				"email":        purchase.UserEmail,
			}).Warn("Failed to send email, retrying...")

			select {
			case <-ctx.Done():
				err = ctx.Err()
				attempt = s.maxAttempts
			case <-time.After(delay):
				delay *= 2
			}
		}
	}

	logEntry := domain.EmailLog{
		TransactionID:  purchase.TransactionID,
		RecipientEmail: purchase.UserEmail,
		Subject:        msg.Subject,
	}

	if err != nil {
		log.WithError(err).Error("Failed to send purchase receipt via SMTP")
		logEntry.Status = domain.StatusFailed
		logEntry.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	} else {
		log.WithField("email", purchase.UserEmail).Info("Purchase receipt sent successfully via SMTP")
		logEntry.Status = domain.StatusSent
	}

	// The send may have used up ctx, and the failed outcome still has to be stored.
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout)
	defer saveCancel()

	if saveErr := s.emailRepository.SaveLog(saveCtx, logEntry); saveErr != nil {
		log.WithError(saveErr).Error("Failed to save email log to database")
		return saveErr
	}

	return err
}

func (s *ReceiptService) receipt(p domain.PurchaseInfo) (sender.Message, error) {
	amount := fmt.Sprintf("%g", p.Amount)

	text := fmt.Sprintf(
		"Hello %s,\n\nThank you for shopping at %s.\nYour payment for %s (%s %s) is confirmed on VeChain.\nTransaction ID: %s\nShipping to: %s\n",
		p.UserName, s.storeName, p.Item, amount, s.tokenSymbol, p.TransactionID, p.UserAddress,
	)

	var html bytes.Buffer
	err := receiptHTML.Execute(&html, struct {
		domain.PurchaseInfo
		Store  string
		Amount string
		Symbol string
	}{p, s.storeName, amount, s.tokenSymbol})
	if err != nil {
		return sender.Message{}, err
	}

	return sender.Message{
		To:      p.UserEmail,
		Subject: fmt.Sprintf("%s receipt: %s", s.storeName, p.Item),
		Text:    text,
		HTML:    html.String(),
	}, nil
}
