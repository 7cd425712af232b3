package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"b3tr-store/internal/domain"

	log "github.com/sirupsen/logrus"
)

type PostgresEmailRepository struct {
	db *sql.DB
}

func NewPostgresEmailRepository(db *sql.DB) *PostgresEmailRepository {
	return &PostgresEmailRepository{db: db}
}

func (r *PostgresEmailRepository) SaveLog(ctx context.Context, l domain.EmailLog) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"transaction_id":  l.TransactionID,
		"recipient_email": l.RecipientEmail,
		"subject":         l.Subject,
		"status":          l.Status,
	}).Info("Saving email log to database")

	const query = `
        INSERT INTO email_logs (transaction_id, recipient_email, subject, status, error_message)
        VALUES ($1, $2, $3, $4, $5);
    `

	if _, err := r.db.ExecContext(ctx, query, l.TransactionID, l.RecipientEmail, l.Subject, string(l.Status), nullStringOrNil(l.ErrorMessage)); err != nil {
		return fmt.Errorf("failed to insert email log: %w", err)
	}
	return nil
}

// LogOnlyEmailRepository records email outcomes in the application log when no database is configured.
type LogOnlyEmailRepository struct{}

func (LogOnlyEmailRepository) SaveLog(_ context.Context, l domain.EmailLog) error {
	log.WithFields(log.Fields{
		"transaction_id":  l.TransactionID,
		"recipient_email": l.RecipientEmail,
		"status":          l.Status,
	}).Info("Email outcome")
	return nil
}

func nullStringOrNil(ns sql.NullString) interface{} {
	if ns.Valid {
		return ns.String
	}
	return nil
}
