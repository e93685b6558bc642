package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/safedeal/escrow-backend/internal/models"
)

// TransactionLogRepository ведёт журнал аудита сделок.
// Записи только добавляются: ни UPDATE, ни DELETE здесь нет.
type TransactionLogRepository struct {
	db *sqlx.DB
}

func NewTransactionLogRepository(db *sqlx.DB) *TransactionLogRepository {
	return &TransactionLogRepository{db: db}
}

// Add записывает действие над сделкой.
func (r *TransactionLogRepository) Add(ctx context.Context, transactionID uuid.UUID, milestoneID, userID *uuid.UUID, action string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("transaction log repository: marshal details %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO transaction_logs (transaction_id, milestone_id, user_id, action, details)
		VALUES ($1, $2, $3, $4, $5)
	`, transactionID, milestoneID, userID, action, detailsJSON); err != nil {
		return fmt.Errorf("transaction log repository: add %w", err)
	}
	return nil
}

// ListByTransaction возвращает журнал сделки в хронологическом порядке.
func (r *TransactionLogRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionLog, error) {
	var logs []models.TransactionLog
	if err := r.db.SelectContext(ctx, &logs, `
		SELECT * FROM transaction_logs WHERE transaction_id = $1 ORDER BY created_at ASC
	`, transactionID); err != nil {
		return nil, fmt.Errorf("transaction log repository: list %w", err)
	}
	return logs, nil
}
