package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/safedeal/escrow-backend/internal/models"
)

var ErrChatGroupNotFound = errors.New("chat group not found")

// ChatRepository хранит чат-группы покупатель+продавец по сделкам.
type ChatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create создаёт чат-группу для сделки.
func (r *ChatRepository) Create(ctx context.Context, g *models.ChatGroup) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO chat_groups (transaction_id, buyer_id, seller_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (transaction_id) DO UPDATE SET transaction_id = EXCLUDED.transaction_id
		RETURNING id, created_at
	`, g.TransactionID, g.BuyerID, g.SellerID).Scan(&g.ID, &g.CreatedAt); err != nil {
		return fmt.Errorf("chat repository: create %w", err)
	}
	return nil
}

// GetByTransaction возвращает чат-группу сделки.
func (r *ChatRepository) GetByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ChatGroup, error) {
	var g models.ChatGroup
	err := r.db.GetContext(ctx, &g, `SELECT * FROM chat_groups WHERE transaction_id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat repository: get by transaction %w", err)
	}
	return &g, nil
}
