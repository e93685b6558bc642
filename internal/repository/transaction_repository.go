package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/safedeal/escrow-backend/internal/models"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrMilestoneNotFound   = errors.New("milestone not found")
	ErrInvalidState        = errors.New("operation not allowed in current state")
)

// Причина возврата по умолчанию, когда вызывающий её не указал.
const defaultRefundReason = "Refunded via API"

// TransactionRepository отвечает за таблицы transactions и milestones.
// Все операции смены статуса выполняются в одной транзакции БД с блокировкой
// строки сделки (SELECT ... FOR UPDATE): на одну сделку — не более одного
// писателя одновременно.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository создаёт экземпляр репозитория.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create создаёт сделку вместе с вехами одной транзакцией БД.
func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction, milestones []models.Milestone) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction repository: begin %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO transactions (title, description, type, amount, currency, due_date, status, escrow_status, payment_status, buyer_id, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		t.Title, t.Description, t.Type, t.Amount, t.Currency, t.DueDate,
		t.Status, t.EscrowStatus, t.PaymentStatus, t.BuyerID, t.SellerID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("transaction repository: create %w", err)
	}

	for i := range milestones {
		m := &milestones[i]
		m.TransactionID = t.ID
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO milestones (transaction_id, title, description, amount, due_date, status, escrow_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`, m.TransactionID, m.Title, m.Description, m.Amount, m.DueDate, m.Status, m.EscrowStatus,
		).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return fmt.Errorf("transaction repository: create milestone %w", err)
		}
	}
	t.Milestones = milestones

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction repository: commit %w", err)
	}
	return nil
}

// GetByID возвращает сделку с вехами и участниками.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.GetContext(ctx, &t, `SELECT * FROM transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transaction repository: get by id %w", err)
	}

	if err := r.db.SelectContext(ctx, &t.Milestones, `
		SELECT * FROM milestones WHERE transaction_id = $1 ORDER BY created_at ASC
	`, id); err != nil {
		return nil, fmt.Errorf("transaction repository: load milestones %w", err)
	}

	var buyer, seller models.User
	if err := r.db.GetContext(ctx, &buyer, `SELECT id, username, password_hash, role, created_at FROM users WHERE id = $1`, t.BuyerID); err == nil {
		t.Buyer = &buyer
	}
	if err := r.db.GetContext(ctx, &seller, `SELECT id, username, password_hash, role, created_at FROM users WHERE id = $1`, t.SellerID); err == nil {
		t.Seller = &seller
	}

	return &t, nil
}

// ListByUser возвращает сделки, где пользователь — покупатель или продавец.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: list by user %w", err)
	}
	return transactions, nil
}

// GetMilestone возвращает веху сделки.
func (r *TransactionRepository) GetMilestone(ctx context.Context, transactionID, milestoneID uuid.UUID) (*models.Milestone, error) {
	var m models.Milestone
	err := r.db.GetContext(ctx, &m, `
		SELECT * FROM milestones WHERE id = $1 AND transaction_id = $2
	`, milestoneID, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transaction repository: get milestone %w", err)
	}
	return &m, nil
}

// SetPaymentProcessing записывает идентификатор платежа шлюза и переводит
// оплату в processing. Compare-and-swap: срабатывает только из пары
// pending/awaiting_payment, иначе ErrInvalidState.
func (r *TransactionRepository) SetPaymentProcessing(ctx context.Context, id uuid.UUID, paymentID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET payment_id = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND escrow_status = $5
	`, id, paymentID, models.PaymentStatusProcessing, models.TransactionStatusPending, models.EscrowStatusAwaitingPayment)
	if err != nil {
		return fmt.Errorf("transaction repository: set payment processing %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transaction repository: rows affected %w", err)
	}
	if affected == 0 {
		// Либо сделки нет, либо она уже не в нужном состоянии.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidState
	}
	return nil
}

// ConfirmPayment фиксирует поступление средств: оплата processing → paid,
// удержание awaiting_payment → funded, вехи awaiting_funding → funded,
// сделка pending → active.
func (r *TransactionRepository) ConfirmPayment(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin %w", err)
	}
	defer tx.Rollback()

	t, err := lockTransaction(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if t.PaymentStatus != models.PaymentStatusProcessing || t.EscrowStatus != models.EscrowStatusAwaitingPayment {
		return nil, ErrInvalidState
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, escrow_status = $3, payment_status = $4, updated_at = NOW()
		WHERE id = $1
	`, id, models.TransactionStatusActive, models.EscrowStatusFunded, models.PaymentStatusPaid); err != nil {
		return nil, fmt.Errorf("transaction repository: confirm payment %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE milestones SET escrow_status = $2, updated_at = NOW()
		WHERE transaction_id = $1 AND escrow_status = $3
	`, id, models.EscrowStatusFunded, models.EscrowStatusAwaitingFunding); err != nil {
		return nil, fmt.Errorf("transaction repository: fund milestones %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("transaction repository: commit %w", err)
	}
	return r.GetByID(ctx, id)
}

// Release выплачивает средства целиком или по одной вехе.
// Повторная выплата всей сделки — no-op: состояние не регрессирует.
func (r *TransactionRepository) Release(ctx context.Context, transactionID uuid.UUID, milestoneID *uuid.UUID) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin %w", err)
	}
	defer tx.Rollback()

	t, err := lockTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if milestoneID == nil {
		// Выплата всей сделки.
		if t.Status == models.TransactionStatusCompleted && t.EscrowStatus == models.EscrowStatusReleased {
			// Уже выплачено, состояние не меняем.
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("transaction repository: commit %w", err)
			}
			return r.GetByID(ctx, transactionID)
		}
		if t.EscrowStatus == models.EscrowStatusRefunded || t.EscrowStatus == models.EscrowStatusCancelled {
			return nil, ErrInvalidState
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET status = $2, escrow_status = $3, updated_at = NOW()
			WHERE id = $1
		`, transactionID, models.TransactionStatusCompleted, models.EscrowStatusReleased); err != nil {
			return nil, fmt.Errorf("transaction repository: release %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE milestones SET status = $2, escrow_status = $3, completed_at = $4, updated_at = NOW()
			WHERE transaction_id = $1
		`, transactionID, models.MilestoneStatusCompleted, models.EscrowStatusReleased, now); err != nil {
			return nil, fmt.Errorf("transaction repository: release milestones %w", err)
		}
	} else {
		// Выплата одной вехи.
		m, err := lockMilestone(ctx, tx, transactionID, *milestoneID)
		if err != nil {
			return nil, err
		}
		if t.EscrowStatus == models.EscrowStatusRefunded || t.EscrowStatus == models.EscrowStatusCancelled {
			return nil, ErrInvalidState
		}
		if m.EscrowStatus == models.EscrowStatusRefunded {
			return nil, ErrInvalidState
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE milestones SET status = $2, escrow_status = $3, completed_at = $4, updated_at = NOW()
			WHERE id = $1
		`, m.ID, models.MilestoneStatusCompleted, models.EscrowStatusReleased, now); err != nil {
			return nil, fmt.Errorf("transaction repository: release milestone %w", err)
		}

		// Если все вехи завершены — продвигаем сделку целиком.
		allCompleted, err := allMilestonesIn(ctx, tx, transactionID, models.MilestoneStatusCompleted)
		if err != nil {
			return nil, err
		}
		if allCompleted {
			if _, err := tx.ExecContext(ctx, `
				UPDATE transactions SET status = $2, escrow_status = $3, updated_at = NOW()
				WHERE id = $1
			`, transactionID, models.TransactionStatusCompleted, models.EscrowStatusReleased); err != nil {
				return nil, fmt.Errorf("transaction repository: promote transaction %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("transaction repository: commit %w", err)
	}
	return r.GetByID(ctx, transactionID)
}

// Refund возвращает средства покупателю целиком или по одной вехе.
// Возврат одной вехи по умолчанию не трогает статус сделки; при
// promoteParent=true сделка переводится в refunded, когда возвращены все вехи.
func (r *TransactionRepository) Refund(ctx context.Context, transactionID uuid.UUID, milestoneID *uuid.UUID, reason string, promoteParent bool) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin %w", err)
	}
	defer tx.Rollback()

	t, err := lockTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = defaultRefundReason
	}

	if milestoneID == nil {
		if t.Status == models.TransactionStatusRefunded && t.EscrowStatus == models.EscrowStatusRefunded {
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("transaction repository: commit %w", err)
			}
			return r.GetByID(ctx, transactionID)
		}
		// Удержание двигается только вперёд: выплаченное не возвращаем.
		if t.EscrowStatus == models.EscrowStatusReleased || t.EscrowStatus == models.EscrowStatusCancelled {
			return nil, ErrInvalidState
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET status = $2, escrow_status = $3, updated_at = NOW()
			WHERE id = $1
		`, transactionID, models.TransactionStatusRefunded, models.EscrowStatusRefunded); err != nil {
			return nil, fmt.Errorf("transaction repository: refund %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE milestones SET status = $2, escrow_status = $3, rejection_reason = $4, updated_at = NOW()
			WHERE transaction_id = $1
		`, transactionID, models.MilestoneStatusRefunded, models.EscrowStatusRefunded, reason); err != nil {
			return nil, fmt.Errorf("transaction repository: refund milestones %w", err)
		}
	} else {
		m, err := lockMilestone(ctx, tx, transactionID, *milestoneID)
		if err != nil {
			return nil, err
		}
		if m.EscrowStatus == models.EscrowStatusReleased {
			return nil, ErrInvalidState
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE milestones SET status = $2, escrow_status = $3, rejection_reason = $4, updated_at = NOW()
			WHERE id = $1
		`, m.ID, models.MilestoneStatusRefunded, models.EscrowStatusRefunded, reason); err != nil {
			return nil, fmt.Errorf("transaction repository: refund milestone %w", err)
		}

		if promoteParent {
			allRefunded, err := allMilestonesIn(ctx, tx, transactionID, models.MilestoneStatusRefunded)
			if err != nil {
				return nil, err
			}
			if allRefunded {
				if _, err := tx.ExecContext(ctx, `
					UPDATE transactions SET status = $2, escrow_status = $3, updated_at = NOW()
					WHERE id = $1
				`, transactionID, models.TransactionStatusRefunded, models.EscrowStatusRefunded); err != nil {
					return nil, fmt.Errorf("transaction repository: promote refund %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("transaction repository: commit %w", err)
	}
	return r.GetByID(ctx, transactionID)
}

// CountsByStatus возвращает количество и сумму сделок по статусам.
func (r *TransactionRepository) CountsByStatus(ctx context.Context) (map[string]StatusAggregate, error) {
	rows := []struct {
		Status string  `db:"status"`
		Count  int     `db:"count"`
		Total  float64 `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
		FROM transactions GROUP BY status
	`); err != nil {
		return nil, fmt.Errorf("transaction repository: counts by status %w", err)
	}

	result := make(map[string]StatusAggregate, len(rows))
	for _, row := range rows {
		result[row.Status] = StatusAggregate{Count: row.Count, Total: row.Total}
	}
	return result, nil
}

// StatusAggregate — количество и сумма сделок одной группы.
type StatusAggregate struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// MonthAggregate — агрегат по месяцу создания (ключ YYYY-MM).
type MonthAggregate struct {
	Month string  `db:"month" json:"month"`
	Count int     `db:"count" json:"count"`
	Total float64 `db:"total" json:"total"`
}

// CountsByMonth возвращает агрегаты по месяцу создания сделки.
func (r *TransactionRepository) CountsByMonth(ctx context.Context) ([]MonthAggregate, error) {
	var rows []MonthAggregate
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT to_char(created_at, 'YYYY-MM') AS month, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
		FROM transactions
		GROUP BY to_char(created_at, 'YYYY-MM')
		ORDER BY month ASC
	`); err != nil {
		return nil, fmt.Errorf("transaction repository: counts by month %w", err)
	}
	return rows, nil
}

// SumAmountByStatuses возвращает сумму по сделкам в указанных статусах.
func (r *TransactionRepository) SumAmountByStatuses(ctx context.Context, statuses []models.TransactionStatus) (float64, error) {
	query, args, err := sqlx.In(`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status IN (?)`, statuses)
	if err != nil {
		return 0, fmt.Errorf("transaction repository: sum query %w", err)
	}
	query = r.db.Rebind(query)

	var total float64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("transaction repository: sum by statuses %w", err)
	}
	return total, nil
}

// SumAmountByStatusesSince — то же, но только по сделкам, созданным не раньше since.
func (r *TransactionRepository) SumAmountByStatusesSince(ctx context.Context, statuses []models.TransactionStatus, since time.Time) (float64, error) {
	query, args, err := sqlx.In(`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status IN (?) AND created_at >= ?`, statuses, since)
	if err != nil {
		return 0, fmt.Errorf("transaction repository: sum query %w", err)
	}
	query = r.db.Rebind(query)

	var total float64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("transaction repository: sum by statuses since %w", err)
	}
	return total, nil
}

// lockTransaction читает сделку с блокировкой строки.
func lockTransaction(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	err := tx.GetContext(ctx, &t, `SELECT * FROM transactions WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transaction repository: lock %w", err)
	}
	return &t, nil
}

// lockMilestone читает веху с блокировкой строки, проверяя принадлежность сделке.
func lockMilestone(ctx context.Context, tx *sqlx.Tx, transactionID, milestoneID uuid.UUID) (*models.Milestone, error) {
	var m models.Milestone
	err := tx.GetContext(ctx, &m, `
		SELECT * FROM milestones WHERE id = $1 AND transaction_id = $2 FOR UPDATE
	`, milestoneID, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transaction repository: lock milestone %w", err)
	}
	return &m, nil
}

// allMilestonesIn проверяет, что все вехи сделки находятся в указанном статусе.
func allMilestonesIn(ctx context.Context, tx *sqlx.Tx, transactionID uuid.UUID, status models.MilestoneStatus) (bool, error) {
	var remaining int
	if err := tx.GetContext(ctx, &remaining, `
		SELECT COUNT(*) FROM milestones WHERE transaction_id = $1 AND status <> $2
	`, transactionID, status); err != nil {
		return false, fmt.Errorf("transaction repository: count milestones %w", err)
	}
	return remaining == 0, nil
}
