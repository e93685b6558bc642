package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/repository/common"
)

var (
	ErrDisputeNotFound          = errors.New("dispute not found")
	ErrInvalidDisputeTransition = errors.New("dispute status transition not allowed")
)

// DisputeRepository отвечает за таблицы disputes и dispute_evidence.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт экземпляр репозитория.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create открывает спор и каскадно помечает сделку (и веху) как disputed.
// Всё в одной транзакции БД под блокировкой строки сделки.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := lockTransaction(ctx, tx, d.TransactionID); err != nil {
			return err
		}

		if d.MilestoneID != nil {
			if _, err := lockMilestone(ctx, tx, d.TransactionID, *d.MilestoneID); err != nil {
				return err
			}
		}

		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO disputes (transaction_id, milestone_id, title, description, status, raised_by_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`, d.TransactionID, d.MilestoneID, d.Title, d.Description, d.Status, d.RaisedByID,
		).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return fmt.Errorf("dispute repository: create %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1
		`, d.TransactionID, models.TransactionStatusDisputed); err != nil {
			return fmt.Errorf("dispute repository: mark transaction disputed %w", err)
		}

		if d.MilestoneID != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE milestones SET status = $2, updated_at = NOW() WHERE id = $1
			`, *d.MilestoneID, models.MilestoneStatusDisputed); err != nil {
				return fmt.Errorf("dispute repository: mark milestone disputed %w", err)
			}
		}

		return nil
	})
}

// GetByID возвращает спор с доказательствами.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
	if err != nil {
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &d.Evidence, `
		SELECT * FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at ASC
	`, id); err != nil {
		return nil, fmt.Errorf("dispute repository: load evidence %w", err)
	}
	return d, nil
}

// List возвращает споры, опционально отфильтрованные по статусу.
func (r *DisputeRepository) List(ctx context.Context, status *models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	var err error
	if status != nil {
		err = r.db.SelectContext(ctx, &disputes, `
			SELECT * FROM disputes WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, *status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &disputes, `
			SELECT * FROM disputes ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list %w", err)
	}
	return disputes, nil
}

// ListByTransaction возвращает споры по сделке.
func (r *DisputeRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE transaction_id = $1 ORDER BY created_at DESC
	`, transactionID); err != nil {
		return nil, fmt.Errorf("dispute repository: list by transaction %w", err)
	}
	return disputes, nil
}

// UpdateFields — изменяемые администратором поля спора.
type UpdateFields struct {
	Status         *models.DisputeStatus
	Resolution     *string
	ResolutionType *models.ResolutionType
	AssignedToID   *uuid.UUID
}

// Update применяет изменения администратора. Переход статуса проверяется по
// таблице переходов внутри транзакции БД; при переходе в resolved с заданным
// типом решения каскадно пишутся статусы сделки и вехи. Блокировка строки
// сделки берётся до чтения спора, чтобы конкурирующие release/refund/resolve
// сериализовались по одной сделке.
func (r *DisputeRepository) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: begin %w", err)
	}
	defer tx.Rollback()

	var d models.Dispute
	err = tx.GetContext(ctx, &d, `SELECT * FROM disputes WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: lock dispute %w", err)
	}

	t, err := lockTransaction(ctx, tx, d.TransactionID)
	if err != nil {
		return nil, err
	}

	if fields.Status != nil && *fields.Status != d.Status {
		if !d.Status.CanTransitionTo(*fields.Status) {
			return nil, ErrInvalidDisputeTransition
		}
		d.Status = *fields.Status
	}
	if fields.Resolution != nil {
		d.Resolution = fields.Resolution
	}
	if fields.ResolutionType != nil {
		d.ResolutionType = fields.ResolutionType
	}
	if fields.AssignedToID != nil {
		d.AssignedToID = fields.AssignedToID
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, resolution = $3, resolution_type = $4, assigned_to_id = $5, updated_at = NOW()
		WHERE id = $1
	`, d.ID, d.Status, d.Resolution, d.ResolutionType, d.AssignedToID); err != nil {
		return nil, fmt.Errorf("dispute repository: update %w", err)
	}

	// Каскад решения: переход в resolved с типом решения пишет пару статусов
	// в сделку и, для привязанного спора, в веху. Решение форсирует переход
	// из любого нетерминального состояния удержания; терминальное состояние
	// не перезаписывается.
	if fields.Status != nil && *fields.Status == models.DisputeStatusResolved && d.ResolutionType != nil {
		outcome, ok := d.ResolutionType.Outcome()
		if !ok {
			return nil, fmt.Errorf("dispute repository: %w", common.ErrInvalidInput)
		}

		if !t.EscrowStatus.Terminal() {
			if _, err := tx.ExecContext(ctx, `
				UPDATE transactions SET status = $2, escrow_status = $3, updated_at = NOW()
				WHERE id = $1
			`, t.ID, outcome.Status, outcome.EscrowStatus); err != nil {
				return nil, fmt.Errorf("dispute repository: apply resolution %w", err)
			}

			if d.MilestoneID != nil {
				if _, err := tx.ExecContext(ctx, `
					UPDATE milestones SET status = $2, escrow_status = $3, updated_at = NOW()
					WHERE id = $1 AND transaction_id = $4
				`, *d.MilestoneID, outcome.Status, outcome.EscrowStatus, t.ID); err != nil {
					return nil, fmt.Errorf("dispute repository: apply milestone resolution %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("dispute repository: commit %w", err)
	}
	return r.GetByID(ctx, id)
}

// AddEvidence добавляет доказательство к спору.
func (r *DisputeRepository) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	var exists int
	if err := r.db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM disputes WHERE id = $1`, e.DisputeID); err != nil {
		return fmt.Errorf("dispute repository: check dispute %w", err)
	}
	if exists == 0 {
		return ErrDisputeNotFound
	}

	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO dispute_evidence (dispute_id, title, description, file_url, file_type, submitted_by_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, e.DisputeID, e.Title, e.Description, e.FileURL, e.FileType, e.SubmittedByID,
	).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: add evidence %w", err)
	}
	return nil
}

// ListEvidence возвращает доказательства спора.
func (r *DisputeRepository) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	var evidence []models.DisputeEvidence
	if err := r.db.SelectContext(ctx, &evidence, `
		SELECT * FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at ASC
	`, disputeID); err != nil {
		return nil, fmt.Errorf("dispute repository: list evidence %w", err)
	}
	return evidence, nil
}
