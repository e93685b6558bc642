package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute — формальное разногласие по сделке, опционально привязанное к вехе.
// Решение принимает администратор; оно каскадно меняет статусы сделки и вехи.
type Dispute struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	TransactionID  uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	MilestoneID    *uuid.UUID      `db:"milestone_id" json:"milestone_id,omitempty"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	Status         DisputeStatus   `db:"status" json:"status"`
	Resolution     *string         `db:"resolution" json:"resolution,omitempty"`
	ResolutionType *ResolutionType `db:"resolution_type" json:"resolution_type,omitempty"`
	RaisedByID     uuid.UUID       `db:"raised_by_id" json:"raised_by_id"`
	AssignedToID   *uuid.UUID      `db:"assigned_to_id" json:"assigned_to_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	Evidence []DisputeEvidence `json:"evidence,omitempty"`
}

// DisputeEvidence — доказательство по спору. Только добавление, без правок.
type DisputeEvidence struct {
	ID            uuid.UUID `db:"id" json:"id"`
	DisputeID     uuid.UUID `db:"dispute_id" json:"dispute_id"`
	Title         string    `db:"title" json:"title"`
	Description   *string   `db:"description" json:"description,omitempty"`
	FileURL       *string   `db:"file_url" json:"file_url,omitempty"`
	FileType      *string   `db:"file_type" json:"file_type,omitempty"`
	SubmittedByID uuid.UUID `db:"submitted_by_id" json:"submitted_by_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
