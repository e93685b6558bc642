package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Действия, фиксируемые в журнале сделки.
const (
	LogActionCreated          = "created"
	LogActionPaymentInitiated = "payment_initiated"
	LogActionPaymentConfirmed = "payment_confirmed"
	LogActionReleased         = "released"
	LogActionRefunded         = "refunded"
	LogActionDisputeRaised    = "dispute_raised"
	LogActionDisputeResolved  = "dispute_resolved"
)

// TransactionLog — запись журнала аудита сделки. Только добавление:
// записи никогда не изменяются и не удаляются.
type TransactionLog struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	TransactionID uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	MilestoneID   *uuid.UUID      `db:"milestone_id" json:"milestone_id,omitempty"`
	UserID        *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Action        string          `db:"action" json:"action"`
	Details       json.RawMessage `db:"details" json:"details"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
