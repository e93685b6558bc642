package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction — сделка с удержанием средств между покупателем и продавцом.
// Строка никогда не удаляется физически: отмена — это статус.
type Transaction struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	Title          string            `db:"title" json:"title"`
	Description    string            `db:"description" json:"description"`
	Type           string            `db:"type" json:"type"`
	Amount         float64           `db:"amount" json:"amount"`
	Currency       string            `db:"currency" json:"currency"`
	DueDate        *time.Time        `db:"due_date" json:"due_date,omitempty"`
	Status         TransactionStatus `db:"status" json:"status"`
	EscrowStatus   EscrowStatus      `db:"escrow_status" json:"escrow_status"`
	PaymentMethod  *string           `db:"payment_method" json:"payment_method,omitempty"`
	PaymentStatus  PaymentStatus     `db:"payment_status" json:"payment_status"`
	PaymentID      *string           `db:"payment_id" json:"payment_id,omitempty"`
	PaymentDetails *string           `db:"payment_details" json:"payment_details,omitempty"`
	BuyerID        uuid.UUID         `db:"buyer_id" json:"buyer_id"`
	SellerID       uuid.UUID         `db:"seller_id" json:"seller_id"`
	AdminID        *uuid.UUID        `db:"admin_id" json:"admin_id,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`

	Buyer      *User       `json:"buyer,omitempty"`
	Seller     *User       `json:"seller,omitempty"`
	Milestones []Milestone `json:"milestones,omitempty"`
}

// Milestone — частичный этап сделки со своей суммой и собственным
// жизненным циклом выплаты/возврата. Принадлежит ровно одной сделке.
type Milestone struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	TransactionID   uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Amount          float64         `db:"amount" json:"amount"`
	DueDate         *time.Time      `db:"due_date" json:"due_date,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	Status          MilestoneStatus `db:"status" json:"status"`
	EscrowStatus    EscrowStatus    `db:"escrow_status" json:"escrow_status"`
	CompletionProof *string         `db:"completion_proof" json:"completion_proof,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
