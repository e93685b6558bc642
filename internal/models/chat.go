package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatGroup связывает покупателя и продавца сделки для обмена сообщениями.
// Создаётся вместе со сделкой.
type ChatGroup struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TransactionID uuid.UUID `db:"transaction_id" json:"transaction_id"`
	BuyerID       uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID      uuid.UUID `db:"seller_id" json:"seller_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
