package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/safedeal/escrow-backend/internal/logger"
	"github.com/safedeal/escrow-backend/internal/metrics"
	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/payment"
	"github.com/safedeal/escrow-backend/internal/pkg/apperror"
	"github.com/safedeal/escrow-backend/internal/repository"
	"github.com/safedeal/escrow-backend/internal/ws"
)

// PaymentRepo описывает зависимости PaymentService от слоя хранилища.
type PaymentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	SetPaymentProcessing(ctx context.Context, id uuid.UUID, paymentID string) error
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// PaymentService инкапсулирует работу с платёжным шлюзом.
type PaymentService struct {
	repo     PaymentRepo
	gateway  payment.Gateway
	audit    AuditLog
	notifier Notifier
}

// NewPaymentService создаёт платёжный сервис.
func NewPaymentService(repo PaymentRepo, gateway payment.Gateway, audit AuditLog, notifier Notifier) *PaymentService {
	return &PaymentService{
		repo:     repo,
		gateway:  gateway,
		audit:    audit,
		notifier: notifier,
	}
}

// PaymentOrder — данные для оплаты на клиентской стороне.
type PaymentOrder struct {
	OrderID  string  `json:"order_id"`
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	KeyID    string  `json:"key_id"`
	Total    float64 `json:"total"`
}

// CreateOrder создаёт заказ на оплату сделки у шлюза. Доступно только
// покупателю; сделка должна ожидать оплаты.
func (s *PaymentService) CreateOrder(ctx context.Context, transactionID, requesterID uuid.UUID) (*PaymentOrder, error) {
	t, err := s.repo.GetByID(ctx, transactionID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, apperror.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if t.BuyerID != requesterID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "оплату создаёт только покупатель")
	}
	if t.Status != models.TransactionStatusPending || t.EscrowStatus != models.EscrowStatusAwaitingPayment {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "сделка не ожидает оплаты")
	}

	// Шлюз принимает сумму в минорных единицах валюты.
	amountMinor := int64(math.Round(t.Amount * 100))

	order, err := s.gateway.CreateOrder(ctx, amountMinor, t.Currency, t.ID.String())
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "платёжный шлюз недоступен")
	}

	if err := s.repo.SetPaymentProcessing(ctx, t.ID, order.ID); err != nil {
		return nil, mapEscrowError(err)
	}

	if err := s.audit.Add(ctx, t.ID, nil, &requesterID, models.LogActionPaymentInitiated, map[string]interface{}{
		"order_id": order.ID,
		"amount":   amountMinor,
	}); err != nil {
		logger.Log.WithError(err).Warn("payment service: не удалось записать журнал оплаты")
	}

	return &PaymentOrder{
		OrderID:  order.ID,
		Amount:   amountMinor,
		Currency: t.Currency,
		KeyID:    s.gateway.KeyID(),
		Total:    t.Amount,
	}, nil
}

// Confirm сверяет оплату со шлюзом и фиксирует поступление средств:
// сделка становится active/funded/paid, вехи получают финансирование.
func (s *PaymentService) Confirm(ctx context.Context, transactionID, requesterID uuid.UUID, requesterRole string) (*models.Transaction, error) {
	t, err := s.repo.GetByID(ctx, transactionID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, apperror.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if t.BuyerID != requesterID && requesterRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if t.PaymentID == nil {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "оплата по сделке не создавалась")
	}

	order, err := s.gateway.FetchOrder(ctx, *t.PaymentID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "платёжный шлюз недоступен")
	}
	if order.Status != payment.OrderStatusPaid {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "оплата ещё не поступила")
	}

	confirmed, err := s.repo.ConfirmPayment(ctx, transactionID)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	metrics.PaymentsConfirmed.Inc()

	if err := s.audit.Add(ctx, confirmed.ID, nil, &requesterID, models.LogActionPaymentConfirmed, map[string]interface{}{
		"order_id": *t.PaymentID,
	}); err != nil {
		logger.Log.WithError(err).Warn("payment service: не удалось записать журнал подтверждения")
	}

	if s.notifier != nil {
		payload := map[string]interface{}{
			"transaction_id": confirmed.ID,
			"status":         confirmed.Status,
			"escrow_status":  confirmed.EscrowStatus,
		}
		for _, userID := range []uuid.UUID{confirmed.BuyerID, confirmed.SellerID} {
			if err := s.notifier.BroadcastToUser(userID, ws.EventPaymentConfirmed, payload); err != nil {
				logger.Log.WithError(err).Debug("payment service: не удалось отправить уведомление")
			}
		}
	}

	return confirmed, nil
}
