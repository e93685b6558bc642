package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/safedeal/escrow-backend/internal/logger"
	"github.com/safedeal/escrow-backend/internal/metrics"
	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/pkg/apperror"
	"github.com/safedeal/escrow-backend/internal/repository"
	"github.com/safedeal/escrow-backend/internal/validation"
	"github.com/safedeal/escrow-backend/internal/ws"
)

// Валюта по умолчанию, когда клиент её не указал.
const defaultCurrency = "USD"

// Notifier рассылает события жизненного цикла участникам через WebSocket.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// TransactionRepo описывает зависимости сервисов сделок от слоя хранилища.
type TransactionRepo interface {
	Create(ctx context.Context, t *models.Transaction, milestones []models.Milestone) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	GetMilestone(ctx context.Context, transactionID, milestoneID uuid.UUID) (*models.Milestone, error)
}

// UserChecker проверяет существование пользователей.
type UserChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// AuditLog ведёт журнал действий над сделками.
type AuditLog interface {
	Add(ctx context.Context, transactionID uuid.UUID, milestoneID, userID *uuid.UUID, action string, details interface{}) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionLog, error)
}

// ChatCreator создаёт чат-группу покупатель+продавец для сделки.
type ChatCreator interface {
	Create(ctx context.Context, g *models.ChatGroup) error
}

// TransactionService инкапсулирует создание и чтение сделок.
type TransactionService struct {
	repo     TransactionRepo
	users    UserChecker
	audit    AuditLog
	chats    ChatCreator
	notifier Notifier

	// Политика: требовать, чтобы сумма вех совпадала с суммой сделки.
	enforceMilestoneSum bool
}

// NewTransactionService создаёт сервис сделок.
func NewTransactionService(repo TransactionRepo, users UserChecker, audit AuditLog, chats ChatCreator, notifier Notifier, enforceMilestoneSum bool) *TransactionService {
	return &TransactionService{
		repo:                repo,
		users:               users,
		audit:               audit,
		chats:               chats,
		notifier:            notifier,
		enforceMilestoneSum: enforceMilestoneSum,
	}
}

// CreateTransactionInput содержит данные новой сделки.
type CreateTransactionInput struct {
	Title       string
	Description string
	Type        string
	Amount      float64
	Currency    string
	DueDate     *time.Time
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	Milestones  []models.Milestone
}

// Create создаёт сделку в начальном состоянии pending/awaiting_payment/unpaid.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (*models.Transaction, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAmount(in.Amount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	if err := validation.ValidateCurrency(in.Currency); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.BuyerID == in.SellerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец не могут совпадать")
	}

	for _, role := range []struct {
		id   uuid.UUID
		name string
	}{
		{in.BuyerID, "покупатель"},
		{in.SellerID, "продавец"},
	} {
		exists, err := s.users.Exists(ctx, role.id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperror.New(apperror.ErrCodeNotFound, role.name+" не найден")
		}
	}

	// Вехи наследуют валидацию и стартуют в pending/awaiting_funding.
	var milestonesTotal float64
	for i := range in.Milestones {
		m := &in.Milestones[i]
		if err := validation.ValidateTitle(m.Title); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		if err := validation.ValidateDescription(m.Description); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		if err := validation.ValidateAmount(m.Amount); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		m.Status = models.MilestoneStatusPending
		m.EscrowStatus = models.EscrowStatusAwaitingFunding
		milestonesTotal += m.Amount
	}
	// Совпадение суммы вех с суммой сделки ожидается, но по умолчанию
	// не навязывается; строгий режим включается конфигурацией.
	if s.enforceMilestoneSum && len(in.Milestones) > 0 && math.Abs(milestonesTotal-in.Amount) > 0.01 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма вех должна совпадать с суммой сделки")
	}

	t := &models.Transaction{
		Title:         in.Title,
		Description:   in.Description,
		Type:          in.Type,
		Amount:        in.Amount,
		Currency:      in.Currency,
		DueDate:       in.DueDate,
		Status:        models.TransactionStatusPending,
		EscrowStatus:  models.EscrowStatusAwaitingPayment,
		PaymentStatus: models.PaymentStatusUnpaid,
		BuyerID:       in.BuyerID,
		SellerID:      in.SellerID,
	}

	if err := s.repo.Create(ctx, t, in.Milestones); err != nil {
		return nil, err
	}

	if err := s.audit.Add(ctx, t.ID, nil, &in.BuyerID, models.LogActionCreated, map[string]interface{}{
		"amount":   t.Amount,
		"currency": t.Currency,
	}); err != nil {
		logger.Log.WithError(err).Warn("transaction service: не удалось записать журнал создания")
	}

	if err := s.chats.Create(ctx, &models.ChatGroup{
		TransactionID: t.ID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
	}); err != nil {
		logger.Log.WithError(err).Warn("transaction service: не удалось создать чат-группу")
	}

	metrics.TransactionsCreated.Inc()
	s.notifyParties(t, ws.EventTransactionCreated)

	return t, nil
}

// Get возвращает сделку; доступ только участникам и администратору.
func (s *TransactionService) Get(ctx context.Context, id, requesterID uuid.UUID, requesterRole string) (*models.Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, apperror.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if !canAccessTransaction(t, requesterID, requesterRole) {
		return nil, apperror.ErrForbidden
	}
	return t, nil
}

// ListForUser возвращает сделки, где пользователь — покупатель или продавец.
func (s *TransactionService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Logs возвращает журнал сделки; доступ только участникам и администратору.
func (s *TransactionService) Logs(ctx context.Context, transactionID, requesterID uuid.UUID, requesterRole string) ([]models.TransactionLog, error) {
	t, err := s.repo.GetByID(ctx, transactionID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, apperror.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if !canAccessTransaction(t, requesterID, requesterRole) {
		return nil, apperror.ErrForbidden
	}
	return s.audit.ListByTransaction(ctx, transactionID)
}

// notifyParties отправляет событие обоим участникам сделки.
func (s *TransactionService) notifyParties(t *models.Transaction, event string) {
	if s.notifier == nil {
		return
	}
	payload := map[string]interface{}{
		"transaction_id": t.ID,
		"status":         t.Status,
		"escrow_status":  t.EscrowStatus,
	}
	for _, userID := range []uuid.UUID{t.BuyerID, t.SellerID} {
		if err := s.notifier.BroadcastToUser(userID, event, payload); err != nil {
			logger.Log.WithError(err).Debug("transaction service: не удалось отправить уведомление")
		}
	}
}

// canAccessTransaction: участник сделки или администратор.
func canAccessTransaction(t *models.Transaction, userID uuid.UUID, role string) bool {
	return role == models.RoleAdmin || t.BuyerID == userID || t.SellerID == userID
}
