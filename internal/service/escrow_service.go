package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/safedeal/escrow-backend/internal/logger"
	"github.com/safedeal/escrow-backend/internal/metrics"
	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/pkg/apperror"
	"github.com/safedeal/escrow-backend/internal/repository"
	"github.com/safedeal/escrow-backend/internal/validation"
	"github.com/safedeal/escrow-backend/internal/ws"
)

// EscrowRepo описывает операции над удержанными средствами.
type EscrowRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Release(ctx context.Context, transactionID uuid.UUID, milestoneID *uuid.UUID) (*models.Transaction, error)
	Refund(ctx context.Context, transactionID uuid.UUID, milestoneID *uuid.UUID, reason string, promoteParent bool) (*models.Transaction, error)
}

// EscrowService инкапсулирует выплату и возврат удержанных средств.
type EscrowService struct {
	repo     EscrowRepo
	audit    AuditLog
	notifier Notifier

	auditFundOps         bool
	refundPromotesParent bool
}

// NewEscrowService создаёт сервис удержания средств.
func NewEscrowService(repo EscrowRepo, audit AuditLog, notifier Notifier, auditFundOps, refundPromotesParent bool) *EscrowService {
	return &EscrowService{
		repo:                 repo,
		audit:                audit,
		notifier:             notifier,
		auditFundOps:         auditFundOps,
		refundPromotesParent: refundPromotesParent,
	}
}

// Release выплачивает средства продавцу: всю сделку или одну веху.
func (s *EscrowService) Release(ctx context.Context, transactionID uuid.UUID, milestoneID *uuid.UUID, requesterID uuid.UUID, requesterRole string) (*models.Transaction, error) {
	if err := s.checkParticipant(ctx, transactionID, requesterID, requesterRole); err != nil {
		return nil, err
	}

	t, err := s.repo.Release(ctx, transactionID, milestoneID)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	scope := "transaction"
	if milestoneID != nil {
		scope = "milestone"
	}
	metrics.FundsReleased.WithLabelValues(scope).Inc()
	metrics.ReleasedAmount.Add(releasedAmount(t, milestoneID))

	if s.auditFundOps {
		if err := s.audit.Add(ctx, t.ID, milestoneID, &requesterID, models.LogActionReleased, map[string]interface{}{
			"scope":         scope,
			"status":        t.Status,
			"escrow_status": t.EscrowStatus,
		}); err != nil {
			logger.Log.WithError(err).Warn("escrow service: не удалось записать журнал выплаты")
		}
	}

	s.notifyParties(t, ws.EventFundsReleased)
	return t, nil
}

// Refund возвращает средства покупателю: всю сделку или одну веху.
func (s *EscrowService) Refund(ctx context.Context, transactionID uuid.UUID, milestoneID *uuid.UUID, reason string, requesterID uuid.UUID, requesterRole string) (*models.Transaction, error) {
	if err := s.checkParticipant(ctx, transactionID, requesterID, requesterRole); err != nil {
		return nil, err
	}

	if reason != "" {
		if err := validation.ValidateLength("причина возврата", reason, 0, validation.MaxRejectionReasonChars); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	t, err := s.repo.Refund(ctx, transactionID, milestoneID, reason, s.refundPromotesParent)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	scope := "transaction"
	if milestoneID != nil {
		scope = "milestone"
	}
	metrics.FundsRefunded.WithLabelValues(scope).Inc()
	metrics.RefundedAmount.Add(refundedAmount(t, milestoneID))

	if s.auditFundOps {
		if err := s.audit.Add(ctx, t.ID, milestoneID, &requesterID, models.LogActionRefunded, map[string]interface{}{
			"scope":         scope,
			"reason":        reason,
			"status":        t.Status,
			"escrow_status": t.EscrowStatus,
		}); err != nil {
			logger.Log.WithError(err).Warn("escrow service: не удалось записать журнал возврата")
		}
	}

	s.notifyParties(t, ws.EventFundsRefunded)
	return t, nil
}

// checkParticipant загружает сделку и проверяет право на операции со средствами.
func (s *EscrowService) checkParticipant(ctx context.Context, transactionID, requesterID uuid.UUID, requesterRole string) error {
	t, err := s.repo.GetByID(ctx, transactionID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return apperror.ErrTransactionNotFound
	}
	if err != nil {
		return err
	}
	if !canAccessTransaction(t, requesterID, requesterRole) {
		return apperror.ErrForbidden
	}
	return nil
}

func (s *EscrowService) notifyParties(t *models.Transaction, event string) {
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
			logger.Log.WithError(err).Debug("escrow service: не удалось отправить уведомление")
		}
	}
}

// releasedAmount: сумма вехи при частичной выплате, иначе сумма сделки.
func releasedAmount(t *models.Transaction, milestoneID *uuid.UUID) float64 {
	if milestoneID == nil {
		return t.Amount
	}
	for _, m := range t.Milestones {
		if m.ID == *milestoneID {
			return m.Amount
		}
	}
	return 0
}

func refundedAmount(t *models.Transaction, milestoneID *uuid.UUID) float64 {
	return releasedAmount(t, milestoneID)
}

// mapEscrowError переводит ошибки репозитория в ошибки приложения.
func mapEscrowError(err error) error {
	switch {
	case errors.Is(err, repository.ErrTransactionNotFound):
		return apperror.ErrTransactionNotFound
	case errors.Is(err, repository.ErrMilestoneNotFound):
		return apperror.ErrMilestoneNotFound
	case errors.Is(err, repository.ErrInvalidState):
		return apperror.New(apperror.ErrCodeInvalidState, "операция недопустима в текущем состоянии сделки")
	default:
		return err
	}
}
