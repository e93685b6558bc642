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

// DisputeRepo описывает зависимости DisputeService от слоя хранилища.
type DisputeRepo interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, status *models.DisputeStatus, limit, offset int) ([]models.Dispute, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Dispute, error)
	Update(ctx context.Context, id uuid.UUID, fields repository.UpdateFields) (*models.Dispute, error)
	AddEvidence(ctx context.Context, e *models.DisputeEvidence) error
	ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error)
}

// DisputeService инкапсулирует открытие и разрешение споров.
type DisputeService struct {
	repo         DisputeRepo
	transactions TransactionRepo
	audit        AuditLog
	notifier     Notifier
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(repo DisputeRepo, transactions TransactionRepo, audit AuditLog, notifier Notifier) *DisputeService {
	return &DisputeService{
		repo:         repo,
		transactions: transactions,
		audit:        audit,
		notifier:     notifier,
	}
}

// RaiseDisputeInput содержит данные нового спора.
type RaiseDisputeInput struct {
	TransactionID uuid.UUID
	MilestoneID   *uuid.UUID
	Title         string
	Description   string
	RaisedByID    uuid.UUID
	RaisedByRole  string
}

// Raise открывает спор по сделке. Сделка и веха каскадно помечаются disputed.
func (s *DisputeService) Raise(ctx context.Context, in RaiseDisputeInput) (*models.Dispute, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	t, err := s.transactions.GetByID(ctx, in.TransactionID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, apperror.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if !canAccessTransaction(t, in.RaisedByID, in.RaisedByRole) {
		return nil, apperror.ErrForbidden
	}

	// Спор нельзя открыть по завершённой сделке: средства уже распределены.
	if t.EscrowStatus.Terminal() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор нельзя открыть по завершённой сделке")
	}

	if in.MilestoneID != nil {
		if _, err := s.transactions.GetMilestone(ctx, in.TransactionID, *in.MilestoneID); err != nil {
			if errors.Is(err, repository.ErrMilestoneNotFound) {
				return nil, apperror.ErrMilestoneNotFound
			}
			return nil, err
		}
	}

	d := &models.Dispute{
		TransactionID: in.TransactionID,
		MilestoneID:   in.MilestoneID,
		Title:         in.Title,
		Description:   in.Description,
		Status:        models.DisputeStatusOpen,
		RaisedByID:    in.RaisedByID,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, mapEscrowError(err)
	}

	metrics.DisputesRaised.Inc()

	if err := s.audit.Add(ctx, in.TransactionID, in.MilestoneID, &in.RaisedByID, models.LogActionDisputeRaised, map[string]interface{}{
		"dispute_id": d.ID,
		"title":      d.Title,
	}); err != nil {
		logger.Log.WithError(err).Warn("dispute service: не удалось записать журнал спора")
	}

	s.notifyParties(t, ws.EventDisputeRaised, d)
	return d, nil
}

// Get возвращает спор; доступ только участникам сделки и администратору.
func (s *DisputeService) Get(ctx context.Context, id, requesterID uuid.UUID, requesterRole string) (*models.Dispute, error) {
	d, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}

	t, err := s.transactions.GetByID(ctx, d.TransactionID)
	if err != nil {
		return nil, err
	}
	if !canAccessTransaction(t, requesterID, requesterRole) {
		return nil, apperror.ErrForbidden
	}
	return d, nil
}

// ListEvidence возвращает доказательства спора; доступ как у Get.
func (s *DisputeService) ListEvidence(ctx context.Context, id, requesterID uuid.UUID, requesterRole string) ([]models.DisputeEvidence, error) {
	if _, err := s.Get(ctx, id, requesterID, requesterRole); err != nil {
		return nil, err
	}
	return s.repo.ListEvidence(ctx, id)
}

// List возвращает споры для административного обзора.
func (s *DisputeService) List(ctx context.Context, status *models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	if status != nil && !status.Valid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус спора")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, status, limit, offset)
}

// ResolveInput — изменения спора администратором.
type ResolveInput struct {
	Status         *models.DisputeStatus
	Resolution     *string
	ResolutionType *models.ResolutionType
	AssignedToID   *uuid.UUID
	AdminID        uuid.UUID
}

// Resolve применяет решение администратора. Переход в resolved требует типа
// решения; каскад статусов сделки выполняется в репозитории под блокировкой.
func (s *DisputeService) Resolve(ctx context.Context, id uuid.UUID, in ResolveInput) (*models.Dispute, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус спора")
	}
	if in.ResolutionType != nil && !in.ResolutionType.Valid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип решения")
	}
	if in.Resolution != nil {
		if err := validation.ValidateNonEmpty("решение", *in.Resolution); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	resolving := in.Status != nil && *in.Status == models.DisputeStatusResolved
	if resolving && in.ResolutionType == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "для разрешения спора требуется тип решения")
	}

	d, err := s.repo.Update(ctx, id, repository.UpdateFields{
		Status:         in.Status,
		Resolution:     in.Resolution,
		ResolutionType: in.ResolutionType,
		AssignedToID:   in.AssignedToID,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDisputeNotFound):
			return nil, apperror.ErrDisputeNotFound
		case errors.Is(err, repository.ErrInvalidDisputeTransition):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "недопустимый переход статуса спора")
		default:
			return nil, mapEscrowError(err)
		}
	}

	if resolving {
		metrics.DisputesResolved.WithLabelValues(string(*in.ResolutionType)).Inc()

		if err := s.audit.Add(ctx, d.TransactionID, d.MilestoneID, &in.AdminID, models.LogActionDisputeResolved, map[string]interface{}{
			"dispute_id":      d.ID,
			"resolution_type": d.ResolutionType,
		}); err != nil {
			logger.Log.WithError(err).Warn("dispute service: не удалось записать журнал решения")
		}

		if t, err := s.transactions.GetByID(ctx, d.TransactionID); err == nil {
			s.notifyParties(t, ws.EventDisputeResolved, d)
		}
	}

	return d, nil
}

// EvidenceInput содержит данные нового доказательства.
type EvidenceInput struct {
	DisputeID     uuid.UUID
	Title         string
	Description   *string
	FileURL       *string
	FileType      *string
	SubmittedByID uuid.UUID
	SubmitterRole string
}

// AddEvidence прикладывает доказательство к спору.
func (s *DisputeService) AddEvidence(ctx context.Context, in EvidenceInput) (*models.DisputeEvidence, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	d, err := s.repo.GetByID(ctx, in.DisputeID)
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}

	t, err := s.transactions.GetByID(ctx, d.TransactionID)
	if err != nil {
		return nil, err
	}
	if !canAccessTransaction(t, in.SubmittedByID, in.SubmitterRole) {
		return nil, apperror.ErrForbidden
	}

	if d.Status.Terminal() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "доказательства по закрытому спору не принимаются")
	}

	e := &models.DisputeEvidence{
		DisputeID:     in.DisputeID,
		Title:         in.Title,
		Description:   in.Description,
		FileURL:       in.FileURL,
		FileType:      in.FileType,
		SubmittedByID: in.SubmittedByID,
	}

	if err := s.repo.AddEvidence(ctx, e); err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *DisputeService) notifyParties(t *models.Transaction, event string, d *models.Dispute) {
	if s.notifier == nil {
		return
	}
	payload := map[string]interface{}{
		"transaction_id": t.ID,
		"dispute_id":     d.ID,
		"status":         d.Status,
	}
	for _, userID := range []uuid.UUID{t.BuyerID, t.SellerID} {
		if err := s.notifier.BroadcastToUser(userID, event, payload); err != nil {
			logger.Log.WithError(err).Debug("dispute service: не удалось отправить уведомление")
		}
	}
}
