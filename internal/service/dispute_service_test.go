package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/pkg/apperror"
	"github.com/safedeal/escrow-backend/internal/repository"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	if args.Error(0) == nil {
		d.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) List(ctx context.Context, status *models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Dispute, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Update(ctx context.Context, id uuid.UUID, fields repository.UpdateFields) (*models.Dispute, error) {
	args := m.Called(ctx, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	args := m.Called(ctx, disputeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DisputeEvidence), args.Error(1)
}

func (m *mockDisputeRepo) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	args := m.Called(ctx, e)
	if args.Error(0) == nil {
		e.ID = uuid.New()
	}
	return args.Error(0)
}

func TestDisputeService_Raise(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()
	tx := fundedTransaction(buyerID, sellerID)

	disputes := new(mockDisputeRepo)
	transactions := new(mockTransactionRepo)
	audit := new(mockAuditLog)

	transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	disputes.On("Create", mock.Anything, mock.Anything).Return(nil)
	audit.On("Add", mock.Anything, tx.ID, (*uuid.UUID)(nil), &buyerID, models.LogActionDisputeRaised, mock.Anything).Return(nil)

	service := NewDisputeService(disputes, transactions, audit, nil)

	d, err := service.Raise(context.Background(), RaiseDisputeInput{
		TransactionID: tx.ID,
		Title:         "Работа не сдана",
		Description:   "Продавец перестал выходить на связь после оплаты",
		RaisedByID:    buyerID,
		RaisedByRole:  models.RoleUser,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, d.Status)
	disputes.AssertExpectations(t)
}

func TestDisputeService_RaiseOnSettledTransaction(t *testing.T) {
	buyerID := uuid.New()
	tx := fundedTransaction(buyerID, uuid.New())
	tx.Status = models.TransactionStatusCompleted
	tx.EscrowStatus = models.EscrowStatusReleased

	transactions := new(mockTransactionRepo)
	transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)

	service := NewDisputeService(new(mockDisputeRepo), transactions, new(mockAuditLog), nil)

	_, err := service.Raise(context.Background(), RaiseDisputeInput{
		TransactionID: tx.ID,
		Title:         "Слишком поздно",
		Description:   "Претензия после завершения сделки и выплаты средств",
		RaisedByID:    buyerID,
		RaisedByRole:  models.RoleUser,
	})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_RaiseForbiddenForOutsider(t *testing.T) {
	tx := fundedTransaction(uuid.New(), uuid.New())

	transactions := new(mockTransactionRepo)
	transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)

	service := NewDisputeService(new(mockDisputeRepo), transactions, new(mockAuditLog), nil)

	_, err := service.Raise(context.Background(), RaiseDisputeInput{
		TransactionID: tx.ID,
		Title:         "Чужая сделка",
		Description:   "Посторонний пользователь пытается открыть спор",
		RaisedByID:    uuid.New(),
		RaisedByRole:  models.RoleUser,
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_ResolveRequiresResolutionType(t *testing.T) {
	service := NewDisputeService(new(mockDisputeRepo), new(mockTransactionRepo), new(mockAuditLog), nil)

	resolved := models.DisputeStatusResolved
	_, err := service.Resolve(context.Background(), uuid.New(), ResolveInput{
		Status:  &resolved,
		AdminID: uuid.New(),
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Resolve(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()
	tx := fundedTransaction(buyerID, sellerID)
	adminID := uuid.New()

	resolved := models.DisputeStatusResolved
	resolutionType := models.ResolutionRefund
	resolution := "Возврат покупателю: работа не выполнена"

	d := &models.Dispute{
		ID:             uuid.New(),
		TransactionID:  tx.ID,
		Status:         resolved,
		Resolution:     &resolution,
		ResolutionType: &resolutionType,
	}

	disputes := new(mockDisputeRepo)
	transactions := new(mockTransactionRepo)
	audit := new(mockAuditLog)

	disputes.On("Update", mock.Anything, d.ID, mock.Anything).Return(d, nil)
	transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	audit.On("Add", mock.Anything, tx.ID, (*uuid.UUID)(nil), &adminID, models.LogActionDisputeResolved, mock.Anything).Return(nil)

	service := NewDisputeService(disputes, transactions, audit, nil)

	result, err := service.Resolve(context.Background(), d.ID, ResolveInput{
		Status:         &resolved,
		Resolution:     &resolution,
		ResolutionType: &resolutionType,
		AdminID:        adminID,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, result.Status)
	audit.AssertExpectations(t)
}

func TestDisputeService_ResolveInvalidTransition(t *testing.T) {
	disputes := new(mockDisputeRepo)
	id := uuid.New()

	open := models.DisputeStatusOpen
	disputes.On("Update", mock.Anything, id, mock.Anything).Return(nil, repository.ErrInvalidDisputeTransition)

	service := NewDisputeService(disputes, new(mockTransactionRepo), new(mockAuditLog), nil)

	_, err := service.Resolve(context.Background(), id, ResolveInput{Status: &open, AdminID: uuid.New()})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_AddEvidenceClosedDispute(t *testing.T) {
	buyerID := uuid.New()
	tx := fundedTransaction(buyerID, uuid.New())

	d := &models.Dispute{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		Status:        models.DisputeStatusClosed,
	}

	disputes := new(mockDisputeRepo)
	transactions := new(mockTransactionRepo)
	disputes.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)

	service := NewDisputeService(disputes, transactions, new(mockAuditLog), nil)

	_, err := service.AddEvidence(context.Background(), EvidenceInput{
		DisputeID:     d.ID,
		Title:         "Переписка",
		SubmittedByID: buyerID,
		SubmitterRole: models.RoleUser,
	})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_ListRejectsUnknownStatus(t *testing.T) {
	service := NewDisputeService(new(mockDisputeRepo), new(mockTransactionRepo), new(mockAuditLog), nil)

	bogus := models.DisputeStatus("bogus")
	_, err := service.List(context.Background(), &bogus, 10, 0)
	assert.True(t, apperror.IsValidation(err))
}
