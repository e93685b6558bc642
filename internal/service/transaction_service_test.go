package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/safedeal/escrow-backend/internal/logger"
	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/pkg/apperror"
	"github.com/safedeal/escrow-backend/internal/repository"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) Create(ctx context.Context, t *models.Transaction, milestones []models.Milestone) error {
	args := m.Called(ctx, t, milestones)
	if args.Error(0) == nil {
		t.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) GetMilestone(ctx context.Context, transactionID, milestoneID uuid.UUID) (*models.Milestone, error) {
	args := m.Called(ctx, transactionID, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Milestone), args.Error(1)
}

type mockUserChecker struct {
	mock.Mock
}

func (m *mockUserChecker) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockChatCreator struct {
	mock.Mock
}

func (m *mockChatCreator) Create(ctx context.Context, g *models.ChatGroup) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func validCreateInput(buyerID, sellerID uuid.UUID) CreateTransactionInput {
	return CreateTransactionInput{
		Title:       "Разработка логотипа",
		Description: "Логотип для нового бренда, три итерации правок",
		Type:        "service",
		Amount:      500,
		Currency:    "USD",
		BuyerID:     buyerID,
		SellerID:    sellerID,
	}
}

func newTransactionService(repo *mockTransactionRepo, users *mockUserChecker, audit *mockAuditLog, chats *mockChatCreator) *TransactionService {
	return NewTransactionService(repo, users, audit, chats, nil, false)
}

// happyPathMocks настраивает мок-зависимости на успешное создание сделки.
func happyPathMocks(buyerID uuid.UUID) (*mockTransactionRepo, *mockUserChecker, *mockAuditLog, *mockChatCreator) {
	repo := new(mockTransactionRepo)
	users := new(mockUserChecker)
	audit := new(mockAuditLog)
	chats := new(mockChatCreator)

	users.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	audit.On("Add", mock.Anything, mock.Anything, (*uuid.UUID)(nil), &buyerID, models.LogActionCreated, mock.Anything).Return(nil)
	chats.On("Create", mock.Anything, mock.Anything).Return(nil)

	return repo, users, audit, chats
}

func TestTransactionService_Create(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()

	repo := new(mockTransactionRepo)
	users := new(mockUserChecker)
	audit := new(mockAuditLog)
	chats := new(mockChatCreator)

	users.On("Exists", mock.Anything, buyerID).Return(true, nil)
	users.On("Exists", mock.Anything, sellerID).Return(true, nil)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	audit.On("Add", mock.Anything, mock.Anything, (*uuid.UUID)(nil), &buyerID, models.LogActionCreated, mock.Anything).Return(nil)
	chats.On("Create", mock.Anything, mock.Anything).Return(nil)

	service := newTransactionService(repo, users, audit, chats)

	result, err := service.Create(context.Background(), validCreateInput(buyerID, sellerID))
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, result.Status)
	assert.Equal(t, models.EscrowStatusAwaitingPayment, result.EscrowStatus)
	assert.Equal(t, models.PaymentStatusUnpaid, result.PaymentStatus)
	repo.AssertExpectations(t)
	chats.AssertExpectations(t)
}

func TestTransactionService_CreateBuyerEqualsSeller(t *testing.T) {
	service := newTransactionService(new(mockTransactionRepo), new(mockUserChecker), new(mockAuditLog), new(mockChatCreator))

	userID := uuid.New()
	_, err := service.Create(context.Background(), validCreateInput(userID, userID))
	assert.True(t, apperror.IsValidation(err))
}

func TestTransactionService_CreateSellerMissing(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()

	users := new(mockUserChecker)
	users.On("Exists", mock.Anything, buyerID).Return(true, nil)
	users.On("Exists", mock.Anything, sellerID).Return(false, nil)

	service := newTransactionService(new(mockTransactionRepo), users, new(mockAuditLog), new(mockChatCreator))

	_, err := service.Create(context.Background(), validCreateInput(buyerID, sellerID))
	assert.True(t, apperror.IsNotFound(err))
}

func TestTransactionService_CreateValidation(t *testing.T) {
	service := newTransactionService(new(mockTransactionRepo), new(mockUserChecker), new(mockAuditLog), new(mockChatCreator))
	ctx := context.Background()
	buyerID, sellerID := uuid.New(), uuid.New()

	cases := []struct {
		name   string
		mutate func(*CreateTransactionInput)
	}{
		{"короткий заголовок", func(in *CreateTransactionInput) { in.Title = "ab" }},
		{"короткое описание", func(in *CreateTransactionInput) { in.Description = "коротко" }},
		{"нулевая сумма", func(in *CreateTransactionInput) { in.Amount = 0 }},
		{"отрицательная сумма", func(in *CreateTransactionInput) { in.Amount = -10 }},
		{"плохая валюта", func(in *CreateTransactionInput) { in.Currency = "rubles" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCreateInput(buyerID, sellerID)
			tc.mutate(&in)
			_, err := service.Create(ctx, in)
			assert.True(t, apperror.IsValidation(err), "ожидалась ошибка валидации")
		})
	}
}

func TestTransactionService_CreateMilestoneSumMismatchAcceptedByDefault(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()
	repo, users, audit, chats := happyPathMocks(buyerID)

	// Сумма вех расходится с суммой сделки, но по умолчанию это допустимо.
	service := newTransactionService(repo, users, audit, chats)

	in := validCreateInput(buyerID, sellerID)
	in.Milestones = []models.Milestone{
		{Title: "Эскизы", Description: "Черновые варианты логотипа", Amount: 100},
		{Title: "Финальная версия", Description: "Итоговые файлы в векторе", Amount: 100},
	}

	_, err := service.Create(context.Background(), in)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestTransactionService_CreateMilestoneSumMismatchEnforced(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()

	users := new(mockUserChecker)
	users.On("Exists", mock.Anything, mock.Anything).Return(true, nil)

	service := NewTransactionService(new(mockTransactionRepo), users, new(mockAuditLog), new(mockChatCreator), nil, true)

	in := validCreateInput(buyerID, sellerID)
	in.Milestones = []models.Milestone{
		{Title: "Эскизы", Description: "Черновые варианты логотипа", Amount: 100},
		{Title: "Финальная версия", Description: "Итоговые файлы в векторе", Amount: 100},
	}

	_, err := service.Create(context.Background(), in)
	assert.True(t, apperror.IsValidation(err))
}

func TestTransactionService_CreateMilestoneShortDescription(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()

	users := new(mockUserChecker)
	users.On("Exists", mock.Anything, mock.Anything).Return(true, nil)

	service := newTransactionService(new(mockTransactionRepo), users, new(mockAuditLog), new(mockChatCreator))

	in := validCreateInput(buyerID, sellerID)
	in.Milestones = []models.Milestone{
		{Title: "Эскизы", Description: "мало", Amount: 500},
	}

	_, err := service.Create(context.Background(), in)
	assert.True(t, apperror.IsValidation(err))
}

func TestTransactionService_CreateDefaultsCurrencyAndKeepsDueDate(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()
	repo, users, audit, chats := happyPathMocks(buyerID)

	service := newTransactionService(repo, users, audit, chats)

	due := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	in := validCreateInput(buyerID, sellerID)
	in.Currency = ""
	in.DueDate = &due

	result, err := service.Create(context.Background(), in)
	assert.NoError(t, err)
	assert.Equal(t, "USD", result.Currency)
	if assert.NotNil(t, result.DueDate) {
		assert.True(t, result.DueDate.Equal(due))
	}
}

func TestTransactionService_CreateMilestonesStartAwaitingFunding(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()

	repo := new(mockTransactionRepo)
	users := new(mockUserChecker)
	audit := new(mockAuditLog)
	chats := new(mockChatCreator)

	users.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
	repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(ms []models.Milestone) bool {
		for _, m := range ms {
			if m.Status != models.MilestoneStatusPending || m.EscrowStatus != models.EscrowStatusAwaitingFunding {
				return false
			}
		}
		return len(ms) == 2
	})).Return(nil)
	audit.On("Add", mock.Anything, mock.Anything, (*uuid.UUID)(nil), &buyerID, models.LogActionCreated, mock.Anything).Return(nil)
	chats.On("Create", mock.Anything, mock.Anything).Return(nil)

	service := newTransactionService(repo, users, audit, chats)

	in := validCreateInput(buyerID, sellerID)
	in.Milestones = []models.Milestone{
		{Title: "Эскизы", Description: "Черновые варианты логотипа", Amount: 200},
		{Title: "Финальная версия", Description: "Итоговые файлы в векторе", Amount: 300},
	}

	_, err := service.Create(context.Background(), in)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestTransactionService_GetAccessControl(t *testing.T) {
	buyerID, sellerID := uuid.New(), uuid.New()
	tx := fundedTransaction(buyerID, sellerID)

	repo := new(mockTransactionRepo)
	repo.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)

	service := newTransactionService(repo, new(mockUserChecker), new(mockAuditLog), new(mockChatCreator))
	ctx := context.Background()

	_, err := service.Get(ctx, tx.ID, buyerID, models.RoleUser)
	assert.NoError(t, err)

	_, err = service.Get(ctx, tx.ID, uuid.New(), models.RoleUser)
	assert.True(t, apperror.IsForbidden(err))

	_, err = service.Get(ctx, tx.ID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)
}

func TestTransactionService_GetNotFound(t *testing.T) {
	repo := new(mockTransactionRepo)
	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, repository.ErrTransactionNotFound)

	service := newTransactionService(repo, new(mockUserChecker), new(mockAuditLog), new(mockChatCreator))

	_, err := service.Get(context.Background(), id, uuid.New(), models.RoleAdmin)
	assert.True(t, apperror.IsNotFound(err))
}

func TestTransactionService_ListForUserClampsPaging(t *testing.T) {
	userID := uuid.New()

	repo := new(mockTransactionRepo)
	repo.On("ListByUser", mock.Anything, userID, 20, 0).Return([]models.Transaction{}, nil)

	service := newTransactionService(repo, new(mockUserChecker), new(mockAuditLog), new(mockChatCreator))

	_, err := service.ListForUser(context.Background(), userID, 1000, -5)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
