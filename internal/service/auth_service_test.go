package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/pkg/apperror"
	"github.com/safedeal/escrow-backend/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByName map[string]*models.User
	usersByID   map[uuid.UUID]*models.User
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByName: make(map[string]*models.User),
		usersByID:   make(map[uuid.UUID]*models.User),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	m.usersByName[user.Username] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if user, ok := m.usersByName[username]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{
		Username: "buyer_one",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register вернул ошибку: %v", err)
	}

	if res.User.ID == uuid.Nil {
		t.Fatalf("user ID должен быть установлен")
	}
	if res.User.Role != models.RoleUser {
		t.Fatalf("ожидалась роль user, получили %s", res.User.Role)
	}

	loginRes, err := service.Login(ctx, LoginInput{
		Username: "buyer_one",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("login вернул ошибку: %v", err)
	}

	if loginRes.TokenPair.AccessToken == "" {
		t.Fatalf("ожидался access токен")
	}
}

func TestAuthService_RegisterDuplicateUsername(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))

	ctx := context.Background()
	if _, err := service.Register(ctx, RegisterInput{Username: "seller_one", Password: "password123"}); err != nil {
		t.Fatalf("первая регистрация вернула ошибку: %v", err)
	}

	_, err := service.Register(ctx, RegisterInput{Username: "seller_one", Password: "password456"})
	if err == nil {
		t.Fatalf("ожидался конфликт имени пользователя")
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Username:     "victim",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	repo.usersByName[user.Username] = user
	repo.usersByID[user.ID] = user

	_, err := service.Login(context.Background(), LoginInput{Username: "victim", Password: "wrong"})
	if err != apperror.ErrInvalidCredentials {
		t.Fatalf("ожидалась ошибка неверных учетных данных, получили %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{Username: "refresher", Password: "password123"})
	if err != nil {
		t.Fatalf("register вернул ошибку: %v", err)
	}

	newRes, err := service.Refresh(ctx, res.TokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh вернул ошибку: %v", err)
	}

	if newRes.TokenPair.RefreshToken == res.TokenPair.RefreshToken {
		t.Fatalf("ожидался новый refresh токен")
	}

	if _, err := service.Refresh(ctx, "garbage-token"); err == nil {
		t.Fatalf("ожидалась ошибка для некорректного токена")
	}
}
