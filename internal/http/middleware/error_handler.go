package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/safedeal/escrow-backend/internal/logger"
	"github.com/safedeal/escrow-backend/internal/pkg/apperror"
	"github.com/safedeal/escrow-backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Маскирует внутренние ошибки и возвращает понятные сообщения клиенту.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		// Ошибки приложения несут код и статус сами.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}

		statusCode := http.StatusInternalServerError
		message := "внутренняя ошибка сервера"

		// Ошибки репозитория, не переведённые сервисом.
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			statusCode, message = http.StatusNotFound, "пользователь не найден"
		case errors.Is(err, repository.ErrTransactionNotFound):
			statusCode, message = http.StatusNotFound, "сделка не найдена"
		case errors.Is(err, repository.ErrMilestoneNotFound):
			statusCode, message = http.StatusNotFound, "веха не найдена"
		case errors.Is(err, repository.ErrDisputeNotFound):
			statusCode, message = http.StatusNotFound, "спор не найден"
		case errors.Is(err, repository.ErrInvalidState):
			statusCode, message = http.StatusBadRequest, "операция недопустима в текущем состоянии"
		default:
			if msg := err.Error(); msg != "" && !containsInternalKeywords(msg) {
				message = msg
			}
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}

// containsInternalKeywords проверяет, содержит ли строка ключевые слова внутренних ошибок.
func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
		"repository",
	}

	lower := strings.ToLower(s)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
