package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func authMiddleware(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("role", role)
		c.Next()
	}
}

func TestTransactionHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TransactionHandler{transactions: nil}
	r.POST("/marketplace/transactions", handler.Create)

	req, _ := http.NewRequest("POST", "/marketplace/transactions", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransactionHandler_Create_InvalidSellerID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authMiddleware(uuid.New(), "user"))
	handler := &TransactionHandler{transactions: nil}
	r.POST("/marketplace/transactions", handler.Create)

	body := `{"title":"Сделка","description":"Описание сделки подробное","amount":100,"currency":"USD","seller_id":"not-a-uuid"}`
	req, _ := http.NewRequest("POST", "/marketplace/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionHandler_Create_MalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authMiddleware(uuid.New(), "user"))
	handler := &TransactionHandler{transactions: nil}
	r.POST("/marketplace/transactions", handler.Create)

	req, _ := http.NewRequest("POST", "/marketplace/transactions", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionHandler_Get_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TransactionHandler{transactions: nil}
	r.GET("/marketplace/transactions/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/marketplace/transactions/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransactionHandler_Get_InvalidID_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authMiddleware(uuid.New(), "user"))
	handler := &TransactionHandler{transactions: nil}
	r.GET("/marketplace/transactions/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/marketplace/transactions/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionHandler_Release_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TransactionHandler{escrow: nil}
	r.POST("/marketplace/transactions/:id/release", handler.Release)

	req, _ := http.NewRequest("POST", "/marketplace/transactions/"+uuid.NewString()+"/release", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransactionHandler_Refund_InvalidMilestoneID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authMiddleware(uuid.New(), "user"))
	handler := &TransactionHandler{escrow: nil}
	r.POST("/marketplace/transactions/:id/refund", handler.Refund)

	body := `{"milestone_id":"not-a-uuid"}`
	req, _ := http.NewRequest("POST", "/marketplace/transactions/"+uuid.NewString()+"/refund", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionHandler_Dispute_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TransactionHandler{disputes: nil}
	r.POST("/marketplace/transactions/:id/dispute", handler.Dispute)

	req, _ := http.NewRequest("POST", "/marketplace/transactions/"+uuid.NewString()+"/dispute", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
