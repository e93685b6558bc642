package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedeal/escrow-backend/internal/http/handlers/common"
	"github.com/safedeal/escrow-backend/internal/service"
)

// PaymentHandler отвечает за создание и подтверждение оплаты сделок.
type PaymentHandler struct {
	svc *service.PaymentService
}

// NewPaymentHandler создаёт новый хэндлер.
func NewPaymentHandler(s *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: s}
}

// CreatePayment обрабатывает POST /api/transactions/:id/create-payment.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), id, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// ConfirmPayment обрабатывает POST /api/transactions/:id/confirm-payment.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	t, err := h.svc.Confirm(c.Request.Context(), id, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}
