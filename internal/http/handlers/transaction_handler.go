package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safedeal/escrow-backend/internal/dto"
	"github.com/safedeal/escrow-backend/internal/http/handlers/common"
	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/service"
)

// TransactionHandler отвечает за создание, чтение и операции со сделками.
type TransactionHandler struct {
	transactions *service.TransactionService
	escrow       *service.EscrowService
	disputes     *service.DisputeService
}

// NewTransactionHandler создаёт новый хэндлер.
func NewTransactionHandler(transactions *service.TransactionService, escrow *service.EscrowService, disputes *service.DisputeService) *TransactionHandler {
	return &TransactionHandler{
		transactions: transactions,
		escrow:       escrow,
		disputes:     disputes,
	}
}

// Create обрабатывает POST /api/marketplace/transactions.
func (h *TransactionHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		common.RespondBadRequest(c, "seller_id должен быть валидным UUID")
		return
	}

	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			common.RespondBadRequest(c, "due_date должен быть в формате RFC3339")
			return
		}
		dueDate = &due
	}

	milestones := make([]models.Milestone, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		milestone := models.Milestone{
			Title:       m.Title,
			Description: m.Description,
			Amount:      m.Amount,
		}
		if m.DueDate != nil && *m.DueDate != "" {
			due, err := time.Parse(time.RFC3339, *m.DueDate)
			if err != nil {
				common.RespondBadRequest(c, "due_date вехи должен быть в формате RFC3339")
				return
			}
			milestone.DueDate = &due
		}
		milestones = append(milestones, milestone)
	}

	t, err := h.transactions.Create(c.Request.Context(), service.CreateTransactionInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Amount:      req.Amount,
		Currency:    req.Currency,
		DueDate:     dueDate,
		BuyerID:     userID,
		SellerID:    sellerID,
		Milestones:  milestones,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

// List обрабатывает GET /api/marketplace/transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.transactions.ListForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse[models.Transaction]{
		Items:  transactions,
		Limit:  limit,
		Offset: offset,
	})
}

// Get обрабатывает GET /api/marketplace/transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
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

	t, err := h.transactions.Get(c.Request.Context(), id, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// Release обрабатывает POST /api/marketplace/transactions/:id/release.
func (h *TransactionHandler) Release(c *gin.Context) {
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

	// Тело опционально: без milestone_id выплачивается вся сделка.
	var req dto.ReleaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	milestoneID, err := common.ParseOptionalUUID(req.MilestoneID)
	if err != nil {
		common.RespondBadRequest(c, "milestone_id должен быть валидным UUID")
		return
	}

	t, err := h.escrow.Release(c.Request.Context(), id, milestoneID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// Refund обрабатывает POST /api/marketplace/transactions/:id/refund.
func (h *TransactionHandler) Refund(c *gin.Context) {
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

	var req dto.RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	milestoneID, err := common.ParseOptionalUUID(req.MilestoneID)
	if err != nil {
		common.RespondBadRequest(c, "milestone_id должен быть валидным UUID")
		return
	}

	t, err := h.escrow.Refund(c.Request.Context(), id, milestoneID, req.Reason, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// Dispute обрабатывает POST /api/marketplace/transactions/:id/dispute.
func (h *TransactionHandler) Dispute(c *gin.Context) {
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

	var req dto.RaiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	milestoneID, err := common.ParseOptionalUUID(req.MilestoneID)
	if err != nil {
		common.RespondBadRequest(c, "milestone_id должен быть валидным UUID")
		return
	}

	d, err := h.disputes.Raise(c.Request.Context(), service.RaiseDisputeInput{
		TransactionID: id,
		MilestoneID:   milestoneID,
		Title:         req.Title,
		Description:   req.Description,
		RaisedByID:    userID,
		RaisedByRole:  role,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, d)
}

// Logs обрабатывает GET /api/marketplace/transactions/:id/logs.
func (h *TransactionHandler) Logs(c *gin.Context) {
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

	logs, err := h.transactions.Logs(c.Request.Context(), id, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
