package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safedeal/escrow-backend/internal/dto"
	"github.com/safedeal/escrow-backend/internal/http/handlers/common"
	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/service"
)

// AdminHandler отвечает за административные операции: споры и отчёты.
type AdminHandler struct {
	disputes *service.DisputeService
	reports  *service.ReportService
}

// NewAdminHandler создаёт новый хэндлер.
func NewAdminHandler(disputes *service.DisputeService, reports *service.ReportService) *AdminHandler {
	return &AdminHandler{
		disputes: disputes,
		reports:  reports,
	}
}

// ListDisputes обрабатывает GET /api/admin/disputes.
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	var status *models.DisputeStatus
	if raw := c.Query("status"); raw != "" {
		s := models.DisputeStatus(raw)
		status = &s
	}

	disputes, err := h.disputes.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse[models.Dispute]{
		Items:  disputes,
		Limit:  limit,
		Offset: offset,
	})
}

// UpdateDispute обрабатывает PATCH /api/admin/disputes/:id.
func (h *AdminHandler) UpdateDispute(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	in := service.ResolveInput{
		Resolution: req.Resolution,
		AdminID:    adminID,
	}
	if req.Status != nil {
		s := models.DisputeStatus(*req.Status)
		in.Status = &s
	}
	if req.ResolutionType != nil {
		rt := models.ResolutionType(*req.ResolutionType)
		in.ResolutionType = &rt
	}
	assignedTo, err := common.ParseOptionalUUID(req.AssignedToID)
	if err != nil {
		common.RespondBadRequest(c, "assigned_to_id должен быть валидным UUID")
		return
	}
	in.AssignedToID = assignedTo

	d, err := h.disputes.Resolve(c.Request.Context(), id, in)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// TransactionsReport обрабатывает GET /api/admin/reports/transactions.
func (h *AdminHandler) TransactionsReport(c *gin.Context) {
	report, err := h.reports.Transactions(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// EarningsReport обрабатывает GET /api/admin/reports/earnings?since=2026-01-01.
func (h *AdminHandler) EarningsReport(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			common.RespondBadRequest(c, "since должен быть датой в формате YYYY-MM-DD")
			return
		}
		since = &parsed
	}

	report, err := h.reports.Earnings(c.Request.Context(), since)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
