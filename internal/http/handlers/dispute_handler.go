package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/safedeal/escrow-backend/internal/http/handlers/common"
	"github.com/safedeal/escrow-backend/internal/service"
	"github.com/safedeal/escrow-backend/internal/storage"
)

// Разрешённые типы файлов доказательств.
var allowedEvidenceMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
	"application/zip": true,
}

// DisputeHandler отвечает за чтение споров и приём доказательств.
type DisputeHandler struct {
	svc     *service.DisputeService
	storage *storage.EvidenceStorage
}

// NewDisputeHandler создаёт новый хэндлер.
func NewDisputeHandler(s *service.DisputeService, st *storage.EvidenceStorage) *DisputeHandler {
	return &DisputeHandler{svc: s, storage: st}
}

// Get обрабатывает GET /api/disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
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

	d, err := h.svc.Get(c.Request.Context(), id, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// ListEvidence обрабатывает GET /api/disputes/:id/evidence.
func (h *DisputeHandler) ListEvidence(c *gin.Context) {
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

	evidence, err := h.svc.ListEvidence(c.Request.Context(), id, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, evidence)
}

// AddEvidence обрабатывает POST /api/disputes/:id/evidence (multipart).
// Поле file опционально: доказательство может быть текстовым.
func (h *DisputeHandler) AddEvidence(c *gin.Context) {
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

	title := c.PostForm("title")
	if title == "" {
		common.RespondBadRequest(c, "поле title обязательно")
		return
	}

	var description *string
	if raw := c.PostForm("description"); raw != "" {
		description = &raw
	}

	in := service.EvidenceInput{
		DisputeID:     id,
		Title:         title,
		Description:   description,
		SubmittedByID: userID,
		SubmitterRole: role,
	}

	if file, err := c.FormFile("file"); err == nil {
		if file.Size == 0 {
			common.RespondBadRequest(c, "файл не может быть пустым")
			return
		}

		src, err := file.Open()
		if err != nil {
			common.Fail(c, err)
			return
		}
		defer src.Close()

		// Тип файла проверяется по магическим байтам, не по расширению.
		buffer := make([]byte, 512)
		n, err := src.Read(buffer)
		if err != nil && err != io.EOF {
			common.RespondBadRequest(c, "не удалось прочитать файл")
			return
		}

		kind, err := filetype.Match(buffer[:n])
		if err != nil || kind == filetype.Unknown || !allowedEvidenceMimeTypes[kind.MIME.Value] {
			allowed := make([]string, 0, len(allowedEvidenceMimeTypes))
			for mime := range allowedEvidenceMimeTypes {
				allowed = append(allowed, mime)
			}
			common.RespondBadRequest(c, fmt.Sprintf("неподдерживаемый тип файла. Разрешены: %s", strings.Join(allowed, ", ")))
			return
		}

		if seeker, ok := src.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				common.Fail(c, err)
				return
			}
		}

		relativePath, _, err := h.storage.Save(c.Request.Context(), id, userID, file.Filename, src)
		if err != nil {
			common.Fail(c, err)
			return
		}

		fileURL := "/storage/evidence/" + relativePath
		mime := kind.MIME.Value
		in.FileURL = &fileURL
		in.FileType = &mime
	}

	e, err := h.svc.AddEvidence(c.Request.Context(), in)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, e)
}
