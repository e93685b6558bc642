package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDisputeHandler_Get_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{svc: nil}
	r.GET("/disputes/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/disputes/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_Get_InvalidID_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authMiddleware(uuid.New(), "user"))
	handler := &DisputeHandler{svc: nil}
	r.GET("/disputes/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/disputes/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_AddEvidence_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{svc: nil}
	r.POST("/disputes/:id/evidence", handler.AddEvidence)

	req, _ := http.NewRequest("POST", "/disputes/"+uuid.NewString()+"/evidence", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_AddEvidence_MissingTitle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authMiddleware(uuid.New(), "user"))
	handler := &DisputeHandler{svc: nil}
	r.POST("/disputes/:id/evidence", handler.AddEvidence)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("description", "без заголовка")
	_ = mw.Close()

	req, _ := http.NewRequest("POST", "/disputes/"+uuid.NewString()+"/evidence", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_AddEvidence_UnsupportedFileType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authMiddleware(uuid.New(), "user"))
	handler := &DisputeHandler{svc: nil}
	r.POST("/disputes/:id/evidence", handler.AddEvidence)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("title", "Скриншот переписки")
	part, _ := mw.CreateFormFile("file", "evidence.txt")
	_, _ = part.Write([]byte("просто текст, а не изображение"))
	_ = mw.Close()

	req, _ := http.NewRequest("POST", "/disputes/"+uuid.NewString()+"/evidence", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
