// Package handler provides HTTP handlers for the RAG chat service.
package handler

import (
	"context"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragchat/internal/ragchat/biz"
	"github.com/kart-io/ragchat/internal/ragchat/metrics"
	"github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/utils/response"
	"github.com/kart-io/ragchat/pkg/validator"
)

// Service is the business API used by the handlers.
type Service interface {
	CreateSession() *biz.SessionView
	DeleteSession(id string) error
	GetSession(id string) (*biz.SessionView, error)
	Chat(ctx context.Context, sessionID, message string) (*biz.ChatResult, error)
	Ingest(ctx context.Context, source, text string) (*biz.IngestReport, error)
	Stats(ctx context.Context) (*biz.Stats, error)
	Metrics() *metrics.Metrics
}

// ChatHandler handles session, chat and document requests.
type ChatHandler struct {
	service Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service Service) *ChatHandler {
	validator.Install()
	return &ChatHandler{service: service}
}

// ChatRequest represents a chat request.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required,notblank"`
}

// DocumentRequest represents a JSON document upload.
type DocumentRequest struct {
	Name string `json:"name" binding:"required,notblank"`
	Text string `json:"text"`
}

// DocumentResponse is returned after ingestion.
type DocumentResponse struct {
	Message string `json:"message"`
	*biz.IngestReport
}

// CreateSession starts a new session.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	response.OK(c, h.service.CreateSession())
}

// DeleteSession ends a session.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.service.DeleteSession(c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}
	response.OKWithMessage(c, "session deleted", nil)
}

// History returns a session and its messages.
func (h *ChatHandler) History(c *gin.Context) {
	view, err := h.service.GetSession(c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, view)
}

// Chat runs one chat turn.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, bindError(c, err))
		return
	}

	result, err := h.service.Chat(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}

// UploadDocument ingests a text document sent as JSON or as a multipart
// "file" field.
func (h *ChatHandler) UploadDocument(c *gin.Context) {
	var (
		name, text string
		err        error
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		name, text, err = readUpload(c)
	} else {
		var req DocumentRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			err = bindError(c, bindErr)
		}
		name, text = req.Name, req.Text
	}
	if err != nil {
		response.Fail(c, err)
		return
	}

	report, err := h.service.Ingest(c.Request.Context(), name, text)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OKWithMessage(c, report.Message(), DocumentResponse{Message: report.Message(), IngestReport: report})
}

// Stats returns the service overview.
func (h *ChatHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, stats)
}

// Metrics exports the counters in Prometheus text format.
func (h *ChatHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.service.Metrics().Export("ragchat")))
}

func readUpload(c *gin.Context) (string, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", "", bindError(c, err)
	}

	f, err := fh.Open()
	if err != nil {
		return "", "", errors.ErrExtraction.WithCause(err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", "", errors.ErrExtraction.WithCause(err)
	}

	if !isText(fh, data) {
		return "", "", errors.ErrExtraction.WithMessagef("file %q is not a text document", fh.Filename)
	}
	return fh.Filename, string(data), nil
}

// isText accepts UTF-8 content that is declared or detected as text/*.
func isText(fh *multipart.FileHeader, data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	declared := fh.Header.Get("Content-Type")
	if strings.HasPrefix(declared, "text/") {
		return true
	}
	return strings.HasPrefix(http.DetectContentType(data), "text/")
}

func bindError(c *gin.Context, err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.ErrRequestTooLarge.WithCause(err)
	}
	lang := validator.LangFromHeader(c.GetHeader("Accept-Language"))
	return errors.ErrInvalidRequest.WithCause(err).WithMessage(validator.Global().Translate(err, lang))
}
