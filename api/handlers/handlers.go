package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/local/docqa/api/config"
	"github.com/local/docqa/api/models"
	"github.com/local/docqa/api/services"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	docs *services.DocumentService
	cfg  *config.Config
}

func New(docs *services.DocumentService, cfg *config.Config) *Handler {
	return &Handler{
		docs: docs,
		cfg:  cfg,
	}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "PDF Question Answering Backend"})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"embedding_provider": h.cfg.EmbeddingProvider,
		"qa_provider":        h.cfg.QAProvider,
		"summary_provider":   h.cfg.SummaryProvider,
	})
}

type UploadResponse struct {
	ID        uint   `json:"id"`
	Filename  string `json:"filename"`
	NumChunks int    `json:"num_chunks"`
}

// multipartOverhead allows for boundaries and part headers around the file.
const multipartOverhead = 1 << 20

func (h *Handler) UploadPDF(c *gin.Context) {
	limit := h.cfg.MaxUploadSize + multipartOverhead
	if c.Request.ContentLength > limit {
		respondError(c, services.ErrFileTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, services.ErrFileTooLarge)
			return
		}
		errorJSON(c, http.StatusBadRequest, "No file provided")
		return
	}

	if file.Size > h.cfg.MaxUploadSize {
		respondError(c, services.ErrFileTooLarge)
		return
	}

	f, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open upload")
		errorJSON(c, http.StatusInternalServerError, "Failed to read file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.cfg.MaxUploadSize+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read upload")
		errorJSON(c, http.StatusInternalServerError, "Failed to read file")
		return
	}

	res, err := h.docs.Upload(c.Request.Context(), file.Filename, content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		ID:        res.Document.ID,
		Filename:  res.Document.Filename,
		NumChunks: res.NumChunks,
	})
}

type DocumentResponse struct {
	ID         uint   `json:"id"`
	Filename   string `json:"filename"`
	UploadDate string `json:"upload_date"`
}

func toDocumentResponse(doc models.Document) DocumentResponse {
	return DocumentResponse{ID: doc.ID, Filename: doc.Filename, UploadDate: doc.UploadDate}
}

func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]DocumentResponse, len(docs))
	for i, doc := range docs {
		out[i] = toDocumentResponse(doc)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, err := h.docs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	if err := h.docs.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

type AskRequest struct {
	DocumentID uint   `json:"document_id" binding:"required"`
	Question   string `json:"question" binding:"required"`
}

type AskResponse struct {
	Answer     string            `json:"answer"`
	Confidence float64           `json:"confidence"`
	Sources    []services.Source `json:"sources"`
}

func (h *Handler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ans, err := h.docs.Ask(c.Request.Context(), req.DocumentID, req.Question)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AskResponse{
		Answer:     ans.Text,
		Confidence: ans.Confidence,
		Sources:    ans.Sources,
	})
}

type SummarizeRequest struct {
	DocumentID uint `json:"document_id" binding:"required"`
}

func (h *Handler) Summarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.docs.Summarize(c.Request.Context(), req.DocumentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_id": req.DocumentID,
		"summary":     summary,
	})
}

func documentID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		errorJSON(c, http.StatusBadRequest, "Invalid document id")
		return 0, false
	}
	return uint(id), true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotPDF),
		errors.Is(err, services.ErrEmptyFile),
		errors.Is(err, services.ErrInvalidPDF),
		errors.Is(err, services.ErrEmptyQuestion):
		errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrFileTooLarge):
		errorJSON(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, services.ErrDocumentNotFound),
		errors.Is(err, services.ErrFileMissing):
		errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNoText):
		errorJSON(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("Request timed out")
		errorJSON(c, http.StatusGatewayTimeout, "Request timed out")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		errorJSON(c, http.StatusInternalServerError, "Internal server error")
	}
}

// errorJSON also sets "detail", which the web client reads.
func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg, "detail": msg})
}
