package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wyat/capital/internal/api/middleware"
	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/jobs"
)

// MaxUploadBytes bounds a single document upload.
const MaxUploadBytes = 32 << 20

// DocumentsHandler handles document uploads and extraction requests.
type DocumentsHandler struct {
	docs      extraction.DocumentRepository
	blobs     extraction.BlobStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(docs extraction.DocumentRepository, blobs extraction.BlobStore, publisher jobs.Publisher, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{docs: docs, blobs: blobs, publisher: publisher, log: log}
}

// Upload handles POST /api/documents. The body is the raw file; filename,
// kind and namespace come from the query string.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty body")
		return
	}

	q := r.URL.Query()
	title := q.Get("filename")
	if idx := strings.Index(title, "?"); idx > 0 {
		title = title[:idx]
	}
	if title != "" {
		title = filepath.Base(title)
	}

	doc, err := extraction.CreateDocument(r.Context(), h.docs, h.blobs, extraction.NewDocument{
		Namespace: q.Get("namespace"),
		Kind:      q.Get("kind"),
		Title:     title,
		MIMEType:  r.Header.Get("Content-Type"),
		Data:      data,
	})
	if err != nil {
		writeErr(w, h.log, err, "Failed to store document")
		return
	}

	h.log.Info().
		Str("document_id", doc.ID).
		Str("blob_id", doc.BlobID).
		Int("bytes", len(data)).
		Msg("Document uploaded")

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"document_id": doc.ID,
		"blob_id":     doc.BlobID,
		"status":      "uploaded",
	})
}

// Extract handles POST /api/documents/{id}/extract. ?preview=true runs the
// extraction without importing rows.
func (h *DocumentsHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := h.docs.GetDocument(ctx, id); err != nil {
		writeErr(w, h.log, err, "Failed to get document")
		return
	}

	preview, _ := strconv.ParseBool(r.URL.Query().Get("preview"))
	job := &jobs.ExtractDocumentJob{DocumentID: id, PreviewOnly: preview}
	if err := h.publisher.PublishExtractDocument(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue extraction job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue extraction job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("document_id", id).Bool("preview", preview).Msg("Extraction job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"document_id": id,
		"status":      string(job.Status),
	})
}
