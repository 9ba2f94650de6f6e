package document

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/radif/docgateway/internal/response"
)

// Handler holds HTTP handlers for document endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new document Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type uploadData struct {
	Key string `json:"key" example:"3fa85f64-5717-4562-b3fc-2c963f66afa6report.pdf"`
}

var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Routes mounts the document endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Upload)
	r.Get("/presigned-url/{key}", h.PresignedURL)
	r.Get("/{key}", h.Download)
	r.Delete("/{key}", h.Delete)
}

// List godoc
//
//	@Summary		List documents
//	@Description	Returns the keys of every document in the bucket.
//	@Tags			documents
//	@Produce		json
//	@Success		200	{array}		string
//	@Failure		502	{object}	response.Envelope
//	@Router			/documents [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, keys)
}

// Upload godoc
//
//	@Summary		Upload a document
//	@Description	Streams the multipart field "file" to the bucket under a freshly generated key.
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Document content"
//	@Success		201		{object}	uploadData
//	@Header			201		{string}	Location	"URL of the stored document"
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/documents [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		response.BadRequest(w, "multipart form with field 'file' is required")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			response.BadRequest(w, "field 'file' is required")
			return
		}
		if err != nil {
			response.BadRequest(w, "malformed multipart body")
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		key, err := h.svc.Upload(r.Context(), UploadParams{
			Filename:    part.FileName(),
			Content:     part,
			Size:        -1,
			ContentType: contentType,
		})
		_ = part.Close()
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Location", "/documents/"+url.PathEscape(key))
		response.JSON(w, http.StatusCreated, uploadData{Key: key})
		return
	}
}

// Download godoc
//
//	@Summary		Download a document
//	@Tags			documents
//	@Produce		octet-stream
//	@Param			key	path		string	true	"Document key"
//	@Success		200	{file}		binary
//	@Failure		404
//	@Failure		502	{object}	response.Envelope
//	@Router			/documents/{key} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	d, err := h.svc.Download(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, dispositionEscaper.Replace(d.Key)))
	w.Header().Set("Content-Length", strconv.FormatInt(d.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(d.Data); err != nil {
		slog.WarnContext(r.Context(), "write download body", "key", key, "error", err)
	}
}

// Delete godoc
//
//	@Summary		Delete a document
//	@Description	Deleting a key that does not exist succeeds.
//	@Tags			documents
//	@Param			key	path	string	true	"Document key"
//	@Success		200
//	@Failure		400	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/documents/{key} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// PresignedURL godoc
//
//	@Summary		Create a presigned download link
//	@Description	Returns a signed URL granting read access to the key. The key is not checked for existence.
//	@Tags			documents
//	@Produce		plain
//	@Param			key	path		string	true	"Document key"
//	@Success		200	{string}	string	"Presigned URL"
//	@Failure		400	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/documents/presigned-url/{key} [get]
func (h *Handler) PresignedURL(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	link, err := h.svc.PresignedURL(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Text(w, http.StatusOK, link.URL)
}

// keyParam returns the decoded {key} path parameter. chi routes on RawPath
// when the request carries one, so only then is the parameter still escaped.
func keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key, true
	}
	key, err := url.PathUnescape(key)
	if err != nil {
		response.BadRequest(w, "invalid key encoding")
		return "", false
	}
	return key, true
}

// writeError maps gateway errors to HTTP responses. Causes are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w)
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrStoreUnavailable):
		slog.ErrorContext(r.Context(), "object store unavailable", "path", r.URL.Path, "error", err)
		response.BadGateway(w)
	case errors.Is(err, ErrStoreWrite):
		slog.ErrorContext(r.Context(), "store write failed", "path", r.URL.Path, "error", err)
		response.InternalError(w, ErrStoreWrite.Error())
	default:
		slog.ErrorContext(r.Context(), "unexpected error", "path", r.URL.Path, "error", err)
		response.InternalError(w, "")
	}
}
