package handler

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/idcheck/mrzscan/internal/docscan/domain"
	"github.com/idcheck/mrzscan/internal/docscan/repository"
	"github.com/idcheck/mrzscan/internal/docscan/service"
	"github.com/idcheck/mrzscan/pkg/auth"
	apperrors "github.com/idcheck/mrzscan/pkg/errors"
	"github.com/idcheck/mrzscan/pkg/httputil"
	"github.com/idcheck/mrzscan/pkg/logger"
)

// DefaultMaxUploadSize caps multipart uploads when no limit is configured
const DefaultMaxUploadSize = 20 << 20 // 20MB

// Handler handles HTTP requests for MRZ scanning
type Handler struct {
	service       *service.Service
	maxUploadSize int64
	log           *logger.Logger
}

// NewHandler creates a new scan handler
func NewHandler(svc *service.Service, maxUploadSize int64, log *logger.Logger) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{
		service:       svc,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// Routes registers the scan endpoints on r, each behind the scope it needs
func (h *Handler) Routes(r chi.Router) {
	r.With(auth.RequireScope(auth.ScopeScansWrite)).Post("/mrz/parse", h.Parse)
	r.With(auth.RequireScope(auth.ScopeScansWrite)).Post("/scans", h.StartScan)
	r.With(auth.RequireScope(auth.ScopeScansRead)).Get("/scans/{jobId}", h.GetScan)
	r.With(auth.RequireScope(auth.ScopeAuditRead)).Get("/audit", h.ListAudit)
}

// ParseRequest is the body of a synchronous parse
type ParseRequest struct {
	Text string `json:"text" validate:"required,max=1024"`
}

// Parse handles POST /mrz/parse
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var req ParseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	outcome, err := h.service.Parse(r.Context(), req.Text)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, outcome)
}

// StartScan handles POST /scans
// Accepts a multipart form with either:
// - file: a PNG or JPEG image holding the MRZ
// - text: MRZ text
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadSize {
		httputil.Error(w, apperrors.TooLarge(h.maxUploadSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	// Memory limit equals the body limit so uploads never spill to disk
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, apperrors.TooLarge(h.maxUploadSize))
			return
		}
		httputil.Error(w, apperrors.BadRequest("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var (
		data []byte
		kind domain.InputKind
	)

	file, _, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		data, err = io.ReadAll(file)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to read uploaded file")
			httputil.Error(w, apperrors.Internal("failed to read uploaded file"))
			return
		}
		kind = domain.InputImage
	case errors.Is(err, http.ErrMissingFile):
		text := r.FormValue("text")
		if text == "" {
			httputil.Error(w, apperrors.BadRequest("either file or text is required").WithDetails(map[string]string{
				"file": "required when text is empty",
				"text": "required when no file is uploaded",
			}))
			return
		}
		data = []byte(text)
		kind = domain.InputText
	default:
		httputil.Error(w, apperrors.BadRequest("invalid file upload").WithDetails(map[string]string{
			"file": "could not be read from the form",
		}))
		return
	}

	// data is zeroed by the service once processed
	job, err := h.service.StartScan(r.Context(), data, kind)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Accepted(w, job)
}

// GetScan handles GET /scans/{jobId}
func (h *Handler) GetScan(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, job)
}

// ListAudit handles GET /audit
// Supports query params: status, format, page, per_page
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}
	// keeps the repository offset within int32
	if maxPage := math.MaxInt32 / perPage; page > maxPage {
		page = maxPage
	}

	filter := &repository.ListFilter{
		Status: q.Get("status"),
		Format: q.Get("format"),
	}
	switch domain.ScanStatus(filter.Status) {
	case "", domain.StatusCompleted, domain.StatusFailed:
	default:
		httputil.Error(w, apperrors.BadRequest("invalid audit filter").WithDetails(map[string]string{
			"status": "must be completed or failed",
		}))
		return
	}

	entries, total, err := h.service.ListAudit(r.Context(), filter, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list scan audit entries")
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, httputil.NewMeta(page, perPage, total))
}
