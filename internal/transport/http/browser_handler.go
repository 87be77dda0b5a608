package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "nhstac/internal/errors"
	"nhstac/internal/services"
)

// ListResponse wraps a collection
type ListResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

func list[T any](items []T) *ListResponse {
	if items == nil {
		items = []T{}
	}
	return &ListResponse{Data: items, Count: len(items)}
}

// BrowserHandler serves the store and ledger queries
type BrowserHandler struct {
	service *services.BrowserService
	logger  *slog.Logger
}

// NewBrowserHandler creates a browser handler
func NewBrowserHandler(service *services.BrowserService, logger *slog.Logger) *BrowserHandler {
	return &BrowserHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "browser")),
	}
}

// Routes returns the /api/v1 routes
func (h *BrowserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/tables", h.Tables)
	r.Get("/qc", h.QC)
	r.Get("/facts", h.Facts)
	r.Get("/subcodes", h.SubCodes)
	r.Get("/runs", h.Runs)
	r.Get("/version", Version)
	return r
}

// Tables handles GET /api/v1/tables
func (h *BrowserHandler) Tables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.Tables(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, list(tables))
}

// QC handles GET /api/v1/qc
func (h *BrowserHandler) QC(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.QC(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, list(rows))
}

// Facts handles GET /api/v1/facts?fy=&sector=&org=&limit=
func (h *BrowserHandler) Facts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		apperrors.RenderError(w, r, apperrors.InvalidParameter("limit", "must be an integer"))
		return
	}

	facts, err := h.service.Facts(r.Context(), services.FactsQuery{
		FY:     q.Get("fy"),
		Sector: q.Get("sector"),
		Org:    q.Get("org"),
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, list(facts))
}

// SubCodes handles GET /api/v1/subcodes?ws=
func (h *BrowserHandler) SubCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.SubCodes(r.Context(), r.URL.Query().Get("ws"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, list(codes))
}

// Runs handles GET /api/v1/runs?limit=
func (h *BrowserHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		apperrors.RenderError(w, r, apperrors.InvalidParameter("limit", "must be an integer"))
		return
	}
	runs, err := h.service.Runs(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, list(runs))
}

func (h *BrowserHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apperrors.FromError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request_failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	apperrors.RenderError(w, r, apiErr)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
