package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"edupulse/internal/analytics"
	apierrors "edupulse/internal/errors"
	"edupulse/internal/services"
)

// AnalyticsHandler serves the derived dashboard tables
type AnalyticsHandler struct {
	service      *services.AnalyticsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service *services.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:      service,
		logger:       logger,
		errorHandler: apierrors.NewErrorHandler(logger),
		validate:     validator.New(),
	}
}

// Routes returns the analytics route tree
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/watch-rate", h.GetWatchRate)
	r.Get("/summary", h.GetSummary)
	r.Get("/videos", h.GetVideos)
	r.Get("/video-lengths", h.GetVideoLengths)
	r.Get("/chapter-markers", h.GetChapterMarkers)
	return r
}

// watchRateRequest captures the query parameters of a watch-rate request
type watchRateRequest struct {
	Top     *int   `validate:"omitempty,min=0,max=10000"`
	VideoID string `validate:"omitempty,max=128"`
}

// GetWatchRate returns the per-segment watch-rate table. Optional query
// parameters: top (classification K override) and video (single-video filter).
func (h *AnalyticsHandler) GetWatchRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := watchRateRequest{VideoID: r.URL.Query().Get("video")}
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, err := strconv.Atoi(raw)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("top", "must be an integer"))
			return
		}
		req.Top = &top
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.WarnContext(ctx, "invalid watch-rate request",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("query", err.Error()))
		return
	}

	rows, err := h.service.WatchRateTable(ctx, services.WatchRateOptions{
		Top:     req.Top,
		VideoID: req.VideoID,
	})
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, rows)
}

// GetSummary returns the per-video rollup table
func (h *AnalyticsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// GetVideos returns per-video attributes in course order
func (h *AnalyticsHandler) GetVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.service.Videos(r.Context())
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	render.JSON(w, r, videos)
}

// GetVideoLengths returns each video's length in minutes keyed by id
func (h *AnalyticsHandler) GetVideoLengths(w http.ResponseWriter, r *http.Request) {
	lengths, err := h.service.VideoLengths(r.Context())
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	render.JSON(w, r, lengths)
}

// GetChapterMarkers returns the chapter divider positions
func (h *AnalyticsHandler) GetChapterMarkers(w http.ResponseWriter, r *http.Request) {
	markers, err := h.service.ChapterMarkers(r.Context())
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string][]float64{"markers": markers})
}

// renderServiceError maps service errors onto API error responses
func (h *AnalyticsHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var integrity *analytics.IntegrityError
	switch {
	case errors.Is(err, services.ErrNoEvents):
		h.errorHandler.HandleError(w, r, apierrors.ErrNoEventData)
	case errors.Is(err, services.ErrVideoNotFound):
		h.errorHandler.HandleError(w, r, apierrors.ErrVideoNotFound)
	case errors.Is(err, services.ErrNoChapters), errors.Is(err, services.ErrChaptersUnavailable):
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("chapter markers"))
	case errors.Is(err, services.ErrInvalidTopSelection):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("top", "must be non-negative"))
	case errors.As(err, &integrity):
		h.logger.ErrorContext(ctx, "data integrity violation",
			slog.String("video_id", integrity.VideoID),
			slog.String("field", integrity.Field))
		h.errorHandler.HandleError(w, r, apierrors.IntegrityError(integrity))
	default:
		h.logger.ErrorContext(ctx, "analytics request failed",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
	}
}
