package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"edupulse/internal/analytics"
	"edupulse/internal/dataprocessing"
	apierrors "edupulse/internal/errors"
	"edupulse/internal/services"
)

// DataHandler manages the loaded event data set
type DataHandler struct {
	service      *services.AnalyticsService
	loader       *dataprocessing.Loader
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewDataHandler creates a new data handler
func NewDataHandler(service *services.AnalyticsService, loader *dataprocessing.Loader, logger *slog.Logger) *DataHandler {
	return &DataHandler{
		service:      service,
		loader:       loader,
		logger:       logger,
		errorHandler: apierrors.NewErrorHandler(logger),
		validate:     validator.New(),
	}
}

// Routes returns the data route tree
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.GetStatus)
	r.Post("/reload", h.Reload)
	return r
}

// GetStatus reports the currently loaded data set
func (h *DataHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Status())
}

// reloadRequest names the files to ingest on a reload
type reloadRequest struct {
	EventsFile   string `json:"events_file" validate:"required"`
	ChaptersFile string `json:"chapters_file" validate:"omitempty"`
}

// Bind implements render.Binder
func (req *reloadRequest) Bind(r *http.Request) error {
	return nil
}

// Reload ingests a new event export, recomputes the derived tables and
// notifies connected clients
func (h *DataHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &reloadRequest{}
	if err := render.Bind(r, req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrInvalidRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("events_file", "is required"))
		return
	}

	events, err := h.loader.LoadEvents(req.EventsFile)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load event file",
			slog.String("file", req.EventsFile),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusUnprocessableEntity,
			"EVENT_FILE_UNREADABLE",
			"Failed to parse event file",
			err.Error(),
		))
		return
	}

	var chapters []analytics.ChapterVideo
	if req.ChaptersFile != "" {
		chapters, err = h.loader.LoadChapters(req.ChaptersFile)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to load chapter file",
				slog.String("file", req.ChaptersFile),
				slog.String("error", err.Error()))
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusUnprocessableEntity,
				"CHAPTER_FILE_UNREADABLE",
				"Failed to parse chapter file",
				err.Error(),
			))
			return
		}
	}

	if err := h.service.ReplaceData(ctx, events, chapters); err != nil {
		h.renderReplaceError(w, r, err)
		return
	}

	render.JSON(w, r, h.service.Status())
}

// renderReplaceError maps recompute failures onto API errors
func (h *DataHandler) renderReplaceError(w http.ResponseWriter, r *http.Request, err error) {
	var integrity *analytics.IntegrityError
	if errors.As(err, &integrity) {
		h.logger.ErrorContext(r.Context(), "data integrity violation on reload",
			slog.String("video_id", integrity.VideoID),
			slog.String("field", integrity.Field))
		h.errorHandler.HandleError(w, r, apierrors.IntegrityError(integrity))
		return
	}
	h.errorHandler.HandleError(w, r, err)
}
