package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"edupulse/internal/analytics"
	"edupulse/internal/infrastructure"
)

// Notifier pushes data-refresh notifications to connected dashboard clients.
// Implemented by the websocket hub.
type Notifier interface {
	NotifyDataReload(ctx context.Context, status DataStatus)
}

// DataStatus describes the currently loaded data set
type DataStatus struct {
	EventCount   int       `json:"event_count"`
	VideoCount   int       `json:"video_count"`
	ChapterCount int       `json:"chapter_count"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// Loaded reports whether any event data has been ingested
func (s DataStatus) Loaded() bool {
	return s.EventCount > 0
}

// AnalyticsService owns the loaded watch-event data set and serves the
// derived tables. The aggregated table is recomputed once per data load
// and cached; requests with a top-selection override recompute on demand.
type AnalyticsService struct {
	pipeline *analytics.Pipeline
	logger   *slog.Logger
	metrics  *infrastructure.OTelProviders
	notifier Notifier

	mu       sync.RWMutex
	events   []analytics.WatchEvent
	chapters []analytics.ChapterVideo
	table    []analytics.SegmentStat
	summary  []analytics.SummaryRow
	loadedAt time.Time
}

// Option configures the analytics service
type Option func(*AnalyticsService)

// WithMetrics attaches OpenTelemetry instruments for recompute tracking
func WithMetrics(providers *infrastructure.OTelProviders) Option {
	return func(s *AnalyticsService) { s.metrics = providers }
}

// WithNotifier attaches a reload notifier
func WithNotifier(n Notifier) Option {
	return func(s *AnalyticsService) { s.notifier = n }
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(cfg analytics.Config, logger *slog.Logger, opts ...Option) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}

	s := &AnalyticsService{
		pipeline: analytics.NewPipeline(cfg, logger),
		logger:   infrastructure.WithComponent(logger, "analytics_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplaceData swaps in a new event data set, recomputes the cached tables
// and notifies connected clients. The previous data set stays in place
// when recomputation fails.
func (s *AnalyticsService) ReplaceData(ctx context.Context, events []analytics.WatchEvent, chapters []analytics.ChapterVideo) error {
	start := time.Now()

	table, err := s.pipeline.AggregatedTable(ctx, events)
	duration := time.Since(start)
	s.metrics.RecordRecompute(ctx, "aggregated", duration, err)
	if err != nil {
		return fmt.Errorf("recompute aggregated table: %w", err)
	}

	summary := analytics.SummaryTable(table, events, s.pipeline.Config().SegmentSeconds)

	s.mu.Lock()
	s.events = events
	s.chapters = chapters
	s.table = table
	s.summary = summary
	s.loadedAt = time.Now()
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "data set replaced",
		slog.Int("events", status.EventCount),
		slog.Int("videos", status.VideoCount),
		slog.Int("chapters", status.ChapterCount),
		slog.Duration("recompute", duration))

	if s.notifier != nil {
		s.notifier.NotifyDataReload(ctx, status)
	}
	return nil
}

// Status returns counts for the loaded data set
func (s *AnalyticsService) Status() DataStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *AnalyticsService) statusLocked() DataStatus {
	videos := make(map[string]struct{})
	for _, e := range s.events {
		videos[e.VideoID] = struct{}{}
	}
	return DataStatus{
		EventCount:   len(s.events),
		VideoCount:   len(videos),
		ChapterCount: len(s.chapters),
		LoadedAt:     s.loadedAt,
	}
}

// WatchRateOptions narrows a watch-rate table request
type WatchRateOptions struct {
	// Top overrides the configured top selection when non-nil
	Top *int
	// VideoID restricts the result to one video when non-empty
	VideoID string
}

// WatchRateTable returns the aggregated per-segment table. A top-selection
// override triggers a recomputation with the requested K; otherwise the
// cached table from the last data load is served.
func (s *AnalyticsService) WatchRateTable(ctx context.Context, opts WatchRateOptions) ([]analytics.SegmentStat, error) {
	if opts.Top != nil && *opts.Top < 0 {
		return nil, ErrInvalidTopSelection
	}

	s.mu.RLock()
	events := s.events
	table := s.table
	s.mu.RUnlock()

	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	if opts.Top != nil && *opts.Top != s.pipeline.Config().TopSelection {
		cfg := s.pipeline.Config()
		cfg.TopSelection = *opts.Top

		start := time.Now()
		recomputed, err := analytics.NewPipeline(cfg, s.logger).AggregatedTable(ctx, events)
		s.metrics.RecordRecompute(ctx, "aggregated", time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("recompute with top=%d: %w", *opts.Top, err)
		}
		table = recomputed
	}

	if opts.VideoID == "" {
		return table, nil
	}

	filtered := make([]analytics.SegmentStat, 0, len(table))
	for _, row := range table {
		if row.VideoID == opts.VideoID {
			filtered = append(filtered, row)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("video %q: %w", opts.VideoID, ErrVideoNotFound)
	}
	return filtered, nil
}

// Summary returns the cached per-video rollup table
func (s *AnalyticsService) Summary(ctx context.Context) ([]analytics.SummaryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) == 0 {
		return nil, ErrNoEvents
	}
	return s.summary, nil
}

// Videos returns per-video attributes sorted by course order
func (s *AnalyticsService) Videos(ctx context.Context) ([]analytics.VideoAttributes, error) {
	s.mu.RLock()
	events := s.events
	s.mu.RUnlock()

	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	attrs, err := s.pipeline.VideoAttributeTable(events)
	if err != nil {
		return nil, fmt.Errorf("build video attributes: %w", err)
	}

	videos := make([]analytics.VideoAttributes, 0, len(attrs))
	for _, a := range attrs {
		videos = append(videos, a)
	}
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CourseOrder != videos[j].CourseOrder {
			return videos[i].CourseOrder < videos[j].CourseOrder
		}
		return videos[i].VideoID < videos[j].VideoID
	})
	return videos, nil
}

// VideoLengths returns each video's length in minutes
func (s *AnalyticsService) VideoLengths(ctx context.Context) (map[string]float64, error) {
	s.mu.RLock()
	events := s.events
	s.mu.RUnlock()

	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	attrs, err := s.pipeline.VideoAttributeTable(events)
	if err != nil {
		return nil, fmt.Errorf("build video attributes: %w", err)
	}
	return analytics.VideoLengths(attrs), nil
}

// ChapterMarkers returns reversed chapter boundary positions for the
// dashboard's chapter overlay
func (s *AnalyticsService) ChapterMarkers(ctx context.Context) ([]float64, error) {
	s.mu.RLock()
	chapters := s.chapters
	s.mu.RUnlock()

	if len(chapters) == 0 {
		return nil, ErrNoChapters
	}

	markers, ok := analytics.ChapterMarkers(chapters)
	if !ok {
		return nil, ErrChaptersUnavailable
	}
	return markers, nil
}
