package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"
)

// Pipeline orchestrates the segment aggregation, completion, normalization
// and anomaly classification stages that turn raw watch events into the
// aggregated segment table consumed by the heatmap renderer.
//
// A Pipeline is stateless between calls: every AggregatedTable call is an
// atomic, idempotent recomputation from the events it is given.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// NewPipeline creates a pipeline with the given configuration, filling in
// defaults for zero-valued fields.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SegmentSeconds == 0 {
		cfg.SegmentSeconds = DefaultSegmentSeconds
	}
	if cfg.CalculationTimeout == 0 {
		cfg.CalculationTimeout = DefaultCalculationTimeout
	}

	return &Pipeline{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "analytics_pipeline")),
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// AggregatedTable runs the full pipeline over a demographically filtered
// event set: aggregate observed segments, complete missing ones, normalize
// watch rates and course order, flag high/low segments, and annotate the
// up-until marker. The returned rows are sorted by (course order, segment).
func (p *Pipeline) AggregatedTable(ctx context.Context, events []WatchEvent) ([]SegmentStat, error) {
	start := time.Now()

	calcCtx, cancel := context.WithTimeout(ctx, p.cfg.CalculationTimeout)
	defer cancel()

	p.logger.InfoContext(calcCtx, "starting segment aggregation",
		"events", len(events),
		"top_selection", p.cfg.TopSelection,
	)

	observed, attrs, err := p.aggregate(events)
	if err != nil {
		return nil, fmt.Errorf("aggregate segments: %w", err)
	}
	if len(observed) == 0 {
		return nil, nil
	}

	select {
	case <-calcCtx.Done():
		return nil, fmt.Errorf("aggregation cancelled: %w", calcCtx.Err())
	default:
	}

	completed := p.complete(observed, attrs)
	rows := p.normalize(completed)

	if err := p.classify(calcCtx, rows); err != nil {
		return nil, fmt.Errorf("classify segments: %w", err)
	}

	p.annotateUpUntil(rows, AvgTimeSpent(events, p.cfg.SegmentSeconds))

	p.logger.InfoContext(calcCtx, "segment aggregation completed",
		"duration", time.Since(start),
		"videos", len(attrs),
		"rows", len(rows),
	)

	return rows, nil
}

// VideoAttributeTable aggregates events into the per-video attribute
// projection without running the per-segment stages.
func (p *Pipeline) VideoAttributeTable(events []WatchEvent) (map[string]VideoAttributes, error) {
	_, attrs, err := p.aggregate(events)
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// aggregate groups observed events by (video, segment), summing counts and
// carrying the per-video metadata, which must be single-valued within each
// video. Unique viewers are counted per video over the entire filtered set.
// Videos without a single distinct viewer are dropped rather than producing
// a division by zero.
func (p *Pipeline) aggregate(events []WatchEvent) ([]SegmentStat, map[string]VideoAttributes, error) {
	type groupKey struct {
		videoID string
		segment int
	}

	groups := make(map[groupKey]*SegmentStat)
	viewers := make(map[string]map[string]struct{})
	order := make([]groupKey, 0, len(events))

	for _, e := range events {
		if e.UserID == "" {
			continue // anonymous rows carry no viewer identity
		}
		if !e.IsValid() {
			p.logger.Warn("skipping invalid watch event",
				"video_id", e.VideoID,
				"segment", e.Segment,
				"count", e.Count,
			)
			continue
		}

		if viewers[e.VideoID] == nil {
			viewers[e.VideoID] = make(map[string]struct{})
		}
		viewers[e.VideoID][e.UserID] = struct{}{}

		key := groupKey{videoID: e.VideoID, segment: e.Segment}
		g, ok := groups[key]
		if !ok {
			groups[key] = &SegmentStat{
				VideoID:         e.VideoID,
				VideoName:       e.VideoName,
				Segment:         e.Segment,
				MinIntoVideo:    e.MinIntoVideo,
				LastSegment:     e.LastSegment,
				MaxStopPosition: e.MaxStopPosition,
				CourseOrder:     e.CourseOrder,
				Count:           e.Count,
			}
			order = append(order, key)
			continue
		}

		if err := checkGroupMetadata(g, e); err != nil {
			return nil, nil, err
		}
		g.Count += e.Count
	}

	attrs := make(map[string]VideoAttributes, len(viewers))
	stats := make([]SegmentStat, 0, len(order))

	for _, key := range order {
		g := groups[key]
		unique := len(viewers[g.VideoID])
		if unique == 0 {
			continue
		}
		g.UniqueViews = unique
		g.WatchRate = round2(float64(g.Count) / float64(unique))
		stats = append(stats, *g)

		if a, ok := attrs[g.VideoID]; !ok {
			attrs[g.VideoID] = VideoAttributes{
				VideoID:         g.VideoID,
				VideoName:       g.VideoName,
				LastSegment:     g.LastSegment,
				MaxStopPosition: g.MaxStopPosition,
				CourseOrder:     g.CourseOrder,
				UniqueViews:     unique,
			}
		} else if a.VideoName != g.VideoName || a.CourseOrder != g.CourseOrder ||
			a.MaxStopPosition != g.MaxStopPosition || a.LastSegment != g.LastSegment {
			return nil, nil, &IntegrityError{
				VideoID: g.VideoID,
				Field:   "video metadata",
				Values:  [2]string{a.VideoName, g.VideoName},
			}
		}
	}

	return stats, attrs, nil
}

// checkGroupMetadata verifies that the per-video fields of an incoming event
// agree with the group it is being merged into.
func checkGroupMetadata(g *SegmentStat, e WatchEvent) error {
	switch {
	case g.VideoName != e.VideoName:
		return &IntegrityError{VideoID: g.VideoID, Field: "video_name",
			Values: [2]string{g.VideoName, e.VideoName}}
	case g.CourseOrder != e.CourseOrder:
		return &IntegrityError{VideoID: g.VideoID, Field: "course_order",
			Values: [2]string{strconv.Itoa(g.CourseOrder), strconv.Itoa(e.CourseOrder)}}
	case g.MaxStopPosition != e.MaxStopPosition:
		return &IntegrityError{VideoID: g.VideoID, Field: "max_stop_position",
			Values: [2]string{
				strconv.FormatFloat(g.MaxStopPosition, 'f', -1, 64),
				strconv.FormatFloat(e.MaxStopPosition, 'f', -1, 64)}}
	case g.LastSegment != e.LastSegment:
		return &IntegrityError{VideoID: g.VideoID, Field: "last_segment",
			Values: [2]string{strconv.Itoa(g.LastSegment), strconv.Itoa(e.LastSegment)}}
	}
	return nil
}

// complete inserts a zero-count row for every segment in [0, LastSegment]
// that no one watched, so every video's heatmap column is contiguous. The
// anti-join is keyed on (video, segment) exactly; the synthesized
// MinIntoVideo places the point at the segment midpoint.
func (p *Pipeline) complete(observed []SegmentStat, attrs map[string]VideoAttributes) []SegmentStat {
	type segKey struct {
		videoID string
		segment int
	}

	have := make(map[segKey]struct{}, len(observed))
	for _, s := range observed {
		have[segKey{s.VideoID, s.Segment}] = struct{}{}
	}

	rows := make([]SegmentStat, len(observed), len(observed)+len(attrs))
	copy(rows, observed)

	segSec := float64(p.cfg.SegmentSeconds)
	filled := 0
	for _, a := range attrs {
		for s := 0; s <= a.LastSegment; s++ {
			if _, ok := have[segKey{a.VideoID, s}]; ok {
				continue
			}
			rows = append(rows, SegmentStat{
				VideoID:         a.VideoID,
				VideoName:       a.VideoName,
				Segment:         s,
				MinIntoVideo:    float64(s)*segSec/SecondsPerMinute + segSec/(2*SecondsPerMinute),
				LastSegment:     a.LastSegment,
				MaxStopPosition: a.MaxStopPosition,
				CourseOrder:     a.CourseOrder,
				Count:           0,
				UniqueViews:     a.UniqueViews,
				WatchRate:       0,
			})
			filled++
		}
	}

	if filled > 0 {
		p.logger.Debug("backfilled unwatched segments", "rows", filled)
	}

	sortByCourseOrder(rows)
	return rows
}

// normalize recomputes the per-video average watch rate over the completed
// segment set, drops join artifacts without a video name, and replaces the
// raw course ordinals with a dense ranking so course order is contiguous.
func (p *Pipeline) normalize(rows []SegmentStat) []SegmentStat {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		sums[r.VideoID] += r.WatchRate
		counts[r.VideoID]++
	}

	kept := rows[:0]
	for _, r := range rows {
		if r.VideoName == "" {
			continue
		}
		r.AvgWatchRate = round2(sums[r.VideoID] / float64(counts[r.VideoID]))
		kept = append(kept, r)
	}

	orders := make([]float64, len(kept))
	for i, r := range kept {
		orders[i] = float64(r.CourseOrder)
	}
	for i, rank := range DenseRank(orders) {
		kept[i].CourseOrder = rank
	}

	return kept
}

// annotateUpUntil marks each segment the average learner is expected to
// reach, comparing the segment's start offset with the video's average
// watched seconds.
func (p *Pipeline) annotateUpUntil(rows []SegmentStat, avgSeconds map[string]float64) {
	for i := range rows {
		startSec := float64(rows[i].Segment * p.cfg.SegmentSeconds)
		rows[i].UpUntil = startSec < avgSeconds[rows[i].VideoID]
	}
}

// sortByCourseOrder orders rows by (course order, segment), with the video
// id as a deterministic tie break.
func sortByCourseOrder(rows []SegmentStat) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CourseOrder != rows[j].CourseOrder {
			return rows[i].CourseOrder < rows[j].CourseOrder
		}
		if rows[i].VideoID != rows[j].VideoID {
			return rows[i].VideoID < rows[j].VideoID
		}
		return rows[i].Segment < rows[j].Segment
	})
}

// round2 rounds to two decimal places, the precision the dashboard displays.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
