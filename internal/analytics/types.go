package analytics

import (
	"fmt"
	"time"
)

// Default pipeline constants. Segment length is fixed by the player
// instrumentation; every watch event is bucketed into 20-second windows.
const (
	DefaultSegmentSeconds = 20
	SecondsPerMinute      = 60

	// Minimum number of completed segment rows required before the
	// residual model is worth fitting.
	MinRowsForClassification = 3

	DefaultCalculationTimeout = 30 * time.Second
)

// Watch-rate labels assigned by the anomaly classifier.
const (
	LabelHigh   = "High Watch Rate"
	LabelLow    = "Low Watch Rate"
	LabelNormal = "Normal"
)

// WatchEvent is one raw interaction-log row: a single learner's watch
// count for one 20-second segment of one video.
type WatchEvent struct {
	UserID          string  `json:"user_id"`
	VideoID         string  `json:"video_id"`
	Segment         int     `json:"segment"`
	MinIntoVideo    float64 `json:"min_into_video"`
	Count           int     `json:"count"`
	LastSegment     int     `json:"last_segment"`
	MaxStopPosition float64 `json:"max_stop_position"` // video duration in seconds
	CourseOrder     int     `json:"course_order"`
	VideoName       string  `json:"video_name"`
	ChapterIndex    int     `json:"index_chapter"`
}

// IsValid checks the invariants the aggregator relies on.
func (e WatchEvent) IsValid() bool {
	return e.VideoID != "" && e.Segment >= 0 && e.Segment <= e.LastSegment &&
		e.Count >= 0 && e.MaxStopPosition >= 0
}

// SegmentStat is one aggregated row per (video, segment). After completion
// every video with at least one viewer has exactly one row for every integer
// segment in [0, LastSegment].
type SegmentStat struct {
	VideoID         string  `json:"video_id"`
	VideoName       string  `json:"video_name"`
	Segment         int     `json:"segment"`
	MinIntoVideo    float64 `json:"min_into_video"`
	LastSegment     int     `json:"last_segment"`
	MaxStopPosition float64 `json:"max_stop_position"`
	CourseOrder     int     `json:"course_order"` // densely re-ranked by the normalizer
	Count           int     `json:"count"`
	UniqueViews     int     `json:"unique_views"`
	WatchRate       float64 `json:"watch_rate"`
	AvgWatchRate    float64 `json:"avg_watch_rate"`
	HighLow         string  `json:"high_low"`
	UpUntil         bool    `json:"up_until"` // average learner reached this segment
}

// VideoAttributes is the per-video projection of the aggregated table,
// used to backfill synthesized segments and to build summary rows.
type VideoAttributes struct {
	VideoID         string  `json:"video_id"`
	VideoName       string  `json:"video_name"`
	LastSegment     int     `json:"last_segment"`
	MaxStopPosition float64 `json:"max_stop_position"`
	CourseOrder     int     `json:"course_order"`
	UniqueViews     int     `json:"unique_views"`
}

// SummaryRow is the per-video rollup consumed by the dashboard's summary table.
type SummaryRow struct {
	VideoID       string  `json:"video_id"`
	VideoName     string  `json:"video_name"`
	CourseOrder   int     `json:"course_order"`
	LengthMinutes float64 `json:"length_minutes"`
	UniqueViews   int     `json:"unique_views"`
	AvgWatchRate  float64 `json:"avg_watch_rate"`
	DwellRatio    float64 `json:"dwell_ratio"` // avg watched seconds / video length
}

// ChapterVideo is one row of the static course-structure table.
type ChapterVideo struct {
	VideoID      string `json:"video_id"`
	ChapterIndex int    `json:"index_chapter"`
	CourseOrder  int    `json:"course_order"`
}

// Config holds the named pipeline constants. The zero value is completed
// by NewPipeline with sensible defaults.
type Config struct {
	// SegmentSeconds is the fixed duration of one playback segment.
	SegmentSeconds int
	// TopSelection is K: how many segments may be flagged high and how
	// many low by the residual classifier.
	TopSelection int
	// CalculationTimeout bounds one full recomputation.
	CalculationTimeout time.Duration
}

// IsValid checks that the configuration is usable.
func (c Config) IsValid() bool {
	return c.SegmentSeconds > 0 && c.TopSelection >= 0 && c.CalculationTimeout > 0
}

// IntegrityError reports per-video metadata that is not single-valued within
// a group. The source data assumes name, length and course order are constant
// per video; a violation would silently corrupt the aggregate table, so it is
// surfaced instead.
type IntegrityError struct {
	VideoID string
	Field   string
	Values  [2]string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("inconsistent %s for video %s: %q vs %q",
		e.Field, e.VideoID, e.Values[0], e.Values[1])
}
