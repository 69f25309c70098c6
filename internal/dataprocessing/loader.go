// Package dataprocessing loads raw interaction-log exports into the
// analytics event model. Both CSV and Excel exports are supported; columns
// are located by header name so exports with reordered or extra columns
// still parse.
package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"edupulse/internal/analytics"
)

// Event log column headers. Matching is case-insensitive after trimming.
const (
	colUserID       = "user_id"
	colVideoID      = "video_id"
	colSegment      = "segment"
	colMinIntoVideo = "min_into_video"
	colCount        = "count"
	colLastSegment  = "last_segment"
	colMaxStop      = "max_stop_position"
	colCourseOrder  = "course_order"
	colVideoName    = "video_name"
	colChapterIndex = "index_chapter"
)

// Loader parses watch-event and course-structure files
type Loader struct {
	segmentSeconds int
	logger         *slog.Logger
}

// NewLoader creates a loader. segmentSeconds is used to synthesize
// min_into_video when the export omits that column.
func NewLoader(segmentSeconds int, logger *slog.Logger) *Loader {
	if segmentSeconds <= 0 {
		segmentSeconds = analytics.DefaultSegmentSeconds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		segmentSeconds: segmentSeconds,
		logger:         logger.With(slog.String("component", "dataprocessing")),
	}
}

// LoadEvents reads a watch-event export. Malformed rows are skipped with a
// warning rather than failing the whole file.
func (l *Loader) LoadEvents(path string) ([]analytics.WatchEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("event file %s: no data rows", path)
	}

	cols, err := mapColumns(rows[0], colVideoID, colSegment, colCount, colLastSegment)
	if err != nil {
		return nil, fmt.Errorf("event file %s: %w", path, err)
	}

	events := make([]analytics.WatchEvent, 0, len(rows)-1)
	skipped := 0
	for i, row := range rows[1:] {
		event, err := l.parseEventRow(row, cols)
		if err != nil {
			skipped++
			l.logger.Warn("skipping malformed event row",
				slog.String("file", filepath.Base(path)),
				slog.Int("row", i+2),
				slog.String("error", err.Error()))
			continue
		}
		events = append(events, event)
	}

	l.logger.Info("event file parsed",
		slog.String("file", filepath.Base(path)),
		slog.Int("events", len(events)),
		slog.Int("skipped", skipped))

	return events, nil
}

// LoadChapters reads the static course-structure table mapping each video
// to its chapter and course position.
func (l *Loader) LoadChapters(path string) ([]analytics.ChapterVideo, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("chapter file %s: no data rows", path)
	}

	cols, err := mapColumns(rows[0], colVideoID, colChapterIndex, colCourseOrder)
	if err != nil {
		return nil, fmt.Errorf("chapter file %s: %w", path, err)
	}

	chapters := make([]analytics.ChapterVideo, 0, len(rows)-1)
	for i, row := range rows[1:] {
		videoID := cellAt(row, cols[colVideoID])
		chapterIdx, err1 := intAt(row, cols[colChapterIndex])
		courseOrder, err2 := intAt(row, cols[colCourseOrder])
		if videoID == "" || err1 != nil || err2 != nil {
			l.logger.Warn("skipping malformed chapter row",
				slog.String("file", filepath.Base(path)),
				slog.Int("row", i+2))
			continue
		}
		chapters = append(chapters, analytics.ChapterVideo{
			VideoID:      videoID,
			ChapterIndex: chapterIdx,
			CourseOrder:  courseOrder,
		})
	}
	return chapters, nil
}

func (l *Loader) parseEventRow(row []string, cols map[string]int) (analytics.WatchEvent, error) {
	segment, err := intAt(row, cols[colSegment])
	if err != nil {
		return analytics.WatchEvent{}, fmt.Errorf("segment: %w", err)
	}
	count, err := intAt(row, cols[colCount])
	if err != nil {
		return analytics.WatchEvent{}, fmt.Errorf("count: %w", err)
	}
	lastSegment, err := intAt(row, cols[colLastSegment])
	if err != nil {
		return analytics.WatchEvent{}, fmt.Errorf("last_segment: %w", err)
	}

	event := analytics.WatchEvent{
		UserID:      cellAt(row, idxOf(cols, colUserID)),
		VideoID:     cellAt(row, cols[colVideoID]),
		Segment:     segment,
		Count:       count,
		LastSegment: lastSegment,
		VideoName:   cellAt(row, idxOf(cols, colVideoName)),
	}

	if idx, ok := cols[colMinIntoVideo]; ok {
		if event.MinIntoVideo, err = floatAt(row, idx); err != nil {
			return analytics.WatchEvent{}, fmt.Errorf("min_into_video: %w", err)
		}
	} else {
		segSec := float64(l.segmentSeconds)
		event.MinIntoVideo = float64(segment)*segSec/analytics.SecondsPerMinute + segSec/(2*analytics.SecondsPerMinute)
	}
	if idx, ok := cols[colMaxStop]; ok {
		if event.MaxStopPosition, err = floatAt(row, idx); err != nil {
			return analytics.WatchEvent{}, fmt.Errorf("max_stop_position: %w", err)
		}
	}
	if idx, ok := cols[colCourseOrder]; ok {
		if event.CourseOrder, err = intAt(row, idx); err != nil {
			return analytics.WatchEvent{}, fmt.Errorf("course_order: %w", err)
		}
	}
	if idx, ok := cols[colChapterIndex]; ok {
		if event.ChapterIndex, err = intAt(row, idx); err != nil {
			return analytics.WatchEvent{}, fmt.Errorf("index_chapter: %w", err)
		}
	}

	if !event.IsValid() {
		return analytics.WatchEvent{}, fmt.Errorf("row fails event invariants")
	}
	return event, nil
}

// readRows loads the file into string rows, dispatching on extension
func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// mapColumns locates each known header in the header row and verifies the
// required ones are present
func mapColumns(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return cols, nil
}

// idxOf returns the column index for name, or -1 when the column is absent
func idxOf(cols map[string]int, name string) int {
	if i, ok := cols[name]; ok {
		return i
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func intAt(row []string, idx int) (int, error) {
	cell := cellAt(row, idx)
	if cell == "" {
		return 0, fmt.Errorf("empty cell")
	}
	v, err := strconv.Atoi(cell)
	if err != nil {
		// Excel often renders integers as floats
		f, ferr := strconv.ParseFloat(cell, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, err
		}
		return int(f), nil
	}
	return v, nil
}

func floatAt(row []string, idx int) (float64, error) {
	cell := cellAt(row, idx)
	if cell == "" {
		return 0, fmt.Errorf("empty cell")
	}
	return strconv.ParseFloat(cell, 64)
}
