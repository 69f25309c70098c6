// Package exporter writes the derived analytics tables to report files
// consumed outside the dashboard.
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"edupulse/internal/analytics"
)

// CSVWriter exports tables as CSV report files under a reports directory
type CSVWriter struct {
	reportsDir string
	logger     *slog.Logger
}

// NewCSVWriter creates a new CSV writer rooted at reportsDir
func NewCSVWriter(reportsDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		reportsDir: reportsDir,
		logger:     logger.With(slog.String("component", "exporter")),
	}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file under the reports directory
func (w *CSVWriter) WriteCSV(filename string, options WriteOptions) error {
	fullPath := filepath.Join(w.reportsDir, filename)

	w.logger.Info("writing CSV report",
		slog.String("path", fullPath),
		slog.Int("records", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("open report file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	return writer.Error()
}

// WriteWatchRateReport writes the per-segment table as a CSV report
func (w *CSVWriter) WriteWatchRateReport(filename string, rows []analytics.SegmentStat) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.VideoID,
			r.VideoName,
			strconv.Itoa(r.Segment),
			formatFloat(r.MinIntoVideo, 4),
			strconv.Itoa(r.CourseOrder),
			strconv.Itoa(r.Count),
			strconv.Itoa(r.UniqueViews),
			formatFloat(r.WatchRate, 2),
			formatFloat(r.AvgWatchRate, 2),
			r.HighLow,
			strconv.FormatBool(r.UpUntil),
		})
	}

	return w.WriteCSV(filename, WriteOptions{
		Headers: []string{
			"video_id", "video_name", "segment", "min_into_video",
			"course_order", "count", "unique_views", "watch_rate",
			"avg_watch_rate", "high_low", "up_until",
		},
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteSummaryReport writes the per-video rollup as a CSV report
func (w *CSVWriter) WriteSummaryReport(filename string, summary []analytics.SummaryRow) error {
	records := make([][]string, 0, len(summary))
	for _, s := range summary {
		records = append(records, []string{
			s.VideoID,
			s.VideoName,
			strconv.Itoa(s.CourseOrder),
			formatFloat(s.LengthMinutes, 2),
			strconv.Itoa(s.UniqueViews),
			formatFloat(s.AvgWatchRate, 2),
			formatFloat(s.DwellRatio, 2),
		})
	}

	return w.WriteCSV(filename, WriteOptions{
		Headers: []string{
			"video_id", "video_name", "course_order", "length_minutes",
			"unique_views", "avg_watch_rate", "dwell_ratio",
		},
		Records:   records,
		BOMPrefix: true,
	})
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}
