package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"edupulse/internal/analytics"
)

const (
	sheetSummary   = "Summary"
	sheetWatchRate = "Watch Rates"
)

// ExcelWriter exports an engagement workbook with a summary sheet and the
// full per-segment table
type ExcelWriter struct {
	reportsDir string
	logger     *slog.Logger
}

// NewExcelWriter creates a new Excel writer rooted at reportsDir
func NewExcelWriter(reportsDir string, logger *slog.Logger) *ExcelWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelWriter{
		reportsDir: reportsDir,
		logger:     logger.With(slog.String("component", "exporter")),
	}
}

// WriteEngagementWorkbook writes summary and watch-rate sheets to one
// workbook file
func (w *ExcelWriter) WriteEngagementWorkbook(filename string, summary []analytics.SummaryRow, rows []analytics.SegmentStat) error {
	fullPath := filepath.Join(w.reportsDir, filename)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), sheetSummary)
	if _, err := f.NewSheet(sheetWatchRate); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := w.writeSummarySheet(f, headerStyle, summary); err != nil {
		return err
	}
	if err := w.writeWatchRateSheet(f, headerStyle, rows); err != nil {
		return err
	}

	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	w.logger.Info("engagement workbook written",
		slog.String("path", fullPath),
		slog.Int("summary_rows", len(summary)),
		slog.Int("segment_rows", len(rows)))
	return nil
}

func (w *ExcelWriter) writeSummarySheet(f *excelize.File, headerStyle int, summary []analytics.SummaryRow) error {
	headers := []interface{}{
		"Video ID", "Video Name", "Course Order", "Length (min)",
		"Unique Views", "Avg Watch Rate", "Dwell Ratio",
	}
	if err := f.SetSheetRow(sheetSummary, "A1", &headers); err != nil {
		return fmt.Errorf("write summary headers: %w", err)
	}
	if err := f.SetRowStyle(sheetSummary, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style summary headers: %w", err)
	}

	for i, s := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("summary row %d: %w", i, err)
		}
		row := []interface{}{
			s.VideoID, s.VideoName, s.CourseOrder, s.LengthMinutes,
			s.UniqueViews, s.AvgWatchRate, s.DwellRatio,
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i, err)
		}
	}
	return nil
}

func (w *ExcelWriter) writeWatchRateSheet(f *excelize.File, headerStyle int, rows []analytics.SegmentStat) error {
	headers := []interface{}{
		"Video ID", "Video Name", "Segment", "Min Into Video",
		"Course Order", "Count", "Unique Views", "Watch Rate",
		"Avg Watch Rate", "High/Low", "Up Until",
	}
	if err := f.SetSheetRow(sheetWatchRate, "A1", &headers); err != nil {
		return fmt.Errorf("write watch-rate headers: %w", err)
	}
	if err := f.SetRowStyle(sheetWatchRate, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style watch-rate headers: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("watch-rate row %d: %w", i, err)
		}
		row := []interface{}{
			r.VideoID, r.VideoName, r.Segment, r.MinIntoVideo,
			r.CourseOrder, r.Count, r.UniqueViews, r.WatchRate,
			r.AvgWatchRate, r.HighLow, r.UpUntil,
		}
		if err := f.SetSheetRow(sheetWatchRate, cell, &row); err != nil {
			return fmt.Errorf("write watch-rate row %d: %w", i, err)
		}
	}
	return nil
}
