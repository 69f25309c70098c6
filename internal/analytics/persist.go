package analytics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SaveToCSV writes the aggregated segment table to a CSV file in the layout
// the offline report tooling and spreadsheet users expect.
func SaveToCSV(rows []SegmentStat, outputPath string) error {
	if len(rows) == 0 {
		return fmt.Errorf("no segment rows to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"VideoID",
		"VideoName",
		"CourseOrder",
		"Segment",
		"MinIntoVideo",
		"Count",
		"UniqueViews",
		"WatchRate",
		"AvgWatchRate",
		"HighLow",
		"UpUntil",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.VideoID,
			r.VideoName,
			strconv.Itoa(r.CourseOrder),
			strconv.Itoa(r.Segment),
			formatFloat(r.MinIntoVideo, 4),
			strconv.Itoa(r.Count),
			strconv.Itoa(r.UniqueViews),
			formatFloat(r.WatchRate, 2),
			formatFloat(r.AvgWatchRate, 2),
			r.HighLow,
			strconv.FormatBool(r.UpUntil),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV record for %s segment %d: %w", r.VideoID, r.Segment, err)
		}
	}

	return nil
}

// formatFloat formats a float with fixed precision for CSV output.
func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}
