package exporter

import (
	"bytes"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/internal/analytics"
)

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir, slog.Default())

	err := writer.WriteCSV("report.csv", WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "2"}, {"3", "4"}},
		BOMPrefix: true,
	})
	require.NoError(t, err)

	records := readCSVFile(t, filepath.Join(dir, "report.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"a", "b"}, records[0])
	assert.Equal(t, []string{"3", "4"}, records[2])
}

func TestWriteCSVAppend(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir, slog.Default())

	require.NoError(t, writer.WriteCSV("report.csv", WriteOptions{
		Headers: []string{"a"},
		Records: [][]string{{"1"}},
	}))
	require.NoError(t, writer.WriteCSV("report.csv", WriteOptions{
		Records: [][]string{{"2"}},
		Append:  true,
	}))

	records := readCSVFile(t, filepath.Join(dir, "report.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2"}, records[2])
}

func TestWriteWatchRateReport(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir, slog.Default())

	rows := []analytics.SegmentStat{
		{
			VideoID: "vid-a", VideoName: "Intro", Segment: 0,
			MinIntoVideo: 0.1667, CourseOrder: 1, Count: 2, UniqueViews: 2,
			WatchRate: 1.0, AvgWatchRate: 0.5, HighLow: analytics.LabelNormal,
			UpUntil: true,
		},
	}
	require.NoError(t, writer.WriteWatchRateReport("watch_rates.csv", rows))

	records := readCSVFile(t, filepath.Join(dir, "watch_rates.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "video_id", records[0][0])
	assert.Equal(t, "vid-a", records[1][0])
	assert.Equal(t, "1.00", records[1][7])
	assert.Equal(t, "true", records[1][10])
}

func TestWriteSummaryReport(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir, slog.Default())

	summary := []analytics.SummaryRow{
		{
			VideoID: "vid-a", VideoName: "Intro", CourseOrder: 1,
			LengthMinutes: 0.92, UniqueViews: 2, AvgWatchRate: 0.47,
			DwellRatio: 0.51,
		},
	}
	require.NoError(t, writer.WriteSummaryReport("summary.csv", summary))

	records := readCSVFile(t, filepath.Join(dir, "summary.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "Intro", records[1][1])
	assert.Equal(t, "0.47", records[1][5])
}
