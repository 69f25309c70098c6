package analytics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveToCSV(t *testing.T) {
	rows := []SegmentStat{
		{
			VideoID:      "vid-a",
			VideoName:    "Intro",
			CourseOrder:  1,
			Segment:      0,
			MinIntoVideo: 0.1667,
			Count:        2,
			UniqueViews:  2,
			WatchRate:    1.0,
			AvgWatchRate: 0.5,
			HighLow:      LabelNormal,
			UpUntil:      true,
		},
		{
			VideoID:      "vid-a",
			VideoName:    "Intro",
			CourseOrder:  1,
			Segment:      1,
			MinIntoVideo: 0.5,
			Count:        1,
			UniqueViews:  1,
			WatchRate:    0.5,
			AvgWatchRate: 0.5,
			HighLow:      LabelNormal,
			UpUntil:      false,
		},
	}

	path := filepath.Join(t.TempDir(), "reports", "aggregated.csv")
	require.NoError(t, SaveToCSV(rows, path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"VideoID", "VideoName", "CourseOrder", "Segment", "MinIntoVideo",
		"Count", "UniqueViews", "WatchRate", "AvgWatchRate", "HighLow", "UpUntil",
	}, records[0])

	first := records[1]
	assert.Equal(t, "vid-a", first[0])
	assert.Equal(t, "0.1667", first[4])
	assert.Equal(t, "1.00", first[7])
	assert.Equal(t, "true", first[10])

	second := records[2]
	assert.Equal(t, "1", second[3])
	assert.Equal(t, "0.50", second[7])
	assert.Equal(t, "false", second[10])
}

func TestSaveToCSVEmptyRows(t *testing.T) {
	err := SaveToCSV(nil, filepath.Join(t.TempDir(), "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no segment rows")
}
