package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWritesReports(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.csv")
	chaptersPath := filepath.Join(dir, "chapters.csv")
	outDir := filepath.Join(dir, "reports")

	require.NoError(t, os.WriteFile(eventsPath, []byte(
		"user_id,video_id,segment,count,last_segment,max_stop_position,course_order,video_name,index_chapter\n"+
			"u1,vid-a,0,1,1,35.0,10,Intro,1\n"+
			"u2,vid-a,0,1,1,35.0,10,Intro,1\n"+
			"u1,vid-b,0,1,1,30.0,20,Basics,2\n"), 0o644))
	require.NoError(t, os.WriteFile(chaptersPath, []byte(
		"video_id,index_chapter,course_order\nvid-a,1,10\nvid-b,2,20\n"), 0o644))

	err := run(eventsPath, chaptersPath, outDir, 1, 20, 30*time.Second, slog.Default())
	require.NoError(t, err)

	for _, name := range []string{"watch_rates.csv", "summary.csv", "engagement.xlsx"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestRunMissingEventsFile(t *testing.T) {
	err := run("/nonexistent/events.csv", "", t.TempDir(), 1, 20, 30*time.Second, slog.Default())
	require.Error(t, err)
}
