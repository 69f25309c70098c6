package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/internal/analytics"
)

func testEvent(userID, videoID string, segment, count int) analytics.WatchEvent {
	meta := map[string]struct {
		name        string
		order       int
		lastSegment int
		maxStop     float64
		chapter     int
	}{
		"vid-a": {"Intro", 10, 2, 55.0, 1},
		"vid-b": {"Basics", 20, 1, 35.0, 2},
	}[videoID]

	segSec := float64(analytics.DefaultSegmentSeconds)
	return analytics.WatchEvent{
		UserID:          userID,
		VideoID:         videoID,
		Segment:         segment,
		MinIntoVideo:    float64(segment)*segSec/60 + segSec/120,
		Count:           count,
		LastSegment:     meta.lastSegment,
		MaxStopPosition: meta.maxStop,
		CourseOrder:     meta.order,
		VideoName:       meta.name,
		ChapterIndex:    meta.chapter,
	}
}

func testEvents() []analytics.WatchEvent {
	return []analytics.WatchEvent{
		testEvent("u1", "vid-a", 0, 1),
		testEvent("u2", "vid-a", 0, 1),
		testEvent("u1", "vid-a", 1, 1),
		testEvent("u1", "vid-b", 0, 1),
	}
}

func testChapters() []analytics.ChapterVideo {
	return []analytics.ChapterVideo{
		{VideoID: "vid-a", ChapterIndex: 1, CourseOrder: 10},
		{VideoID: "vid-b", ChapterIndex: 2, CourseOrder: 20},
	}
}

func newTestService(t *testing.T) *AnalyticsService {
	t.Helper()
	return NewAnalyticsService(analytics.Config{}, slog.Default())
}

func loadedTestService(t *testing.T) *AnalyticsService {
	t.Helper()
	svc := newTestService(t)
	require.NoError(t, svc.ReplaceData(context.Background(), testEvents(), testChapters()))
	return svc
}

func TestReplaceDataStatus(t *testing.T) {
	svc := loadedTestService(t)

	status := svc.Status()
	assert.Equal(t, 4, status.EventCount)
	assert.Equal(t, 2, status.VideoCount)
	assert.Equal(t, 2, status.ChapterCount)
	assert.True(t, status.Loaded())
	assert.False(t, status.LoadedAt.IsZero())
}

func TestWatchRateTable(t *testing.T) {
	svc := loadedTestService(t)

	rows, err := svc.WatchRateTable(context.Background(), WatchRateOptions{})
	require.NoError(t, err)

	// vid-a completes to segments 0..2, vid-b to 0..1
	assert.Len(t, rows, 5)
	assert.InDelta(t, 1.0, rows[0].WatchRate, 1e-9)
	assert.Equal(t, "vid-a", rows[0].VideoID)
}

func TestWatchRateTableVideoFilter(t *testing.T) {
	svc := loadedTestService(t)

	rows, err := svc.WatchRateTable(context.Background(), WatchRateOptions{VideoID: "vid-a"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "vid-a", row.VideoID)
	}

	_, err = svc.WatchRateTable(context.Background(), WatchRateOptions{VideoID: "missing"})
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestWatchRateTableTopOverride(t *testing.T) {
	svc := loadedTestService(t)

	top := -1
	_, err := svc.WatchRateTable(context.Background(), WatchRateOptions{Top: &top})
	assert.ErrorIs(t, err, ErrInvalidTopSelection)

	top = 1
	rows, err := svc.WatchRateTable(context.Background(), WatchRateOptions{Top: &top})
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	for _, row := range rows {
		assert.NotEmpty(t, row.HighLow)
	}
}

func TestWatchRateTableNoData(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.WatchRateTable(context.Background(), WatchRateOptions{})
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestSummary(t *testing.T) {
	svc := loadedTestService(t)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, "vid-a", summary[0].VideoID)
	assert.Equal(t, "vid-b", summary[1].VideoID)
	assert.Equal(t, 2, summary[0].UniqueViews)
	assert.InDelta(t, 0.92, summary[0].LengthMinutes, 1e-9)
}

func TestVideos(t *testing.T) {
	svc := loadedTestService(t)

	videos, err := svc.Videos(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "vid-a", videos[0].VideoID)
	assert.Equal(t, "vid-b", videos[1].VideoID)
}

func TestVideoLengths(t *testing.T) {
	svc := loadedTestService(t)

	lengths, err := svc.VideoLengths(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.92, lengths["vid-a"], 1e-9)
	assert.InDelta(t, 0.58, lengths["vid-b"], 1e-9)
}

func TestChapterMarkers(t *testing.T) {
	svc := loadedTestService(t)

	markers, err := svc.ChapterMarkers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, markers)
}

func TestChapterMarkersUnavailable(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.ReplaceData(context.Background(), testEvents(), []analytics.ChapterVideo{
		{VideoID: "vid-a", ChapterIndex: 1, CourseOrder: 10},
	}))

	_, err := svc.ChapterMarkers(context.Background())
	assert.ErrorIs(t, err, ErrChaptersUnavailable)
}

func TestChapterMarkersNoChapters(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.ReplaceData(context.Background(), testEvents(), nil))

	_, err := svc.ChapterMarkers(context.Background())
	assert.ErrorIs(t, err, ErrNoChapters)
}

type captureNotifier struct {
	statuses []DataStatus
}

func (n *captureNotifier) NotifyDataReload(_ context.Context, status DataStatus) {
	n.statuses = append(n.statuses, status)
}

func TestReplaceDataNotifies(t *testing.T) {
	notifier := &captureNotifier{}
	svc := NewAnalyticsService(analytics.Config{}, slog.Default(), WithNotifier(notifier))

	require.NoError(t, svc.ReplaceData(context.Background(), testEvents(), testChapters()))

	require.Len(t, notifier.statuses, 1)
	assert.Equal(t, 4, notifier.statuses[0].EventCount)
}
