package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/internal/analytics"
	"edupulse/internal/dataprocessing"
	"edupulse/internal/services"
)

func dataRouter(svc *services.AnalyticsService) chi.Router {
	loader := dataprocessing.NewLoader(analytics.DefaultSegmentSeconds, slog.Default())
	r := chi.NewRouter()
	r.Mount("/api/data", NewDataHandler(svc, loader, slog.Default()).Routes())
	return r
}

func TestGetStatus(t *testing.T) {
	router := dataRouter(loadedService(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status services.DataStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 4, status.EventCount)
	assert.Equal(t, 2, status.VideoCount)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.csv")
	chaptersPath := filepath.Join(dir, "chapters.csv")

	require.NoError(t, os.WriteFile(eventsPath, []byte(
		"user_id,video_id,segment,count,last_segment,max_stop_position,course_order,video_name,index_chapter\n"+
			"u1,vid-a,0,1,1,35.0,10,Intro,1\n"+
			"u2,vid-a,1,1,1,35.0,10,Intro,1\n"), 0o644))
	require.NoError(t, os.WriteFile(chaptersPath, []byte(
		"video_id,index_chapter,course_order\nvid-a,1,10\n"), 0o644))

	svc := services.NewAnalyticsService(analytics.Config{}, slog.Default())
	router := dataRouter(svc)

	body := `{"events_file":` + jsonQuote(eventsPath) + `,"chapters_file":` + jsonQuote(chaptersPath) + `}`
	req := httptest.NewRequest(http.MethodPost, "/api/data/reload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var status services.DataStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 2, status.EventCount)
	assert.Equal(t, 1, status.VideoCount)
	assert.Equal(t, 1, status.ChapterCount)
}

func TestReloadMissingEventsFile(t *testing.T) {
	svc := services.NewAnalyticsService(analytics.Config{}, slog.Default())
	router := dataRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/data/reload", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReloadUnreadableFile(t *testing.T) {
	svc := services.NewAnalyticsService(analytics.Config{}, slog.Default())
	router := dataRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/data/reload",
		strings.NewReader(`{"events_file":"/nonexistent/events.csv"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "EVENT_FILE_UNREADABLE")
}

// jsonQuote JSON-quotes a string for inline request bodies
func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
