package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/clipdeck/internal/autosave"
	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/gesture"
	"github.com/listenupapp/clipdeck/internal/logger"
	"github.com/listenupapp/clipdeck/internal/search"
	"github.com/listenupapp/clipdeck/internal/store/sqlite"
)

const timelineID = "media-1"

// testViewport maps client x to ms at 20ms per pixel with the default rate.
var testViewport = map[string]float64{"left": 0, "width": 2000, "x_min": 0}

func newEditor() *editor.Editor {
	return editor.New(editor.Config{
		MinDuration: 150,
		Gesture: gesture.Config{
			MinDuration:     150,
			EdgeHitRadiusPx: 5,
			MoveStartDelay:  400 * time.Millisecond,
		},
		PixelsPerSecond: 50,
		EdgeBufferPx:    20,
	}, nil, logger.Discard().Logger)
}

func newTestServer(t *testing.T, services Services, opts Options) *Server {
	t.Helper()
	if services.Editor == nil {
		services.Editor = newEditor()
	}
	return NewServer(services, opts, logger.Discard().Logger)
}

// apiResponse mirrors the envelope with raw data for typed decoding.
type apiResponse struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}

func call(t *testing.T, h http.Handler, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func data[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func openTimeline(t *testing.T, h http.Handler) {
	t.Helper()
	code, resp := call(t, h, http.MethodPost, "/api/v1/timelines", map[string]any{"id": timelineID, "duration_ms": 600_000})
	require.Equal(t, http.StatusCreated, code, resp.Error)
}

func pointer(x float64, timeMs int64) map[string]any {
	return map[string]any{"client_x": x, "time_ms": timeMs, "viewport": testViewport}
}

// dragCreate drags from fromMs to toMs on empty space.
func dragCreate(t *testing.T, h http.Handler, fromMs, toMs int64) gesture.Outcome {
	t.Helper()
	base := "/api/v1/timelines/" + timelineID + "/pointer/"
	code, resp := call(t, h, http.MethodPost, base+"down", pointer(float64(fromMs)/20, 0))
	require.Equal(t, http.StatusOK, code, resp.Error)
	code, resp = call(t, h, http.MethodPost, base+"move", pointer(float64(toMs)/20, 100))
	require.Equal(t, http.StatusOK, code, resp.Error)
	code, resp = call(t, h, http.MethodPost, base+"up", pointer(float64(toMs)/20, 200))
	require.Equal(t, http.StatusOK, code, resp.Error)
	return data[gesture.Outcome](t, resp)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})

	code, resp := call(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	health := data[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Zero(t, health.Timelines)
}

func TestTimelineLifecycle(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})

	code, resp := call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "TIMELINE_NOT_FOUND", resp.Code)

	openTimeline(t, srv)

	code, resp = call(t, srv, http.MethodGet, "/api/v1/timelines", nil)
	require.Equal(t, http.StatusOK, code)
	list := data[[]domain.Timeline](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, int64(600_000), list[0].DurationMs)

	code, _ = call(t, srv, http.MethodDelete, "/api/v1/timelines/"+timelineID, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = call(t, srv, http.MethodDelete, "/api/v1/timelines/"+timelineID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOpenTimeline_Validation(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})

	code, resp := call(t, srv, http.MethodPost, "/api/v1/timelines", map[string]any{"duration_ms": -1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION", resp.Code)
	assert.Equal(t, "is required", resp.Details["id"])
	assert.Contains(t, resp.Details, "duration_ms")

	code, resp = call(t, srv, http.MethodPost, "/api/v1/timelines", map[string]any{"id": "x", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "bogus")
}

func TestPointerGestureCreatesClip(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})
	openTimeline(t, srv)

	outcome := dragCreate(t, srv, 1000, 3000)
	assert.Equal(t, gesture.Created, outcome.Kind)
	assert.Equal(t, int64(1000), outcome.Clip.Start)
	assert.Equal(t, int64(3000), outcome.Clip.End)

	code, resp := call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/clips", nil)
	require.Equal(t, http.StatusOK, code)
	list := data[[]domain.Clip](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, outcome.Clip.ID, list[0].ID)

	// The new clip is selected.
	code, resp = call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/selection", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.ClipSelection(outcome.Clip.ID), data[domain.Selection](t, resp))

	// Nothing pending afterwards.
	_, resp = call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/preview", nil)
	assert.False(t, data[PreviewResponse](t, resp).Active)
}

func TestPointerGesture_TooShortIsDiscarded(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})
	openTimeline(t, srv)

	outcome := dragCreate(t, srv, 1000, 1100)
	assert.Equal(t, gesture.Discarded, outcome.Kind)
	assert.Equal(t, gesture.TooShort, outcome.Reason)

	_, resp := call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/clips", nil)
	assert.Empty(t, data[[]domain.Clip](t, resp))
}

func TestPointerPreviewAndCancel(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})
	openTimeline(t, srv)
	base := "/api/v1/timelines/" + timelineID + "/pointer/"

	_, resp := call(t, srv, http.MethodPost, base+"down", pointer(50, 0))
	assert.Equal(t, gesture.Creating, data[GestureStateResponse](t, resp).State)

	_, resp = call(t, srv, http.MethodPost, base+"move", pointer(100, 50))
	preview := data[PreviewResponse](t, resp)
	require.True(t, preview.Active)
	assert.Equal(t, int64(1000), preview.Preview.Clip.Start)
	assert.Equal(t, int64(2000), preview.Preview.Clip.End)

	_, resp = call(t, srv, http.MethodPost, base+"cancel", nil)
	assert.Equal(t, gesture.Discarded, data[gesture.Outcome](t, resp).Kind)

	_, resp = call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/clips", nil)
	assert.Empty(t, data[[]domain.Clip](t, resp))
}

func TestClipEndpoints(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})
	openTimeline(t, srv)

	a := dragCreate(t, srv, 1000, 2000).Clip
	b := dragCreate(t, srv, 4000, 5000).Clip

	code, resp := call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/clips/at?ms=4500", nil)
	require.Equal(t, http.StatusOK, code)
	at := data[ClipAtResponse](t, resp)
	require.True(t, at.Found)
	assert.Equal(t, b.ID, at.Clip.ID)

	code, resp = call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/clips/at?ms=later", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must be an integer", resp.Details["ms"])

	_, resp = call(t, srv, http.MethodGet, "/api/v1/clips/"+b.ID+"/previous", nil)
	prev := data[NeighborResponse](t, resp)
	require.True(t, prev.Found)
	assert.Equal(t, a.ID, prev.Clip.ID)

	_, resp = call(t, srv, http.MethodGet, "/api/v1/clips/"+b.ID+"/next", nil)
	assert.False(t, data[NeighborResponse](t, resp).Found)

	code, resp = call(t, srv, http.MethodPut, "/api/v1/clips/"+a.ID+"/flashcard", map[string]any{
		"fields": map[string]string{domain.TranscriptionField: "hola"},
		"tags":   []string{"es"},
	})
	require.Equal(t, http.StatusOK, code, resp.Error)

	_, resp = call(t, srv, http.MethodGet, "/api/v1/clips/"+a.ID, nil)
	view := data[editor.ClipView](t, resp)
	assert.Equal(t, "hola", view.Flashcard.Transcription())
	assert.Equal(t, []string{"es"}, view.Flashcard.Tags)

	code, _ = call(t, srv, http.MethodDelete, "/api/v1/clips/"+a.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)
	// Idempotent.
	code, _ = call(t, srv, http.MethodDelete, "/api/v1/clips/"+a.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, resp = call(t, srv, http.MethodGet, "/api/v1/clips/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestImport(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})
	openTimeline(t, srv)
	path := "/api/v1/timelines/" + timelineID + "/import"

	code, resp := call(t, srv, http.MethodPost, path, map[string]any{
		"policy": "append",
		"clips":  []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must be replace or merge", resp.Details["policy"])

	code, resp = call(t, srv, http.MethodPost, path, map[string]any{
		"clips": []map[string]any{
			{"start_ms": 0, "end_ms": 1000, "fields": map[string]string{"transcription": "one"}},
			{"start_ms": 800, "end_ms": 2000, "fields": map[string]string{"transcription": "two"}},
			{"start_ms": 5000, "end_ms": 5050},
		},
	})
	require.Equal(t, http.StatusOK, code, resp.Error)
	result := data[map[string]int](t, resp)
	assert.Equal(t, 1, result["added"])
	assert.Equal(t, 1, result["merged"])
	assert.Equal(t, 1, result["skipped"])

	_, resp = call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/clips", nil)
	list := data[[]domain.Clip](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, int64(0), list[0].Start)
	assert.Equal(t, int64(2000), list[0].End)
}

func TestSelectionAndPlayback(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})
	openTimeline(t, srv)
	clip := dragCreate(t, srv, 1000, 2000).Clip
	base := "/api/v1/timelines/" + timelineID

	code, resp := call(t, srv, http.MethodPut, base+"/selection", map[string]any{"kind": "clip"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Details, "clip_id")

	code, resp = call(t, srv, http.MethodPut, base+"/selection", map[string]any{"kind": "position", "time_ms": 7000})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, domain.PositionSelection(7000), data[domain.Selection](t, resp))

	code, resp = call(t, srv, http.MethodPut, base+"/selection", map[string]any{"kind": "clip", "clip_id": clip.ID})
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, _ = call(t, srv, http.MethodPut, base+"/loop", map[string]any{"loop": true})
	require.Equal(t, http.StatusOK, code)

	// Passing the end of the looped clip jumps back to its start.
	code, resp = call(t, srv, http.MethodPost, base+"/playback", map[string]any{"position_ms": 2100})
	require.Equal(t, http.StatusOK, code, resp.Error)
	tick := data[map[string]any](t, resp)
	assert.Equal(t, true, tick["seek"])
	assert.InDelta(t, 1000, tick["position_ms"], 0.1)

	code, resp = call(t, srv, http.MethodPut, base+"/viewport", map[string]any{"viewport": map[string]float64{"left": 10, "width": 800, "x_min": 0}})
	require.Equal(t, http.StatusOK, code, resp.Error)
	state := data[map[string]any](t, resp)
	assert.Equal(t, true, state["loop_selection"])
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{})
	code, _ := call(t, srv, http.MethodGet, "/api/v1/search?q=x", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	index, err := search.NewSearchIndex(search.Options{})
	require.NoError(t, err)
	defer index.Close()
	require.NoError(t, index.IndexDocument(&search.ClipDocument{ID: "clip-1", TimelineID: timelineID, Transcription: "hola mundo"}))

	srv = newTestServer(t, Services{Search: index}, Options{})
	code, resp := call(t, srv, http.MethodGet, "/api/v1/search?q=mundo&limit=500", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	result := data[search.SearchResult](t, resp)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "clip-1", result.Hits[0].ID)
}

func TestCloseSavesAndReopenRestores(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "clips.db"), logger.Discard().Logger)
	require.NoError(t, err)
	defer store.Close()

	ed := newEditor()
	worker := autosave.New(time.Hour, ed, store, logger.Discard().Logger)
	srv := newTestServer(t, Services{Editor: ed, Snapshots: store, Autosave: worker}, Options{})

	openTimeline(t, srv)
	clip := dragCreate(t, srv, 1000, 2000).Clip

	code, _ := call(t, srv, http.MethodDelete, "/api/v1/timelines/"+timelineID, nil)
	require.Equal(t, http.StatusNoContent, code)

	code, resp := call(t, srv, http.MethodGet, "/api/v1/timelines/saved", nil)
	require.Equal(t, http.StatusOK, code)
	saved := data[[]map[string]any](t, resp)
	require.Len(t, saved, 1)

	// Reopen with shorter media: the clip is kept because it starts in range.
	code, resp = call(t, srv, http.MethodPost, "/api/v1/timelines", map[string]any{"id": timelineID, "duration_ms": 1500})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	opened := data[OpenTimelineResponse](t, resp)
	assert.True(t, opened.Restored)
	assert.Equal(t, 1, opened.Clips)

	_, resp = call(t, srv, http.MethodGet, "/api/v1/clips/"+clip.ID, nil)
	view := data[editor.ClipView](t, resp)
	assert.Equal(t, int64(1500), view.Clip.End)

	// Fresh ignores the snapshot.
	require.NoError(t, ed.CloseTimeline(timelineID))
	_, resp = call(t, srv, http.MethodPost, "/api/v1/timelines", map[string]any{"id": timelineID, "duration_ms": 600_000, "fresh": true})
	assert.False(t, data[OpenTimelineResponse](t, resp).Restored)

	code, resp = call(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", data[HealthResponse](t, resp).Components["database"].Status)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{RateLimit: 0.001, RateBurst: 2})

	for range 2 {
		code, _ := call(t, srv, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, resp := call(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.False(t, resp.Success)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Services{}, Options{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/timelines", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5678", "1.2.3.4"},
		{"ipv6", nil, "[::1]:5678", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestCloseFlushUsesDetachedContext(t *testing.T) {
	ed := newEditor()
	flusher := &recordingFlusher{}
	srv := newTestServer(t, Services{Editor: ed, Autosave: flusher}, Options{})
	openTimeline(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/timelines/"+timelineID, nil).WithContext(ctx)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{timelineID}, flusher.flushed)
	assert.NoError(t, flusher.ctxErr)
}

type recordingFlusher struct {
	flushed []string
	ctxErr  error
}

func (f *recordingFlusher) Flush(ctx context.Context, timelineID string) error {
	f.flushed = append(f.flushed, timelineID)
	f.ctxErr = ctx.Err()
	return nil
}

func TestReopenDropsClipsTooShortAfterTrim(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "clips.db"), logger.Discard().Logger)
	require.NoError(t, err)
	defer store.Close()

	ed := newEditor()
	worker := autosave.New(time.Hour, ed, store, logger.Discard().Logger)
	srv := newTestServer(t, Services{Editor: ed, Snapshots: store, Autosave: worker}, Options{})

	openTimeline(t, srv)
	kept := dragCreate(t, srv, 1000, 2000).Clip
	tail := dragCreate(t, srv, 3000, 4000).Clip

	code, _ := call(t, srv, http.MethodDelete, "/api/v1/timelines/"+timelineID, nil)
	require.Equal(t, http.StatusNoContent, code)

	// The media now ends 50ms into the second clip, below the 150ms minimum.
	code, resp := call(t, srv, http.MethodPost, "/api/v1/timelines", map[string]any{"id": timelineID, "duration_ms": 3050})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	opened := data[OpenTimelineResponse](t, resp)
	assert.True(t, opened.Restored)
	assert.Equal(t, 1, opened.Clips)

	code, resp = call(t, srv, http.MethodGet, "/api/v1/timelines/"+timelineID+"/clips", nil)
	require.Equal(t, http.StatusOK, code)
	list := data[[]domain.Clip](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)

	code, _ = call(t, srv, http.MethodGet, "/api/v1/clips/"+tail.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
