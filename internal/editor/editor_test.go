package editor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
	"github.com/listenupapp/clipdeck/internal/gesture"
	"github.com/listenupapp/clipdeck/internal/logger"
	"github.com/listenupapp/clipdeck/internal/timescale"
)

const timelineID = "media-1"

var viewport = timescale.Viewport{Left: 0, Width: 2000, XMin: 0}

func testConfig() Config {
	return Config{
		MinDuration: 150,
		Gesture: gesture.Config{
			MinDuration:     150,
			EdgeHitRadiusPx: 5,
			MoveStartDelay:  400 * time.Millisecond,
		},
		PixelsPerSecond: 50,
		EdgeBufferPx:    20,
	}
}

func newTestEditor(t *testing.T) (*Editor, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	e := New(testConfig(), rec, logger.Discard().Logger)
	_, err := e.OpenTimeline(domain.Timeline{ID: timelineID, DurationMs: 600_000})
	require.NoError(t, err)
	rec.Reset()
	return e, rec
}

// px converts ms to client X at 50 px/s with the test viewport.
func px(ms int64) float64 {
	return float64(ms) / 20
}

func drag(t *testing.T, e *Editor, from, to, duration int64) gesture.Outcome {
	t.Helper()
	_, err := e.PointerDown(timelineID, gesture.PointerEvent{ClientX: px(from)}, viewport)
	require.NoError(t, err)
	_, _, err = e.PointerMove(timelineID, gesture.PointerEvent{ClientX: px((from + to) / 2), TimeMs: duration / 2}, viewport)
	require.NoError(t, err)
	out, err := e.PointerUp(timelineID, gesture.PointerEvent{ClientX: px(to), TimeMs: duration}, viewport)
	require.NoError(t, err)
	return out
}

func selection(t *testing.T, e *Editor) domain.Selection {
	t.Helper()
	state, err := e.Session(timelineID)
	require.NoError(t, err)
	return state.Selection
}

func TestCreateSelectsNewClip(t *testing.T) {
	e, rec := newTestEditor(t)

	out := drag(t, e, 1000, 4000, 300)
	require.Equal(t, gesture.Created, out.Kind)

	list, err := e.Clips(timelineID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1000), list[0].Start)
	assert.Equal(t, int64(4000), list[0].End)
	assert.Equal(t, domain.ClipSelection(list[0].ID), selection(t, e))
	assert.Equal(t, []events.Type{events.ClipCreated}, rec.Types())

	view, err := e.Clip(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "", view.Flashcard.Transcription())
}

func TestTooShortCreateChangesNothing(t *testing.T) {
	e, rec := newTestEditor(t)

	out := drag(t, e, 1000, 1050, 50)

	assert.Equal(t, gesture.Discarded, out.Kind)
	list, err := e.Clips(timelineID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, domain.SelectionNone, selection(t, e).Kind)
	assert.Empty(t, rec.Events())
}

func TestDeletingSelectedClipDemotesSelection(t *testing.T) {
	e, _ := newTestEditor(t)
	out := drag(t, e, 1000, 4000, 300)

	e.DeleteClip(out.Clip.ID)
	e.DeleteClip(out.Clip.ID)

	assert.Equal(t, domain.PositionSelection(1000), selection(t, e))
}

func TestMergeGestureSelectsSurvivor(t *testing.T) {
	e, rec := newTestEditor(t)
	a := drag(t, e, 1000, 2000, 300).Clip
	b := drag(t, e, 3000, 4000, 300).Clip
	_, err := e.Select(timelineID, domain.ClipSelection(a.ID))
	require.NoError(t, err)
	rec.Reset()

	out := drag(t, e, 3000, 1800, 200)

	require.Equal(t, gesture.Merged, out.Kind)
	assert.Equal(t, b.ID, out.Clip.ID)
	assert.Equal(t, domain.ClipSelection(b.ID), selection(t, e))
	assert.Equal(t, []events.Type{events.ClipStretched, events.ClipsMerged}, rec.Types())

	_, err = e.Clip(a.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLoopingThroughEditor(t *testing.T) {
	e, _ := newTestEditor(t)
	clip := drag(t, e, 1000, 2000, 300).Clip
	require.NoError(t, e.SetLoop(timelineID, true))

	tick, err := e.UpdatePlayback(timelineID, 2100, false)
	require.NoError(t, err)
	assert.True(t, tick.Seek)
	assert.Equal(t, clip.Start, tick.PositionMs)
}

func TestImportReplaceDropsStaleSelection(t *testing.T) {
	e, rec := newTestEditor(t)
	drag(t, e, 1000, 2000, 300)
	rec.Reset()

	result, err := e.Import(timelineID, []clips.ImportedClip{
		{Start: 5000, End: 6000, Fields: map[string]string{domain.TranscriptionField: "hola"}},
		{Start: 599_500, End: 700_000},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, clips.ImportResult{Added: 2, Replaced: 1}, result)
	assert.Equal(t, domain.PositionSelection(1000), selection(t, e))
	assert.Equal(t, []events.Type{events.TimelineImported}, rec.Types())

	list, err := e.Clips(timelineID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(600_000), list[1].End)
}

func TestCloseTimeline(t *testing.T) {
	e, rec := newTestEditor(t)
	_, err := e.PointerDown(timelineID, gesture.PointerEvent{ClientX: px(1000)}, viewport)
	require.NoError(t, err)

	require.NoError(t, e.CloseTimeline(timelineID))

	assert.Equal(t, []events.Type{events.TimelineClosed}, rec.Types())
	_, err = e.PointerUp(timelineID, gesture.PointerEvent{ClientX: px(4000)}, viewport)
	assert.ErrorIs(t, err, errors.ErrTimelineNotFound)
	assert.ErrorIs(t, e.CloseTimeline(timelineID), errors.ErrTimelineNotFound)
	assert.Empty(t, e.Timelines())
}

func TestCancelGesture(t *testing.T) {
	e, rec := newTestEditor(t)
	_, err := e.PointerDown(timelineID, gesture.PointerEvent{ClientX: px(1000)}, viewport)
	require.NoError(t, err)
	preview, ok, err := e.PointerMove(timelineID, gesture.PointerEvent{ClientX: px(3000), TimeMs: 100}, viewport)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3000), preview.Clip.End)

	out, err := e.CancelGesture(timelineID)
	require.NoError(t, err)
	assert.Equal(t, gesture.Cancelled, out.Reason)

	_, ok, err = e.Preview(timelineID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rec.Events())
}

func TestSnapshotRestore(t *testing.T) {
	e, _ := newTestEditor(t)
	a := drag(t, e, 1000, 2000, 300).Clip
	drag(t, e, 3000, 4000, 300)
	card, err := e.UpdateFlashcard(domain.Flashcard{
		ID:     a.ID,
		Fields: map[string]string{domain.TranscriptionField: "hola"},
		Tags:   []string{"greeting"},
	})
	require.NoError(t, err)

	snap, err := e.Snapshot(timelineID)
	require.NoError(t, err)

	other := New(testConfig(), nil, logger.Discard().Logger)
	require.NoError(t, other.Restore(snap))

	view, err := other.Clip(a.ID)
	require.NoError(t, err)
	assert.Equal(t, card, view.Flashcard)

	next, ok, err := other.Next(a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3000), next.Start)

	meta, err := other.Timeline(timelineID)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, meta.PixelsPerSecond, 1e-9)
}

func TestReopenWithShorterDurationFitsClips(t *testing.T) {
	e, rec := newTestEditor(t)
	a := drag(t, e, 1000, 2000, 300).Clip
	b := drag(t, e, 4000, 6000, 300).Clip
	c := drag(t, e, 7000, 8000, 300).Clip
	rec.Reset()

	_, err := e.OpenTimeline(domain.Timeline{ID: timelineID, DurationMs: 5000})
	require.NoError(t, err)

	list, err := e.Clips(timelineID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, domain.Clip{ID: b.ID, TimelineID: timelineID, Start: 4000, End: 5000}, list[1])
	_, err = e.Clip(c.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, []events.Type{events.ClipStretched, events.ClipsDeleted}, rec.Types())

	// Holding the clamped clip without dragging leaves it where it is.
	_, err = e.PointerDown(timelineID, gesture.PointerEvent{ClientX: px(4500)}, viewport)
	require.NoError(t, err)
	_, err = e.PointerUp(timelineID, gesture.PointerEvent{ClientX: px(4500), TimeMs: 500}, viewport)
	require.NoError(t, err)
	view, err := e.Clip(b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), view.Clip.Start)
	assert.Equal(t, int64(5000), view.Clip.End)

	// Reopening with the same duration changes nothing.
	rec.Reset()
	_, err = e.OpenTimeline(domain.Timeline{ID: timelineID, DurationMs: 5000})
	require.NoError(t, err)
	assert.Empty(t, rec.Types())
}

func TestOpenTimelineValidation(t *testing.T) {
	e := New(testConfig(), nil, logger.Discard().Logger)

	_, err := e.OpenTimeline(domain.Timeline{})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = e.OpenTimeline(domain.Timeline{ID: "x", DurationMs: -1})
	assert.ErrorIs(t, err, errors.ErrValidation)

	meta, err := e.OpenTimeline(domain.Timeline{ID: "x", DurationMs: 1000})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, meta.PixelsPerSecond, 1e-9)

	_, err = e.Clips("never")
	assert.ErrorIs(t, err, errors.ErrTimelineNotFound)
}

func TestConcurrentCallers(t *testing.T) {
	e, _ := newTestEditor(t)
	drag(t, e, 1000, 2000, 300)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			for j := range 50 {
				_, _ = e.UpdatePlayback(timelineID, int64(i*100+j), false)
				_, _ = e.Clips(timelineID)
				_, _ = e.Snapshot(timelineID)
			}
		})
	}
	wg.Wait()

	list, err := e.Clips(timelineID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
