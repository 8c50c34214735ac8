// Package editor is the single event-processing thread of the engine. It owns
// the clip store together with one gesture machine and one playback session per
// open timeline, and serializes every caller behind one mutex.
package editor

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
	"github.com/listenupapp/clipdeck/internal/gesture"
	"github.com/listenupapp/clipdeck/internal/playback"
	"github.com/listenupapp/clipdeck/internal/timescale"
)

// Config holds engine tunables.
type Config struct {
	MinDuration     int64
	Gesture         gesture.Config
	PixelsPerSecond float64
	EdgeBufferPx    float64
	ImportPolicy    clips.ImportPolicy
}

// ClipView is a clip with its flashcard.
type ClipView struct {
	Clip      domain.Clip      `json:"clip"`
	Flashcard domain.Flashcard `json:"flashcard"`
}

type timelineState struct {
	meta    domain.Timeline
	machine *gesture.Machine
	session *playback.Session
}

// Editor is safe for concurrent use.
type Editor struct {
	mu        sync.Mutex
	cfg       Config
	store     *clips.Store
	emitter   events.Emitter
	logger    *slog.Logger
	timelines map[string]*timelineState
}

// New creates an editor. Committed changes are forwarded to emitter after the
// editor has updated its own sessions.
func New(cfg Config, emitter events.Emitter, logger *slog.Logger) *Editor {
	if cfg.ImportPolicy == "" {
		cfg.ImportPolicy = clips.ImportReplace
	}
	if cfg.Gesture.MinDuration == 0 {
		cfg.Gesture.MinDuration = cfg.MinDuration
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e := &Editor{
		cfg:       cfg,
		emitter:   emitter,
		logger:    logger,
		timelines: make(map[string]*timelineState),
	}
	e.store = clips.New(clips.Config{MinDuration: cfg.MinDuration}, logger, events.EmitterFunc(e.dispatch))
	return e
}

// dispatch runs inside store mutations, with e.mu held.
func (e *Editor) dispatch(ev events.Event) {
	if st, ok := e.timelines[ev.TimelineID]; ok {
		switch data := ev.Data.(type) {
		case events.DeleteData:
			st.session.OnClipsRemoved(data.ClipIDs)
		case events.MergeData:
			st.session.OnClipsRemoved(data.Absorbed)
			st.session.Revalidate(e.store)
		case events.ClipData, events.ImportData, events.TimelineData:
			st.session.Revalidate(e.store)
		}
	}
	e.emitter.Emit(ev)
}

func (e *Editor) state(timelineID string) (*timelineState, error) {
	st, ok := e.timelines[timelineID]
	if !ok {
		return nil, errors.TimelineNotFound(timelineID)
	}
	return st, nil
}

func (e *Editor) newState(meta domain.Timeline) *timelineState {
	if meta.PixelsPerSecond <= 0 {
		meta.PixelsPerSecond = e.cfg.PixelsPerSecond
	}
	return &timelineState{
		meta:    meta,
		machine: gesture.New(meta.ID, e.cfg.Gesture, e.store, e.logger),
		session: playback.New(meta.ID, playback.Config{
			PixelsPerSecond: meta.PixelsPerSecond,
			EdgeBufferPx:    e.cfg.EdgeBufferPx,
		}, e.logger),
	}
}

// --- Timelines ---

// OpenTimeline opens a timeline, or updates the metadata of an open one and
// fits its clips to the new duration.
func (e *Editor) OpenTimeline(meta domain.Timeline) (domain.Timeline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if meta.ID == "" {
		return domain.Timeline{}, errors.Validation("timeline id is required")
	}
	if meta.DurationMs < 0 {
		return domain.Timeline{}, errors.Validationf("timeline duration %d is negative", meta.DurationMs)
	}

	st, ok := e.timelines[meta.ID]
	var prevDuration int64
	if !ok {
		st = e.newState(meta)
		e.timelines[meta.ID] = st
	} else {
		prevDuration = st.meta.DurationMs
		if meta.PixelsPerSecond <= 0 {
			meta.PixelsPerSecond = st.meta.PixelsPerSecond
		}
		st.meta = meta
		st.session.SetPixelsPerSecond(meta.PixelsPerSecond)
	}
	if err := e.store.OpenTimeline(st.meta); err != nil {
		if !ok {
			delete(e.timelines, meta.ID)
		}
		return domain.Timeline{}, err
	}
	if ok && meta.DurationMs != prevDuration {
		// Shorter media drops or clamps clips past the new end.
		st.machine.Cancel()
		if err := e.store.TrimToDuration(meta.ID); err != nil {
			return domain.Timeline{}, err
		}
	}
	e.logger.Info("timeline opened", "timeline_id", meta.ID, "duration_ms", meta.DurationMs)
	return st.meta, nil
}

// CloseTimeline cancels any gesture in flight and forgets the timeline.
func (e *Editor) CloseTimeline(timelineID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return err
	}
	st.machine.Cancel()
	st.session.OnTimelineClosed()
	delete(e.timelines, timelineID)
	e.store.CloseTimeline(timelineID)
	e.logger.Info("timeline closed", "timeline_id", timelineID)
	return nil
}

// Timelines lists the open timelines.
func (e *Editor) Timelines() []domain.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Timelines()
}

// Timeline returns an open timeline's metadata.
func (e *Editor) Timeline(timelineID string) (domain.Timeline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(timelineID)
	if err != nil {
		return domain.Timeline{}, err
	}
	return st.meta, nil
}

// --- Gestures ---

func (st *timelineState) frame(v timescale.Viewport) gesture.Frame {
	st.session.SetViewport(v)
	return gesture.Frame{Viewport: v, PixelsPerSecond: st.meta.PixelsPerSecond, DurationMs: st.meta.DurationMs}
}

// PointerDown starts a gesture on timelineID.
func (e *Editor) PointerDown(timelineID string, ev gesture.PointerEvent, v timescale.Viewport) (gesture.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return gesture.Idle, err
	}
	return st.machine.PointerDown(ev, st.frame(v))
}

// PointerMove updates the staged gesture and returns its preview.
func (e *Editor) PointerMove(timelineID string, ev gesture.PointerEvent, v timescale.Viewport) (gesture.Preview, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return gesture.Preview{}, false, err
	}
	st.machine.PointerMove(ev, st.frame(v))
	preview, ok := st.machine.Preview()
	return preview, ok, nil
}

// PointerUp commits the gesture. The clip it produced or released becomes the
// selection.
func (e *Editor) PointerUp(timelineID string, ev gesture.PointerEvent, v timescale.Viewport) (gesture.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return gesture.Outcome{}, err
	}
	out, err := st.machine.PointerUp(ev, st.frame(v))
	if err != nil {
		return gesture.Outcome{}, err
	}
	switch out.Kind {
	case gesture.Created, gesture.Moved, gesture.Stretched, gesture.Merged, gesture.Click:
		st.session.SelectClip(out.Clip)
	case gesture.Discarded:
		e.logger.Debug("gesture discarded", "timeline_id", timelineID, "reason", out.Reason.String())
	}
	return out, nil
}

// CancelGesture discards the gesture in flight, if any.
func (e *Editor) CancelGesture(timelineID string) (gesture.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return gesture.Outcome{}, err
	}
	return st.machine.Cancel(), nil
}

// Preview returns the staged gesture on timelineID.
func (e *Editor) Preview(timelineID string) (gesture.Preview, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return gesture.Preview{}, false, err
	}
	preview, ok := st.machine.Preview()
	return preview, ok, nil
}

// --- Mutations ---

// Import bulk-adds clips. An empty policy uses the configured default.
func (e *Editor) Import(timelineID string, imported []clips.ImportedClip, policy clips.ImportPolicy) (clips.ImportResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if policy == "" {
		policy = e.cfg.ImportPolicy
	}
	st, err := e.state(timelineID)
	if err != nil {
		return clips.ImportResult{}, err
	}
	imported = slices.Clone(imported)
	for i := range imported {
		imported[i].Start = timescale.ClampMs(imported[i].Start, st.meta.DurationMs)
		imported[i].End = timescale.ClampMs(imported[i].End, st.meta.DurationMs)
	}
	return e.store.Import(timelineID, imported, policy)
}

// Apply runs a store command.
func (e *Editor) Apply(cmd clips.Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Apply(cmd)
}

// DeleteClip removes a clip. Unknown ids are ignored.
func (e *Editor) DeleteClip(clipID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Delete(clipID)
}

// UpdateFlashcard replaces a clip's flashcard.
func (e *Editor) UpdateFlashcard(card domain.Flashcard) (domain.Flashcard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.UpdateFlashcard(card)
}

// --- Selection and playback ---

// Session returns the playback state of a timeline.
func (e *Editor) Session(timelineID string) (playback.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return playback.State{}, err
	}
	return st.session.State(), nil
}

// Select sets the selection of a timeline.
func (e *Editor) Select(timelineID string, sel domain.Selection) (domain.Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return domain.Selection{}, err
	}
	if err := st.session.Select(sel, e.store); err != nil {
		return domain.Selection{}, err
	}
	return st.session.Selection(), nil
}

// UpdatePlayback feeds a play-head sample to a timeline's session.
func (e *Editor) UpdatePlayback(timelineID string, positionMs int64, seeking bool) (playback.Tick, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return playback.Tick{}, err
	}
	return st.session.UpdatePlayback(timescale.ClampMs(positionMs, st.meta.DurationMs), seeking, e.store)
}

// SetLoop turns looping over the selection on or off.
func (e *Editor) SetLoop(timelineID string, loop bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return err
	}
	st.session.SetLoop(loop)
	return nil
}

// SetViewport records the visible window of a timeline.
func (e *Editor) SetViewport(timelineID string, v timescale.Viewport) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state(timelineID)
	if err != nil {
		return err
	}
	st.session.SetViewport(v)
	return nil
}

// --- Queries ---

// Clips lists a timeline's clips in start order.
func (e *Editor) Clips(timelineID string) ([]domain.Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.state(timelineID); err != nil {
		return nil, err
	}
	return e.store.List(timelineID)
}

// Clip returns a clip with its flashcard.
func (e *Editor) Clip(clipID string) (ClipView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view(clipID)
}

func (e *Editor) view(clipID string) (ClipView, error) {
	clip, err := e.store.Get(clipID)
	if err != nil {
		return ClipView{}, err
	}
	card, err := e.store.Flashcard(clipID)
	if err != nil {
		return ClipView{}, err
	}
	return ClipView{Clip: clip, Flashcard: card}, nil
}

// ClipAt returns the clip containing ms.
func (e *Editor) ClipAt(timelineID string, ms int64) (domain.Clip, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.state(timelineID); err != nil {
		return domain.Clip{}, false, err
	}
	return e.store.ClipAt(timelineID, ms)
}

// Previous returns the clip before clipID.
func (e *Editor) Previous(clipID string) (domain.Clip, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Previous(clipID)
}

// Next returns the clip after clipID.
func (e *Editor) Next(clipID string) (domain.Clip, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Next(clipID)
}

// --- Persistence ---

// Snapshot copies a timeline's clips and flashcards.
func (e *Editor) Snapshot(timelineID string) (clips.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.state(timelineID); err != nil {
		return clips.Snapshot{}, err
	}
	return e.store.Snapshot(timelineID)
}

// Restore loads a snapshot, opening its timeline if needed. Clips are fitted
// to the snapshot's timeline duration first.
func (e *Editor) Restore(snap clips.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, existed := e.timelines[snap.Timeline.ID]
	if !existed {
		st = e.newState(snap.Timeline)
		e.timelines[snap.Timeline.ID] = st
	} else {
		st.machine.Cancel()
	}
	if err := e.store.Restore(snap); err != nil {
		if !existed {
			delete(e.timelines, snap.Timeline.ID)
		}
		return err
	}
	st.meta = snap.Timeline
	if st.meta.PixelsPerSecond <= 0 {
		st.meta.PixelsPerSecond = e.cfg.PixelsPerSecond
	}
	return nil
}
