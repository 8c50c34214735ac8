// Package playback keeps the editor selection in sync with the play head and
// the visible part of the waveform.
package playback

import (
	"log/slog"
	"slices"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/timescale"
)

// Clips is the read side of the clip store a Session consults. *clips.Store
// satisfies it.
type Clips interface {
	Get(clipID string) (domain.Clip, error)
	ClipAt(timelineID string, ms int64) (domain.Clip, bool, error)
}

// Config holds session settings.
type Config struct {
	PixelsPerSecond float64
	// EdgeBufferPx is the gap kept between a newly selected clip and the
	// viewport edge when scrolling it into view.
	EdgeBufferPx float64
}

// State is a serializable view of a session.
type State struct {
	Selection     domain.Selection   `json:"selection"`
	PositionMs    int64              `json:"position_ms"`
	Seeking       bool               `json:"seeking"`
	LoopSelection bool               `json:"loop_selection"`
	Viewport      timescale.Viewport `json:"viewport"`
}

// Tick is the result of a playback update.
type Tick struct {
	// PositionMs is where playback continues from.
	PositionMs int64 `json:"position_ms"`
	// Seek is set when the player must jump to PositionMs.
	Seek      bool             `json:"seek"`
	Selection domain.Selection `json:"selection"`
}

// Session is the selection and playback state of one open timeline. It lives
// from the timeline's open to its close and is not safe for concurrent use.
type Session struct {
	timelineID string
	cfg        Config
	logger     *slog.Logger

	selection domain.Selection
	// selected caches the span of the selected clip for looping.
	selected domain.Clip
	position int64
	seeking  bool
	loop     bool
	viewport timescale.Viewport
}

// New creates a session with nothing selected.
func New(timelineID string, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		timelineID: timelineID,
		cfg:        cfg,
		logger:     logger.With("timeline_id", timelineID),
		selection:  domain.Selection{Kind: domain.SelectionNone},
	}
}

// State returns a copy of the session state.
func (s *Session) State() State {
	return State{
		Selection:     s.selection,
		PositionMs:    s.position,
		Seeking:       s.seeking,
		LoopSelection: s.loop,
		Viewport:      s.viewport,
	}
}

// Selection returns the active selection.
func (s *Session) Selection() domain.Selection {
	return s.selection
}

// SelectedClip returns the selected clip as last seen by the session.
func (s *Session) SelectedClip() (domain.Clip, bool) {
	if !s.selection.IsClip() {
		return domain.Clip{}, false
	}
	return s.selected, true
}

// SelectClip selects clip and scrolls it into view when it fits.
func (s *Session) SelectClip(clip domain.Clip) {
	s.selection = domain.ClipSelection(clip.ID)
	s.selected = clip
	s.center(clip)
}

// SelectPosition selects a bare time position.
func (s *Session) SelectPosition(ms int64) {
	s.selection = domain.PositionSelection(ms)
	s.selected = domain.Clip{}
}

// Clear drops the selection.
func (s *Session) Clear() {
	s.selection = domain.Selection{Kind: domain.SelectionNone}
	s.selected = domain.Clip{}
}

// Select applies a selection coming from outside the engine. A clip selection
// must name an existing clip.
func (s *Session) Select(sel domain.Selection, clips Clips) error {
	switch sel.Kind {
	case domain.SelectionClip:
		clip, err := clips.Get(sel.ClipID)
		if err != nil {
			return err
		}
		if clip.TimelineID != s.timelineID {
			return errors.Validationf("clip %q is not on timeline %q", sel.ClipID, s.timelineID)
		}
		s.SelectClip(clip)
	case domain.SelectionPosition:
		s.SelectPosition(max(sel.TimeMs, 0))
	case domain.SelectionNone, "":
		s.Clear()
	default:
		return errors.Validationf("unknown selection kind %q", sel.Kind)
	}
	return nil
}

// OnClipsRemoved demotes a selection pointing at a removed clip to the position
// where that clip started.
func (s *Session) OnClipsRemoved(clipIDs []string) {
	if s.selection.IsClip() && slices.Contains(clipIDs, s.selection.ClipID) {
		s.logger.Debug("selected clip removed", "clip_id", s.selection.ClipID)
		s.SelectPosition(s.selected.Start)
	}
}

// OnTimelineClosed resets the session.
func (s *Session) OnTimelineClosed() {
	s.Clear()
	s.position = 0
	s.seeking = false
	s.loop = false
}

// Revalidate refreshes the cached span of the selected clip after a store
// mutation, demoting the selection when the clip no longer exists.
func (s *Session) Revalidate(clips Clips) {
	if !s.selection.IsClip() {
		return
	}
	clip, err := clips.Get(s.selection.ClipID)
	if err != nil {
		s.OnClipsRemoved([]string{s.selection.ClipID})
		return
	}
	s.selected = clip
}

// SetLoop turns looping over the selected clip on or off.
func (s *Session) SetLoop(loop bool) {
	s.loop = loop
}

// SetViewport records the visible window.
func (s *Session) SetViewport(v timescale.Viewport) {
	s.viewport = v
}

// SetPixelsPerSecond records the waveform zoom.
func (s *Session) SetPixelsPerSecond(pps float64) {
	s.cfg.PixelsPerSecond = pps
}

// UpdatePlayback handles one play-head sample. While seeking nothing changes
// but the recorded position. With looping on, reaching the selected clip's end
// jumps back to its start. Otherwise the selection follows the play head: the
// clip under it, or the bare position.
func (s *Session) UpdatePlayback(ms int64, seeking bool, clips Clips) (Tick, error) {
	s.position = max(ms, 0)
	s.seeking = seeking
	if seeking {
		return Tick{PositionMs: s.position, Selection: s.selection}, nil
	}

	if clip, ok := s.SelectedClip(); ok {
		if s.loop && s.position >= clip.End {
			s.position = clip.Start
			s.logger.Debug("looping selection", "clip_id", clip.ID, "start_ms", clip.Start)
			return Tick{PositionMs: s.position, Seek: true, Selection: s.selection}, nil
		}
		if clip.Contains(s.position) {
			return Tick{PositionMs: s.position, Selection: s.selection}, nil
		}
	}

	clip, ok, err := clips.ClipAt(s.timelineID, s.position)
	if err != nil {
		return Tick{}, err
	}
	if ok {
		s.SelectClip(clip)
	} else {
		s.SelectPosition(s.position)
	}
	return Tick{PositionMs: s.position, Selection: s.selection}, nil
}

// center scrolls clip into view, EdgeBufferPx away from the nearer viewport
// edge. Clips wider than the viewport, or already clear of both edges, cause
// no scrolling.
func (s *Session) center(clip domain.Clip) {
	v := s.viewport
	if v.Width <= 0 || s.cfg.PixelsPerSecond <= 0 {
		return
	}
	x0 := timescale.MsToPixels(clip.Start, s.cfg.PixelsPerSecond)
	x1 := timescale.MsToPixels(clip.End, s.cfg.PixelsPerSecond)
	if x1-x0 > v.Width {
		return
	}

	switch buffer := s.cfg.EdgeBufferPx; {
	case x0 < v.XMin+buffer:
		v.XMin = max(x0-buffer, 0)
	case x1 > v.XMax()-buffer:
		v.XMin = x1 + buffer - v.Width
	default:
		return
	}
	if v.XMin == s.viewport.XMin {
		return
	}
	s.logger.Debug("viewport scrolled", "clip_id", clip.ID, "x_min", v.XMin)
	s.viewport = v
}
