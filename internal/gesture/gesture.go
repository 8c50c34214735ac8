// Package gesture turns pointer events on a waveform into clip mutations.
//
// A Machine runs one drag at a time: PointerDown classifies the drag as a create,
// move, or stretch; PointerMove only updates a staged preview; PointerUp commits
// the preview to the store or discards it. Nothing touches the store before
// PointerUp, so Cancel is always safe.
package gesture

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/timescale"
)

// State is the phase of the current gesture.
type State int

const (
	// Idle means no pointer is down.
	Idle State = iota
	// Creating drags out a new clip from an anchor.
	Creating
	// Moving shifts an existing clip rigidly.
	Moving
	// Stretching moves one edge of an existing clip.
	Stretching
)

func (s State) String() string {
	switch s {
	case Creating:
		return "creating"
	case Moving:
		return "moving"
	case Stretching:
		return "stretching"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for c := Idle; c <= Stretching; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown gesture state %q", text)
}

// Config holds the gesture thresholds.
type Config struct {
	// MinDuration is the shortest clip in ms a gesture may produce.
	MinDuration int64
	// EdgeHitRadiusPx is how close, in pixels, a pointer-down must land to a clip
	// edge to grab it.
	EdgeHitRadiusPx float64
	// MoveStartDelay is how long a clip must be held before it starts moving.
	// Shorter drags are clicks.
	MoveStartDelay time.Duration
}

// Target is the clip store a Machine reads and commits to. *clips.Store
// satisfies it.
type Target interface {
	List(timelineID string) ([]domain.Clip, error)
	Get(clipID string) (domain.Clip, error)
	Overlapping(timelineID string, start, end int64, exclude ...string) ([]domain.Clip, error)
	Previous(clipID string) (domain.Clip, bool, error)
	Next(clipID string) (domain.Clip, bool, error)
	Add(timelineID string, clip domain.Clip, card domain.Flashcard) (domain.Clip, error)
	Move(clipID string, deltaMs int64, overlapIDs []string) error
	Stretch(clipID string, edge domain.Edge, boundary int64, overlapIDs []string) error
}

// PointerEvent is one pointer sample from the rendering layer.
type PointerEvent struct {
	// ClientX is the horizontal pointer position in client coordinates.
	ClientX float64 `json:"client_x"`
	// TimeMs is the event's source timestamp in ms.
	TimeMs int64 `json:"time_ms"`
}

// Frame is the rendering context a pointer event is interpreted in.
type Frame struct {
	Viewport        timescale.Viewport
	PixelsPerSecond float64
	DurationMs      int64
}

func (f Frame) positionMs(clientX float64) int64 {
	return timescale.ClampMs(f.Viewport.PositionMs(clientX, f.PixelsPerSecond), f.DurationMs)
}

// Preview is the staged result of the active gesture.
type Preview struct {
	State State       `json:"state"`
	Clip  domain.Clip `json:"clip"`
	Edge  domain.Edge `json:"edge"`
}

// drag is the ephemeral state between pointer-down and pointer-up.
type drag struct {
	state    State
	down     PointerEvent
	anchorMs int64
	// original is the grabbed clip for Moving and Stretching.
	original domain.Clip
	edge     domain.Edge
	// grabOffset is the pointer's distance from the grabbed clip's start.
	grabOffset int64
	// moving is set once a Moving drag has outlasted MoveStartDelay.
	moving bool
	staged domain.Clip
}

// Machine is the gesture state machine of one timeline. It is not safe for
// concurrent use.
type Machine struct {
	timelineID string
	cfg        Config
	target     Target
	logger     *slog.Logger
	drag       drag
}

// New creates an idle Machine for timelineID.
func New(timelineID string, cfg Config, target Target, logger *slog.Logger) *Machine {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 1
	}
	return &Machine{
		timelineID: timelineID,
		cfg:        cfg,
		target:     target,
		logger:     logger.With("timeline_id", timelineID),
	}
}

// State returns the current phase.
func (m *Machine) State() State {
	return m.drag.state
}

// Preview returns the staged clip of the active gesture.
func (m *Machine) Preview() (Preview, bool) {
	if m.drag.state == Idle {
		return Preview{}, false
	}
	return Preview{State: m.drag.state, Clip: m.drag.staged, Edge: m.drag.edge}, true
}

// PointerDown classifies a new gesture. It is ignored while a gesture is active.
func (m *Machine) PointerDown(ev PointerEvent, f Frame) (State, error) {
	if m.drag.state != Idle {
		m.logger.Debug("pointer down ignored", "state", m.drag.state.String())
		return m.drag.state, nil
	}
	clips, err := m.target.List(m.timelineID)
	if err != nil {
		return Idle, err
	}

	ms := f.positionMs(ev.ClientX)
	d := drag{down: ev, anchorMs: ms}

	if clip, edge, ok := m.edgeHit(clips, f.Viewport.AbsoluteX(ev.ClientX), ms, f.PixelsPerSecond); ok {
		d.state = Stretching
		d.original = clip
		d.edge = edge
	} else if clip, ok := clipAt(clips, ms); ok {
		d.state = Moving
		d.original = clip
		d.grabOffset = ms - clip.Start
	} else {
		d.state = Creating
	}
	d.staged = d.original
	if d.state == Creating {
		d.staged = domain.Clip{TimelineID: m.timelineID, Start: ms, End: ms}
	}

	m.drag = d
	m.logger.Debug("gesture started", "state", d.state.String(), "position_ms", ms, "clip_id", d.original.ID)
	return d.state, nil
}

// edgeHit finds the clip edge nearest to the absolute pixel x within the hit
// radius. When two edges are equally near, the clip under the pointer wins.
func (m *Machine) edgeHit(clips []domain.Clip, x float64, ms int64, pps float64) (domain.Clip, domain.Edge, bool) {
	var (
		best     domain.Clip
		bestEdge domain.Edge
		bestDist = math.Inf(1)
		found    bool
	)
	for _, c := range clips {
		for _, edge := range []domain.Edge{domain.EdgeStart, domain.EdgeEnd} {
			at := c.Start
			if edge == domain.EdgeEnd {
				at = c.End
			}
			dist := math.Abs(timescale.MsToPixels(at, pps) - x)
			if dist > m.cfg.EdgeHitRadiusPx {
				continue
			}
			if dist < bestDist || (dist == bestDist && c.Contains(ms)) {
				best, bestEdge, bestDist, found = c, edge, dist, true
			}
		}
	}
	return best, bestEdge, found
}

func clipAt(clips []domain.Clip, ms int64) (domain.Clip, bool) {
	for _, c := range clips {
		if c.Contains(ms) {
			return c, true
		}
		if c.Start > ms {
			break
		}
	}
	return domain.Clip{}, false
}

// PointerMove updates the staged preview. It never mutates the store.
func (m *Machine) PointerMove(ev PointerEvent, f Frame) {
	d := &m.drag
	ms := f.positionMs(ev.ClientX)

	switch d.state {
	case Creating:
		d.staged.Start = min(d.anchorMs, ms)
		d.staged.End = max(d.anchorMs, ms)
	case Moving:
		if !d.moving {
			if time.Duration(ev.TimeMs-d.down.TimeMs)*time.Millisecond < m.cfg.MoveStartDelay {
				return
			}
			d.moving = true
		}
		// The grab point stays under the pointer; the clip stays inside the
		// timeline without deforming.
		length := d.original.Duration()
		start := max(ms-d.grabOffset, 0)
		if f.DurationMs > 0 {
			start = max(min(start, f.DurationMs-length), 0)
		}
		d.staged.Start = start
		d.staged.End = start + length
	case Stretching:
		if d.edge == domain.EdgeStart {
			d.staged.Start = min(ms, d.original.End-m.cfg.MinDuration)
		} else {
			d.staged.End = max(ms, d.original.Start+m.cfg.MinDuration)
		}
	}
}

// PointerUp applies ev as a final move and commits the gesture.
func (m *Machine) PointerUp(ev PointerEvent, f Frame) (Outcome, error) {
	if m.drag.state == Idle {
		return Outcome{}, nil
	}
	m.PointerMove(ev, f)
	d := m.drag
	m.drag = drag{}

	var (
		out Outcome
		err error
	)
	switch d.state {
	case Creating:
		out, err = m.commitCreate(d)
	case Moving:
		out, err = m.commitMove(d)
	case Stretching:
		out, err = m.commitStretch(d)
	}
	if err != nil {
		m.logger.Error("gesture commit failed", "state", d.state.String(), "error", err)
		return Outcome{}, err
	}
	m.logger.Debug("gesture committed", "state", d.state.String(), "outcome", out.Kind.String())
	return out, nil
}

// Cancel discards the active gesture. It is a no-op when idle.
func (m *Machine) Cancel() Outcome {
	if m.drag.state == Idle {
		return Outcome{}
	}
	m.logger.Debug("gesture cancelled", "state", m.drag.state.String())
	m.drag = drag{}
	return discarded(Cancelled, domain.Clip{})
}

func (m *Machine) commitCreate(d drag) (Outcome, error) {
	candidate := d.staged
	if candidate.Duration() < m.cfg.MinDuration {
		m.logger.Debug("create discarded", "reason", TooShort.String(), "start_ms", candidate.Start, "end_ms", candidate.End)
		return discarded(TooShort, candidate), nil
	}
	hits, err := m.target.Overlapping(m.timelineID, candidate.Start, candidate.End)
	if err != nil {
		return Outcome{}, err
	}
	if len(hits) > 0 {
		m.logger.Debug("create discarded", "reason", Overlaps.String(), "overlaps", hits[0].ID)
		return discarded(Overlaps, candidate), nil
	}
	clip, err := m.target.Add(m.timelineID, candidate, domain.Flashcard{})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: Created, Clip: clip}, nil
}

func (m *Machine) commitMove(d drag) (Outcome, error) {
	delta := d.staged.Start - d.original.Start
	if !d.moving || delta == 0 {
		return Outcome{Kind: Click, Clip: d.original}, nil
	}
	hits, err := m.target.Overlapping(m.timelineID, d.staged.Start, d.staged.End, d.original.ID)
	if err != nil {
		return Outcome{}, err
	}
	ids := clipIDs(hits)
	if err := m.target.Move(d.original.ID, delta, ids); err != nil {
		return Outcome{}, err
	}
	return m.result(d.original.ID, Moved, ids)
}

// commitStretch applies the neighbor-consuming policy: an edge dragged into the
// adjacent clip on its side merges with that clip only. The boundary is held at
// the neighbor's far edge so nothing beyond it is touched.
func (m *Machine) commitStretch(d drag) (Outcome, error) {
	var (
		boundary = edgeOf(d.staged, d.edge)
		neighbor domain.Clip
		crossed  bool
	)
	if d.edge == domain.EdgeStart {
		prev, ok, err := m.target.Previous(d.original.ID)
		if err != nil {
			return Outcome{}, err
		}
		neighbor, crossed = prev, ok && boundary < prev.End
	} else {
		next, ok, err := m.target.Next(d.original.ID)
		if err != nil {
			return Outcome{}, err
		}
		neighbor, crossed = next, ok && boundary > next.Start
	}

	if !crossed {
		if boundary == edgeOf(d.original, d.edge) {
			return Outcome{Kind: Click, Clip: d.original}, nil
		}
		if err := m.target.Stretch(d.original.ID, d.edge, boundary, nil); err != nil {
			return Outcome{}, err
		}
		return m.result(d.original.ID, Stretched, nil)
	}

	if d.edge == domain.EdgeStart {
		boundary = max(boundary, neighbor.Start)
	} else {
		boundary = min(boundary, neighbor.End)
	}
	ids := []string{neighbor.ID}
	if err := m.target.Stretch(d.original.ID, d.edge, boundary, ids); err != nil {
		return Outcome{}, err
	}
	return m.result(d.original.ID, Stretched, ids)
}

// result reads back the committed clip. Any absorbed ids turn the outcome into
// a merge.
func (m *Machine) result(clipID string, kind OutcomeKind, absorbed []string) (Outcome, error) {
	clip, err := m.target.Get(clipID)
	if err != nil {
		return Outcome{}, err
	}
	if len(absorbed) > 0 {
		kind = Merged
	}
	return Outcome{Kind: kind, Clip: clip, Absorbed: absorbed}, nil
}

func edgeOf(c domain.Clip, edge domain.Edge) int64 {
	if edge == domain.EdgeStart {
		return c.Start
	}
	return c.End
}

func clipIDs(clips []domain.Clip) []string {
	if len(clips) == 0 {
		return nil
	}
	ids := make([]string, len(clips))
	for i, c := range clips {
		ids[i] = c.ID
	}
	return ids
}
