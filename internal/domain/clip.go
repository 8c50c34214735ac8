// Package domain contains the core entities of the clip editing engine: clips on a
// media timeline, the flashcards attached to them, and the editor selection.
package domain

import "fmt"

// Clip is a [Start, End) millisecond span on one timeline. Start < End always holds
// for clips owned by the store.
type Clip struct {
	ID         string `json:"id"`
	TimelineID string `json:"timeline_id"`
	Start      int64  `json:"start_ms"`
	End        int64  `json:"end_ms"`
}

// Duration returns End - Start.
func (c Clip) Duration() int64 {
	return c.End - c.Start
}

// Valid reports whether the clip has a positive length.
func (c Clip) Valid() bool {
	return c.Start < c.End
}

// Contains reports whether ms falls inside the clip.
func (c Clip) Contains(ms int64) bool {
	return ms >= c.Start && ms < c.End
}

// Overlaps is a full intersection test against [start, end). Touching clips do not overlap.
func (c Clip) Overlaps(start, end int64) bool {
	return c.Start < end && start < c.End
}

func (c Clip) String() string {
	return fmt.Sprintf("%s[%d,%d)", c.ID, c.Start, c.End)
}

// Edge names one boundary of a clip.
type Edge int

const (
	// EdgeStart is the clip's start boundary.
	EdgeStart Edge = iota
	// EdgeEnd is the clip's end boundary.
	EdgeEnd
)

func (e Edge) String() string {
	if e == EdgeStart {
		return "start"
	}
	return "end"
}

// MarshalText encodes the edge by name.
func (e Edge) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes "start" or "end".
func (e *Edge) UnmarshalText(text []byte) error {
	switch string(text) {
	case "start":
		*e = EdgeStart
	case "end":
		*e = EdgeEnd
	default:
		return fmt.Errorf("unknown edge %q", text)
	}
	return nil
}

// Timeline describes one open media file. DurationMs of 0 means the duration is
// not known yet and positions are only bounded below.
type Timeline struct {
	ID              string  `json:"id"`
	DurationMs      int64   `json:"duration_ms"`
	PixelsPerSecond float64 `json:"pixels_per_second"`
}
