package domain

// SelectionKind discriminates Selection.
type SelectionKind string

const (
	// SelectionNone means nothing is selected.
	SelectionNone SelectionKind = "none"
	// SelectionClip refers to a clip by ID.
	SelectionClip SelectionKind = "clip"
	// SelectionPosition is a bare time position on the timeline.
	SelectionPosition SelectionKind = "position"
)

// Selection refers to a clip or a time position. It never owns a clip.
type Selection struct {
	Kind   SelectionKind `json:"kind"`
	ClipID string        `json:"clip_id,omitempty"`
	TimeMs int64         `json:"time_ms"`
}

// ClipSelection selects the clip with the given ID.
func ClipSelection(clipID string) Selection {
	return Selection{Kind: SelectionClip, ClipID: clipID}
}

// PositionSelection selects a time position.
func PositionSelection(ms int64) Selection {
	return Selection{Kind: SelectionPosition, TimeMs: ms}
}

// IsClip reports whether the selection refers to a clip.
func (s Selection) IsClip() bool {
	return s.Kind == SelectionClip && s.ClipID != ""
}
