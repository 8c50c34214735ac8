package gesture

import (
	"fmt"

	"github.com/listenupapp/clipdeck/internal/domain"
)

// OutcomeKind says what a finished gesture did.
type OutcomeKind int

const (
	// None means no gesture was active.
	None OutcomeKind = iota
	// Created added a new clip.
	Created
	// Moved shifted a clip without touching others.
	Moved
	// Stretched changed one edge of a clip without touching others.
	Stretched
	// Merged moved or stretched a clip into others, which it absorbed.
	Merged
	// Click released a clip without changing it.
	Click
	// Discarded ended the gesture without mutating the store.
	Discarded
)

func (k OutcomeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Moved:
		return "moved"
	case Stretched:
		return "stretched"
	case Merged:
		return "merged"
	case Click:
		return "click"
	case Discarded:
		return "discarded"
	default:
		return "none"
	}
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for c := None; c <= Discarded; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// DiscardReason says why a gesture was discarded.
type DiscardReason int

const (
	// NotDiscarded is the zero reason.
	NotDiscarded DiscardReason = iota
	// TooShort means the new clip was shorter than the minimum duration.
	TooShort
	// Overlaps means the new clip intersected an existing clip.
	Overlaps
	// Cancelled means the gesture was interrupted.
	Cancelled
)

func (r DiscardReason) String() string {
	switch r {
	case TooShort:
		return "too_short"
	case Overlaps:
		return "overlaps"
	case Cancelled:
		return "cancelled"
	default:
		return ""
	}
}

// MarshalText encodes the reason by name.
func (r DiscardReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason name.
func (r *DiscardReason) UnmarshalText(text []byte) error {
	for c := NotDiscarded; c <= Cancelled; c++ {
		if c.String() == string(text) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown discard reason %q", text)
}

// Outcome is the result of PointerUp or Cancel.
type Outcome struct {
	Kind   OutcomeKind   `json:"kind"`
	Reason DiscardReason `json:"reason,omitempty"`
	// Clip is the clip the gesture produced or released. For discarded creates it
	// is the rejected candidate.
	Clip domain.Clip `json:"clip"`
	// Absorbed lists clips merged away by the gesture.
	Absorbed []string `json:"absorbed,omitempty"`
}

func discarded(reason DiscardReason, candidate domain.Clip) Outcome {
	return Outcome{Kind: Discarded, Reason: reason, Clip: candidate}
}
