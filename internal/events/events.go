// Package events defines the change events the engine emits after every committed
// mutation, and a Bus that fans them out to persistence, search, and SSE clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/listenupapp/clipdeck/internal/domain"
)

// Type identifies an event.
type Type string

const (
	// ClipCreated is emitted when a clip is added.
	ClipCreated Type = "clip.created"
	// ClipMoved is emitted when a clip is shifted rigidly.
	ClipMoved Type = "clip.moved"
	// ClipStretched is emitted when one edge of a clip changes.
	ClipStretched Type = "clip.stretched"
	// ClipsMerged is emitted when clips collapse into a survivor.
	ClipsMerged Type = "clips.merged"
	// ClipsDeleted is emitted when clips are removed.
	ClipsDeleted Type = "clips.deleted"
	// FlashcardUpdated is emitted when a clip's flashcard is edited.
	FlashcardUpdated Type = "flashcard.updated"

	// TimelineOpened is emitted when a timeline is opened or restored.
	TimelineOpened Type = "timeline.opened"
	// TimelineClosed is emitted when a timeline is closed.
	TimelineClosed Type = "timeline.closed"
	// TimelineImported is emitted after a bulk import.
	TimelineImported Type = "timeline.imported"

	// Heartbeat keeps idle streams alive.
	Heartbeat Type = "heartbeat"
)

// Mutates reports whether events of this type change a timeline's clips or
// flashcards.
func (t Type) Mutates() bool {
	switch t {
	case ClipCreated, ClipMoved, ClipStretched, ClipsMerged, ClipsDeleted, FlashcardUpdated, TimelineImported:
		return true
	default:
		return false
	}
}

// Event is one serializable change notification.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	TimelineID string    `json:"timeline_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Data       any       `json:"data,omitempty"`
}

// ClipData is the payload for created, moved, and stretched events.
type ClipData struct {
	Clip      domain.Clip       `json:"clip"`
	Flashcard *domain.Flashcard `json:"flashcard,omitempty"`
}

// MergeData is the payload for merge events.
type MergeData struct {
	Survivor  domain.Clip      `json:"survivor"`
	Flashcard domain.Flashcard `json:"flashcard"`
	Absorbed  []string         `json:"absorbed"`
}

// DeleteData is the payload for delete events.
type DeleteData struct {
	ClipIDs []string `json:"clip_ids"`
}

// FlashcardData is the payload for flashcard edits.
type FlashcardData struct {
	Flashcard domain.Flashcard `json:"flashcard"`
}

// TimelineData is the payload for timeline lifecycle events.
type TimelineData struct {
	Timeline domain.Timeline `json:"timeline"`
}

// ImportData is the payload for bulk imports.
type ImportData struct {
	Policy   string `json:"policy"`
	Added    int    `json:"added"`
	Merged   int    `json:"merged"`
	Skipped  int    `json:"skipped"`
	Replaced int    `json:"replaced"`
}

// New builds an event with a time-ordered ID.
func New(t Type, timelineID string, data any) Event {
	eventID, err := uuid.NewV7()
	if err != nil {
		eventID = uuid.New()
	}
	return Event{
		ID:         eventID.String(),
		Type:       t,
		TimelineID: timelineID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}
}

// Emitter receives change events.
type Emitter interface {
	Emit(event Event)
}

// NoopEmitter discards events.
type NoopEmitter struct{}

// Emit implements Emitter as a no-op.
func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(event).
func (f EmitterFunc) Emit(event Event) { f(event) }

// Fanout forwards each event to every emitter in order.
type Fanout []Emitter

// Emit implements Emitter.
func (f Fanout) Emit(event Event) {
	for _, e := range f {
		e.Emit(event)
	}
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
