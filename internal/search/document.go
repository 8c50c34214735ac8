// Package search indexes flashcard text with Bleve so clips can be found by
// what is said in them.
package search

import (
	"slices"
	"strings"

	"github.com/listenupapp/clipdeck/internal/domain"
)

// ClipDocument is the indexed form of one clip and its flashcard.
type ClipDocument struct {
	ID            string `json:"id"` // clip id
	TimelineID    string `json:"timeline_id"`
	Transcription string `json:"transcription"`
	// Notes holds every other flashcard field, joined.
	Notes   string   `json:"notes,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	StartMs int64    `json:"start_ms"`
	EndMs   int64    `json:"end_ms"`
}

// ToMap converts the document to a map with lowercase field names matching the
// index mapping.
func (d *ClipDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":            d.ID,
		"timeline_id":   d.TimelineID,
		"transcription": d.Transcription,
		"start_ms":      d.StartMs,
		"end_ms":        d.EndMs,
	}
	if d.Notes != "" {
		m["notes"] = d.Notes
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

// NewClipDocument builds the document for clip and its flashcard. Non-
// transcription fields are joined in field name order.
func NewClipDocument(clip domain.Clip, card domain.Flashcard) *ClipDocument {
	var names []string
	for name := range card.Fields {
		if name != domain.TranscriptionField {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var notes []string
	for _, name := range names {
		if v := strings.TrimSpace(card.Fields[name]); v != "" {
			notes = append(notes, v)
		}
	}

	return &ClipDocument{
		ID:            clip.ID,
		TimelineID:    clip.TimelineID,
		Transcription: card.Transcription(),
		Notes:         strings.Join(notes, "\n"),
		Tags:          slices.Clone(card.Tags),
		StartMs:       clip.Start,
		EndMs:         clip.End,
	}
}
