package domain

import (
	"maps"
	"slices"
	"unicode/utf8"
)

// TranscriptionField is the flashcard field cloze ranges index into.
const TranscriptionField = "transcription"

// Flashcard is the content attached 1:1 to a clip and shares its ID.
type Flashcard struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags"`
	Clozes []ClozeDeletion   `json:"cloze"`
}

// ClozeDeletion is one fill-in-the-blank card made of one or more ranges.
type ClozeDeletion struct {
	Ranges []ClozeRange `json:"ranges"`
}

// ClozeRange is a half-open [Start, End) rune offset span into the transcription.
type ClozeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewFlashcard returns an empty flashcard for clip id.
func NewFlashcard(id string) Flashcard {
	return Flashcard{
		ID:     id,
		Fields: map[string]string{TranscriptionField: ""},
		Tags:   []string{},
	}
}

// Transcription returns the transcription field.
func (f Flashcard) Transcription() string {
	return f.Fields[TranscriptionField]
}

// Clone returns a deep copy so callers cannot alias store state.
func (f Flashcard) Clone() Flashcard {
	out := Flashcard{
		ID:     f.ID,
		Fields: maps.Clone(f.Fields),
		Tags:   slices.Clone(f.Tags),
	}
	if out.Fields == nil {
		out.Fields = map[string]string{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if f.Clozes != nil {
		out.Clozes = make([]ClozeDeletion, len(f.Clozes))
		for i, c := range f.Clozes {
			out.Clozes[i] = ClozeDeletion{Ranges: slices.Clone(c.Ranges)}
		}
	}
	return out
}

// InvalidClozeRange returns the first range that is empty, negative, or runs past
// the transcription, and false when every range is usable.
func (f Flashcard) InvalidClozeRange() (ClozeRange, bool) {
	n := utf8.RuneCountInString(f.Transcription())
	for _, c := range f.Clozes {
		for _, r := range c.Ranges {
			if r.Start < 0 || r.End <= r.Start || r.End > n {
				return r, true
			}
		}
	}
	return ClozeRange{}, false
}
