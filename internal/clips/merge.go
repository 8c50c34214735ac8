package clips

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/listenupapp/clipdeck/internal/domain"
)

// fieldSeparator joins the field values of merged flashcards.
const fieldSeparator = "\n"

// MergeFlashcards folds cards, given in clip start order, into one flashcard with
// the given id.
//
// Every field is the newline-joined list of the cards' trimmed, non-empty values.
// Tags are the union of all tags in first-seen order. Cloze ranges of each card
// are rebased onto the joined transcription: a card's ranges move right by the
// rune length of everything joined before it, separator included.
func MergeFlashcards(id string, cards []domain.Flashcard) domain.Flashcard {
	out := domain.Flashcard{
		ID:     id,
		Fields: make(map[string]string),
		Tags:   mergeTags(cards),
	}

	for _, name := range fieldNames(cards) {
		var parts []string
		for _, c := range cards {
			if v := strings.TrimSpace(c.Fields[name]); v != "" {
				parts = append(parts, v)
			}
		}
		out.Fields[name] = strings.Join(parts, fieldSeparator)
	}
	if _, ok := out.Fields[domain.TranscriptionField]; !ok {
		out.Fields[domain.TranscriptionField] = ""
	}

	out.Clozes = mergeClozes(cards)
	return out
}

func fieldNames(cards []domain.Flashcard) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range cards {
		for name := range c.Fields {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

// mergeTags unions tags, comparing them trimmed and NFC-normalized so that
// composed and decomposed spellings collapse into one.
func mergeTags(cards []domain.Flashcard) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, c := range cards {
		for _, tag := range c.Tags {
			tag = norm.NFC.String(strings.TrimSpace(tag))
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

func mergeClozes(cards []domain.Flashcard) []domain.ClozeDeletion {
	var (
		out    []domain.ClozeDeletion
		offset int
		joined bool
	)

	for _, c := range cards {
		raw := c.Transcription()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if joined {
			offset += utf8.RuneCountInString(fieldSeparator)
		}
		joined = true

		lead := utf8.RuneCountInString(raw) - utf8.RuneCountInString(strings.TrimLeftFunc(raw, unicode.IsSpace))
		length := utf8.RuneCountInString(trimmed)

		for _, deletion := range c.Clozes {
			var ranges []domain.ClozeRange
			for _, r := range deletion.Ranges {
				start := max(r.Start-lead, 0)
				end := min(r.End-lead, length)
				if end <= start {
					continue
				}
				ranges = append(ranges, domain.ClozeRange{Start: start + offset, End: end + offset})
			}
			if len(ranges) > 0 {
				out = append(out, domain.ClozeDeletion{Ranges: ranges})
			}
		}

		offset += length
	}
	return out
}
