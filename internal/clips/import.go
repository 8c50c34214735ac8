package clips

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
	"github.com/listenupapp/clipdeck/internal/id"
)

// ImportPolicy decides what happens to existing clips on bulk import.
type ImportPolicy string

const (
	// ImportReplace drops the timeline's clips before importing.
	ImportReplace ImportPolicy = "replace"
	// ImportMerge keeps existing clips; an imported clip overlapping them is
	// merged into the earliest one it touches.
	ImportMerge ImportPolicy = "merge"
)

// ParseImportPolicy validates a policy name.
func ParseImportPolicy(s string) (ImportPolicy, error) {
	switch p := ImportPolicy(s); p {
	case ImportReplace, ImportMerge:
		return p, nil
	default:
		return "", errors.Validationf("unknown import policy %q", s)
	}
}

// ImportedClip is one clip from a bulk source such as subtitle cues.
type ImportedClip struct {
	Start  int64
	End    int64
	Fields map[string]string
	Tags   []string
}

// ImportResult counts what an import did.
type ImportResult struct {
	Added    int `json:"added"`
	Merged   int `json:"merged"`
	Skipped  int `json:"skipped"`
	Replaced int `json:"replaced"`
}

// Import adds clips in bulk under policy. Imported clips shorter than
// MinDuration are skipped. Imported clips overlapping each other or existing
// clips are merged so the timeline invariant holds afterwards. One
// timeline.imported event is emitted instead of per-clip events.
func (s *Store) Import(timelineID string, imported []ImportedClip, policy ImportPolicy) (ImportResult, error) {
	var result ImportResult

	tl, err := s.timeline(timelineID)
	if err != nil {
		return result, err
	}
	if _, err := ParseImportPolicy(string(policy)); err != nil {
		return result, err
	}

	if policy == ImportReplace {
		result.Replaced = len(tl.order)
		for _, clipID := range slices.Clone(tl.order) {
			s.remove(tl, clipID)
		}
	}

	cues := slices.Clone(imported)
	slices.SortStableFunc(cues, func(a, b ImportedClip) int {
		return cmp.Compare(a.Start, b.Start)
	})

	for _, cue := range cues {
		if cue.End-cue.Start < s.cfg.MinDuration {
			result.Skipped++
			continue
		}
		clipID, err := id.Generate(id.PrefixClip)
		if err != nil {
			return result, errors.Wrap(err, errors.CodeInternal, "generate clip id")
		}
		clip := domain.Clip{ID: clipID, TimelineID: timelineID, Start: cue.Start, End: cue.End}
		card := prepareCard(clipID, domain.Flashcard{Fields: cue.Fields, Tags: cue.Tags})

		hits := tl.overlapping(cue.Start, cue.End, "")
		s.insert(tl, clip, card)
		if len(hits) == 0 {
			result.Added++
			continue
		}
		// hits are in start order; the earliest existing clip survives.
		s.merge(tl, hits[0], s.mustClips(tl, append(hits[1:], clipID)))
		result.Merged++
	}

	s.logger.Info("clips imported",
		"timeline_id", timelineID,
		"policy", string(policy),
		"added", result.Added,
		"merged", result.Merged,
		"skipped", result.Skipped,
		"replaced", result.Replaced)
	s.emitter.Emit(events.New(events.TimelineImported, timelineID, events.ImportData{
		Policy:   string(policy),
		Added:    result.Added,
		Merged:   result.Merged,
		Skipped:  result.Skipped,
		Replaced: result.Replaced,
	}))
	return result, nil
}

func (s *Store) mustClips(tl *timeline, clipIDs []string) []domain.Clip {
	out := make([]domain.Clip, len(clipIDs))
	for i, clipID := range clipIDs {
		c, ok := tl.clips[clipID]
		if !ok {
			panic(fmt.Sprintf("clip %q vanished during import", clipID))
		}
		out[i] = *c
	}
	return out
}
