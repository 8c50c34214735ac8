package clips

import (
	"cmp"
	"slices"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
)

// Snapshot is a detached copy of one timeline's state, used by persistence.
type Snapshot struct {
	Timeline   domain.Timeline    `json:"timeline"`
	Clips      []domain.Clip      `json:"clips"`
	Flashcards []domain.Flashcard `json:"flashcards"`
}

// TrimToDuration fits snap to its timeline duration. Clips starting at or past
// the end are dropped. A clip crossing the end is clamped to it, or dropped when
// the clamped clip would be shorter than minDuration. Flashcards of dropped clips
// go with them. A zero duration leaves snap unchanged.
func (snap Snapshot) TrimToDuration(minDuration int64) Snapshot {
	limit := snap.Timeline.DurationMs
	if limit <= 0 {
		return snap
	}
	out := Snapshot{Timeline: snap.Timeline}
	kept := make(map[string]bool, len(snap.Clips))
	for _, c := range snap.Clips {
		fitted, ok := fitToDuration(c, limit, minDuration)
		if !ok {
			continue
		}
		out.Clips = append(out.Clips, fitted)
		kept[c.ID] = true
	}
	for _, card := range snap.Flashcards {
		if kept[card.ID] {
			out.Flashcards = append(out.Flashcards, card)
		}
	}
	return out
}

// fitToDuration clamps c to end at limit. ok is false when nothing of at least
// minDuration remains.
func fitToDuration(c domain.Clip, limit, minDuration int64) (domain.Clip, bool) {
	if c.End <= limit {
		return c, true
	}
	if limit-c.Start < max(minDuration, 1) {
		return c, false
	}
	c.End = limit
	return c, true
}

// Snapshot copies the state of an open timeline. Flashcards follow clip order.
func (s *Store) Snapshot(timelineID string) (Snapshot, error) {
	tl, err := s.timeline(timelineID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Timeline:   tl.meta,
		Clips:      make([]domain.Clip, len(tl.order)),
		Flashcards: make([]domain.Flashcard, len(tl.order)),
	}
	for i, clipID := range tl.order {
		snap.Clips[i] = *tl.clips[clipID]
		snap.Flashcards[i] = tl.cards[clipID].Clone()
	}
	return snap, nil
}

// Restore replaces a timeline's state with snap, opening the timeline if needed.
// The snapshot must satisfy the store invariant; nothing changes if it does not.
func (s *Store) Restore(snap Snapshot) error {
	if snap.Timeline.ID == "" {
		return errors.Validation("snapshot timeline id is required")
	}
	snap = snap.TrimToDuration(s.cfg.MinDuration)

	sorted := slices.Clone(snap.Clips)
	slices.SortStableFunc(sorted, func(a, b domain.Clip) int {
		return cmp.Compare(a.Start, b.Start)
	})
	cards := make(map[string]domain.Flashcard, len(snap.Flashcards))
	for _, card := range snap.Flashcards {
		cards[card.ID] = card
	}
	for i, clip := range sorted {
		if !clip.Valid() {
			return errors.InvalidIntervalf("snapshot clip %s is empty or inverted", clip.String())
		}
		if i > 0 && sorted[i-1].End > clip.Start {
			return errors.InvalidIntervalf("snapshot clips %s and %s overlap", sorted[i-1].String(), clip.String())
		}
		if owner, ok := s.owner[clip.ID]; ok && owner != snap.Timeline.ID {
			return errors.AlreadyExistsf("clip %q belongs to timeline %q", clip.ID, owner)
		}
	}

	if tl, ok := s.timelines[snap.Timeline.ID]; ok {
		for _, clipID := range tl.order {
			delete(s.owner, clipID)
		}
	}
	tl := &timeline{
		meta:  snap.Timeline,
		clips: make(map[string]*domain.Clip, len(sorted)),
		cards: make(map[string]*domain.Flashcard, len(sorted)),
		order: make([]string, 0, len(sorted)),
	}
	s.timelines[snap.Timeline.ID] = tl
	for _, clip := range sorted {
		clip.TimelineID = snap.Timeline.ID
		card, ok := cards[clip.ID]
		if !ok {
			card = domain.NewFlashcard(clip.ID)
		}
		c := clip
		tl.clips[clip.ID] = &c
		prepared := prepareCard(clip.ID, card)
		tl.cards[clip.ID] = &prepared
		tl.order = append(tl.order, clip.ID)
		s.owner[clip.ID] = snap.Timeline.ID
	}

	s.logger.Debug("timeline restored", "timeline_id", snap.Timeline.ID, "clips", len(sorted))
	s.emitter.Emit(events.New(events.TimelineOpened, snap.Timeline.ID, events.TimelineData{Timeline: snap.Timeline}))
	return nil
}
