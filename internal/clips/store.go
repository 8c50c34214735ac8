// Package clips owns the clips of every open timeline and enforces their
// invariant: per timeline, clips are sorted by start and never overlap.
//
// The store is not safe for concurrent use. All calls are expected to come from
// one event-processing goroutine (see package editor).
package clips

import (
	"cmp"
	"log/slog"
	"slices"
	"sort"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
	"github.com/listenupapp/clipdeck/internal/id"
)

// Config holds store tunables.
type Config struct {
	// MinDuration is the shortest clip, in ms, a stretch may clamp down to.
	MinDuration int64
}

// Store holds the clip set of each open timeline.
type Store struct {
	cfg       Config
	logger    *slog.Logger
	emitter   events.Emitter
	timelines map[string]*timeline
	// owner maps a clip id to its timeline id.
	owner map[string]string
}

type timeline struct {
	meta  domain.Timeline
	clips map[string]*domain.Clip
	cards map[string]*domain.Flashcard
	order []string
}

// New creates an empty store. A nil emitter discards events.
func New(cfg Config, logger *slog.Logger, emitter events.Emitter) *Store {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 1
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Store{
		cfg:       cfg,
		logger:    logger,
		emitter:   emitter,
		timelines: make(map[string]*timeline),
		owner:     make(map[string]string),
	}
}

// SetEmitter replaces the event emitter.
func (s *Store) SetEmitter(emitter events.Emitter) {
	s.emitter = emitter
}

// MinDuration returns the configured minimum clip length in ms.
func (s *Store) MinDuration() int64 {
	return s.cfg.MinDuration
}

// --- Timelines ---

// OpenTimeline starts tracking a timeline. Opening an open timeline updates its
// metadata and keeps its clips.
func (s *Store) OpenTimeline(meta domain.Timeline) error {
	if meta.ID == "" {
		return errors.Validation("timeline id is required")
	}
	if tl, ok := s.timelines[meta.ID]; ok {
		tl.meta = meta
		return nil
	}
	s.timelines[meta.ID] = &timeline{
		meta:  meta,
		clips: make(map[string]*domain.Clip),
		cards: make(map[string]*domain.Flashcard),
	}
	s.logger.Debug("timeline opened", "timeline_id", meta.ID, "duration_ms", meta.DurationMs)
	s.emitter.Emit(events.New(events.TimelineOpened, meta.ID, events.TimelineData{Timeline: meta}))
	return nil
}

// CloseTimeline forgets a timeline and all its clips. Unknown ids are ignored.
func (s *Store) CloseTimeline(timelineID string) {
	tl, ok := s.timelines[timelineID]
	if !ok {
		return
	}
	for _, clipID := range tl.order {
		delete(s.owner, clipID)
	}
	delete(s.timelines, timelineID)
	s.logger.Debug("timeline closed", "timeline_id", timelineID, "clips", len(tl.order))
	s.emitter.Emit(events.New(events.TimelineClosed, timelineID, events.TimelineData{Timeline: tl.meta}))
}

// TrimToDuration fits an open timeline's clips to its duration with the rules
// of Snapshot.TrimToDuration. A clamped clip emits clip.stretched and dropped
// clips emit clips.deleted.
func (s *Store) TrimToDuration(timelineID string) error {
	tl, err := s.timeline(timelineID)
	if err != nil {
		return err
	}
	limit := tl.meta.DurationMs
	if limit <= 0 {
		return nil
	}

	var drop []string
	var clamped []domain.Clip
	for _, clipID := range tl.order {
		c := *tl.clips[clipID]
		fitted, ok := fitToDuration(c, limit, s.cfg.MinDuration)
		switch {
		case !ok:
			drop = append(drop, clipID)
		case fitted.End != c.End:
			clamped = append(clamped, fitted)
		}
	}

	for _, c := range clamped {
		s.reposition(tl, c)
		s.logger.Debug("clip clamped to duration", "clip", c.String(), "duration_ms", limit)
		s.emitter.Emit(events.New(events.ClipStretched, timelineID, events.ClipData{Clip: c}))
	}
	s.DeleteMany(drop)
	return nil
}

// Timeline returns the metadata of an open timeline.
func (s *Store) Timeline(timelineID string) (domain.Timeline, error) {
	tl, err := s.timeline(timelineID)
	if err != nil {
		return domain.Timeline{}, err
	}
	return tl.meta, nil
}

// HasTimeline reports whether the timeline is open.
func (s *Store) HasTimeline(timelineID string) bool {
	_, ok := s.timelines[timelineID]
	return ok
}

// Timelines returns every open timeline ordered by id.
func (s *Store) Timelines() []domain.Timeline {
	out := make([]domain.Timeline, 0, len(s.timelines))
	for _, tl := range s.timelines {
		out = append(out, tl.meta)
	}
	slices.SortFunc(out, func(a, b domain.Timeline) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) timeline(timelineID string) (*timeline, error) {
	tl, ok := s.timelines[timelineID]
	if !ok {
		err := errors.TimelineNotFound(timelineID)
		s.logger.Error("invariant violation", "error", err)
		return nil, err
	}
	return tl, nil
}

// locate returns the timeline and clip for a clip id.
func (s *Store) locate(clipID string) (*timeline, *domain.Clip, error) {
	timelineID, ok := s.owner[clipID]
	if !ok {
		return nil, nil, errors.NotFoundf("clip %q not found", clipID)
	}
	tl, err := s.timeline(timelineID)
	if err != nil {
		return nil, nil, err
	}
	return tl, tl.clips[clipID], nil
}

// --- Mutations ---

// Add inserts a clip and its flashcard. An empty clip id is generated. The clip
// must not overlap any clip already on the timeline: overlap resolution belongs
// to the caller.
func (s *Store) Add(timelineID string, clip domain.Clip, card domain.Flashcard) (domain.Clip, error) {
	tl, err := s.timeline(timelineID)
	if err != nil {
		return domain.Clip{}, err
	}
	if !clip.Valid() {
		return domain.Clip{}, errors.InvalidIntervalf("clip start %d must be before end %d", clip.Start, clip.End)
	}
	if r, bad := card.InvalidClozeRange(); bad {
		return domain.Clip{}, errors.Validationf("cloze range [%d,%d) is outside the transcription", r.Start, r.End)
	}
	if clip.ID == "" {
		if clip.ID, err = id.Generate(id.PrefixClip); err != nil {
			return domain.Clip{}, errors.Wrap(err, errors.CodeInternal, "generate clip id")
		}
	}
	if _, exists := s.owner[clip.ID]; exists {
		return domain.Clip{}, errors.AlreadyExistsf("clip %q already exists", clip.ID)
	}
	if hits := tl.overlapping(clip.Start, clip.End, ""); len(hits) > 0 {
		return domain.Clip{}, errors.InvalidIntervalf("clip [%d,%d) overlaps %s", clip.Start, clip.End, hits[0])
	}

	clip.TimelineID = timelineID
	card = prepareCard(clip.ID, card)
	s.insert(tl, clip, card)

	s.logger.Debug("clip added", "timeline_id", timelineID, "clip", clip.String())
	s.emitter.Emit(events.New(events.ClipCreated, timelineID, events.ClipData{Clip: clip, Flashcard: &card}))
	return clip, nil
}

// Move shifts a clip by deltaMs. When overlapIDs is non-empty the clip then
// absorbs those clips, keeping its own id.
func (s *Store) Move(clipID string, deltaMs int64, overlapIDs []string) error {
	tl, clip, err := s.locate(clipID)
	if err != nil {
		return err
	}
	moved := *clip
	moved.Start += deltaMs
	moved.End += deltaMs

	merge, err := s.reshape(tl, moved, overlapIDs)
	if err != nil {
		return err
	}

	s.emitter.Emit(events.New(events.ClipMoved, tl.meta.ID, events.ClipData{Clip: moved}))
	if merge != nil {
		s.emitter.Emit(events.New(events.ClipsMerged, tl.meta.ID, *merge))
	}
	return nil
}

// Stretch moves one edge of a clip to boundary. The moving edge is clamped so the
// clip stays at least MinDuration long. Non-empty overlapIDs are absorbed as in Move.
func (s *Store) Stretch(clipID string, edge domain.Edge, boundary int64, overlapIDs []string) error {
	tl, clip, err := s.locate(clipID)
	if err != nil {
		return err
	}
	stretched := *clip
	if edge == domain.EdgeStart {
		stretched.Start = min(boundary, clip.End-s.cfg.MinDuration)
	} else {
		stretched.End = max(boundary, clip.Start+s.cfg.MinDuration)
	}
	if clamped := stretched.Start != boundary && stretched.End != boundary; clamped {
		s.logger.Debug("stretch clamped", "clip_id", clipID, "edge", edge.String(), "requested", boundary)
	}

	merge, err := s.reshape(tl, stretched, overlapIDs)
	if err != nil {
		return err
	}

	s.emitter.Emit(events.New(events.ClipStretched, tl.meta.ID, events.ClipData{Clip: stretched}))
	if merge != nil {
		s.emitter.Emit(events.New(events.ClipsMerged, tl.meta.ID, *merge))
	}
	return nil
}

// reshape replaces a clip's bounds and merges overlapIDs into it. It checks
// everything first so a failure leaves the timeline untouched.
func (s *Store) reshape(tl *timeline, next domain.Clip, overlapIDs []string) (*events.MergeData, error) {
	if !next.Valid() {
		return nil, errors.InvalidIntervalf("clip start %d must be before end %d", next.Start, next.End)
	}
	members, err := s.mergeMembers(tl, next.ID, overlapIDs)
	if err != nil {
		return nil, err
	}

	start, end := next.Start, next.End
	for _, m := range members {
		start, end = min(start, m.Start), max(end, m.End)
	}
	if hits := tl.overlapping(start, end, next.ID, overlapIDs...); len(hits) > 0 {
		return nil, errors.InvalidIntervalf("clip %s would overlap %s", next.ID, hits[0])
	}

	s.reposition(tl, next)
	if len(members) == 0 {
		return nil, nil
	}
	merge := s.merge(tl, next.ID, members)
	return &merge, nil
}

// MergeInto collapses absorbedIDs into survivorID. The survivor spans all merged
// clips and carries their combined flashcard; the absorbed clips are removed.
func (s *Store) MergeInto(survivorID string, absorbedIDs []string) error {
	timelineID, ok := s.owner[survivorID]
	if !ok {
		err := errors.IllegalMergeStatef("merge survivor %q not found", survivorID)
		s.logger.Error("invariant violation", "error", err)
		return err
	}
	tl, err := s.timeline(timelineID)
	if err != nil {
		return err
	}
	members, err := s.mergeMembers(tl, survivorID, absorbedIDs)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	survivor := tl.clips[survivorID]
	start, end := survivor.Start, survivor.End
	for _, m := range members {
		start, end = min(start, m.Start), max(end, m.End)
	}
	if hits := tl.overlapping(start, end, survivorID, absorbedIDs...); len(hits) > 0 {
		err := errors.IllegalMergeStatef("merged span [%d,%d) would overlap %s", start, end, hits[0])
		s.logger.Error("invariant violation", "error", err)
		return err
	}

	merge := s.merge(tl, survivorID, members)
	s.emitter.Emit(events.New(events.ClipsMerged, tl.meta.ID, merge))
	return nil
}

// mergeMembers resolves the clips to absorb, dropping duplicates and the survivor.
// Every id must live on the survivor's timeline.
func (s *Store) mergeMembers(tl *timeline, survivorID string, absorbedIDs []string) ([]domain.Clip, error) {
	var members []domain.Clip
	seen := map[string]bool{survivorID: true}
	for _, absorbedID := range absorbedIDs {
		if seen[absorbedID] {
			continue
		}
		seen[absorbedID] = true
		clip, ok := tl.clips[absorbedID]
		if !ok {
			err := errors.IllegalMergeStatef("clip %q to merge into %q not found on timeline %q", absorbedID, survivorID, tl.meta.ID)
			s.logger.Error("invariant violation", "error", err)
			return nil, err
		}
		members = append(members, *clip)
	}
	return members, nil
}

// merge folds members into the survivor. Callers have validated the inputs.
func (s *Store) merge(tl *timeline, survivorID string, members []domain.Clip) events.MergeData {
	survivor := *tl.clips[survivorID]
	all := append([]domain.Clip{survivor}, members...)
	slices.SortStableFunc(all, func(a, b domain.Clip) int {
		return cmp.Compare(a.Start, b.Start)
	})

	cards := make([]domain.Flashcard, len(all))
	absorbed := make([]string, 0, len(members))
	for i, c := range all {
		cards[i] = *tl.cards[c.ID]
		survivor.Start = min(survivor.Start, c.Start)
		survivor.End = max(survivor.End, c.End)
		if c.ID != survivorID {
			absorbed = append(absorbed, c.ID)
		}
	}
	card := MergeFlashcards(survivorID, cards)

	for _, absorbedID := range absorbed {
		s.remove(tl, absorbedID)
	}
	s.reposition(tl, survivor)
	tl.cards[survivorID] = &card

	s.logger.Debug("clips merged",
		"timeline_id", tl.meta.ID,
		"survivor", survivor.String(),
		"absorbed", absorbed)
	return events.MergeData{Survivor: survivor, Flashcard: card.Clone(), Absorbed: absorbed}
}

// Delete removes a clip and its flashcard. Unknown ids are ignored.
func (s *Store) Delete(clipID string) {
	s.DeleteMany([]string{clipID})
}

// DeleteMany removes clips and their flashcards. Unknown ids are ignored.
func (s *Store) DeleteMany(clipIDs []string) {
	removed := make(map[string][]string)
	var timelineOrder []string
	for _, clipID := range clipIDs {
		timelineID, ok := s.owner[clipID]
		if !ok {
			continue
		}
		if _, seen := removed[timelineID]; !seen {
			timelineOrder = append(timelineOrder, timelineID)
		}
		s.remove(s.timelines[timelineID], clipID)
		removed[timelineID] = append(removed[timelineID], clipID)
	}
	for _, timelineID := range timelineOrder {
		ids := removed[timelineID]
		s.logger.Debug("clips deleted", "timeline_id", timelineID, "clip_ids", ids)
		s.emitter.Emit(events.New(events.ClipsDeleted, timelineID, events.DeleteData{ClipIDs: ids}))
	}
}

// UpdateFlashcard replaces the flashcard of an existing clip.
func (s *Store) UpdateFlashcard(card domain.Flashcard) (domain.Flashcard, error) {
	tl, _, err := s.locate(card.ID)
	if err != nil {
		return domain.Flashcard{}, err
	}
	if r, bad := card.InvalidClozeRange(); bad {
		return domain.Flashcard{}, errors.Validationf("cloze range [%d,%d) is outside the transcription", r.Start, r.End)
	}
	card = prepareCard(card.ID, card)
	tl.cards[card.ID] = &card

	out := card.Clone()
	s.emitter.Emit(events.New(events.FlashcardUpdated, tl.meta.ID, events.FlashcardData{Flashcard: out}))
	return out, nil
}

// --- Queries ---

// List returns the clips of a timeline in start order.
func (s *Store) List(timelineID string) ([]domain.Clip, error) {
	tl, err := s.timeline(timelineID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Clip, len(tl.order))
	for i, clipID := range tl.order {
		out[i] = *tl.clips[clipID]
	}
	return out, nil
}

// Count returns the number of clips on a timeline.
func (s *Store) Count(timelineID string) int {
	if tl, ok := s.timelines[timelineID]; ok {
		return len(tl.order)
	}
	return 0
}

// Get returns a clip by id.
func (s *Store) Get(clipID string) (domain.Clip, error) {
	_, clip, err := s.locate(clipID)
	if err != nil {
		return domain.Clip{}, err
	}
	return *clip, nil
}

// Flashcard returns the flashcard of a clip.
func (s *Store) Flashcard(clipID string) (domain.Flashcard, error) {
	tl, _, err := s.locate(clipID)
	if err != nil {
		return domain.Flashcard{}, err
	}
	return tl.cards[clipID].Clone(), nil
}

// ClipAt returns the clip whose span contains ms.
func (s *Store) ClipAt(timelineID string, ms int64) (domain.Clip, bool, error) {
	tl, err := s.timeline(timelineID)
	if err != nil {
		return domain.Clip{}, false, err
	}
	i := sort.Search(len(tl.order), func(i int) bool {
		return tl.clips[tl.order[i]].End > ms
	})
	if i < len(tl.order) && tl.clips[tl.order[i]].Contains(ms) {
		return *tl.clips[tl.order[i]], true, nil
	}
	return domain.Clip{}, false, nil
}

// Previous returns the clip directly before clipID.
func (s *Store) Previous(clipID string) (domain.Clip, bool, error) {
	return s.neighbor(clipID, -1)
}

// Next returns the clip directly after clipID.
func (s *Store) Next(clipID string) (domain.Clip, bool, error) {
	return s.neighbor(clipID, 1)
}

func (s *Store) neighbor(clipID string, step int) (domain.Clip, bool, error) {
	tl, _, err := s.locate(clipID)
	if err != nil {
		return domain.Clip{}, false, err
	}
	i := tl.index(clipID) + step
	if i < 0 || i >= len(tl.order) {
		return domain.Clip{}, false, nil
	}
	return *tl.clips[tl.order[i]], true, nil
}

// Overlapping returns the clips intersecting [start, end), excluding the given ids.
func (s *Store) Overlapping(timelineID string, start, end int64, exclude ...string) ([]domain.Clip, error) {
	tl, err := s.timeline(timelineID)
	if err != nil {
		return nil, err
	}
	var out []domain.Clip
	for _, clipID := range tl.overlapping(start, end, "", exclude...) {
		out = append(out, *tl.clips[clipID])
	}
	return out, nil
}

// --- internal bookkeeping ---

func prepareCard(clipID string, card domain.Flashcard) domain.Flashcard {
	card = card.Clone()
	card.ID = clipID
	if _, ok := card.Fields[domain.TranscriptionField]; !ok {
		card.Fields[domain.TranscriptionField] = ""
	}
	return card
}

func (s *Store) insert(tl *timeline, clip domain.Clip, card domain.Flashcard) {
	c := clip
	tl.clips[clip.ID] = &c
	tl.cards[clip.ID] = &card
	s.owner[clip.ID] = tl.meta.ID
	tl.insertOrdered(clip.ID)
}

func (s *Store) remove(tl *timeline, clipID string) {
	if i := tl.index(clipID); i >= 0 {
		tl.order = slices.Delete(tl.order, i, i+1)
	}
	delete(tl.clips, clipID)
	delete(tl.cards, clipID)
	delete(s.owner, clipID)
}

// reposition stores new bounds for an existing clip and restores start order.
func (s *Store) reposition(tl *timeline, clip domain.Clip) {
	if i := tl.index(clip.ID); i >= 0 {
		tl.order = slices.Delete(tl.order, i, i+1)
	}
	c := clip
	tl.clips[clip.ID] = &c
	tl.insertOrdered(clip.ID)
}

// insertOrdered places clipID by binary search on start. Equal starts keep
// insertion order.
func (tl *timeline) insertOrdered(clipID string) {
	start := tl.clips[clipID].Start
	i := sort.Search(len(tl.order), func(i int) bool {
		return tl.clips[tl.order[i]].Start > start
	})
	tl.order = slices.Insert(tl.order, i, clipID)
}

func (tl *timeline) index(clipID string) int {
	return slices.Index(tl.order, clipID)
}

// overlapping lists ids of clips intersecting [start, end) other than skip and exclude.
func (tl *timeline) overlapping(start, end int64, skip string, exclude ...string) []string {
	var out []string
	for _, clipID := range tl.order {
		c := tl.clips[clipID]
		if c.Start >= end {
			break
		}
		if clipID == skip || slices.Contains(exclude, clipID) {
			continue
		}
		if c.Overlaps(start, end) {
			out = append(out, clipID)
		}
	}
	return out
}
