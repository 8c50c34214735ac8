package clips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
	"github.com/listenupapp/clipdeck/internal/logger"
)

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	addClip(t, s, "b", 3000, 4000, "dos")
	addClip(t, s, "a", 1000, 2000, "uno")

	snap, err := s.Snapshot(testTimeline)
	require.NoError(t, err)
	require.Len(t, snap.Clips, 2)
	assert.Equal(t, "a", snap.Clips[0].ID)
	assert.Equal(t, "uno", snap.Flashcards[0].Transcription())

	other := New(Config{MinDuration: 150}, logger.Discard().Logger, nil)
	require.NoError(t, other.Restore(snap))

	restored, err := other.Snapshot(testTimeline)
	require.NoError(t, err)
	assert.Equal(t, snap, restored)

	next, ok, err := other.Next("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", next.ID)
}

func TestRestore_ReplacesExistingState(t *testing.T) {
	s, _ := newTestStore(t)
	addClip(t, s, "a", 1000, 2000, "")

	err := s.Restore(Snapshot{
		Timeline: domain.Timeline{ID: testTimeline},
		Clips:    []domain.Clip{{ID: "z", Start: 0, End: 500}},
	})
	require.NoError(t, err)

	_, err = s.Get("a")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	fc, err := s.Flashcard("z")
	require.NoError(t, err)
	assert.Equal(t, "", fc.Transcription())
}

func TestRestore_RejectsBrokenSnapshots(t *testing.T) {
	s, _ := newTestStore(t)
	addClip(t, s, "a", 1000, 2000, "")
	require.NoError(t, s.OpenTimeline(domain.Timeline{ID: "media-2"}))

	tests := []struct {
		name  string
		snap  Snapshot
		check error
	}{
		{"missing id", Snapshot{}, errors.ErrValidation},
		{"inverted", Snapshot{Timeline: domain.Timeline{ID: "media-2"}, Clips: []domain.Clip{{ID: "x", Start: 10, End: 5}}}, errors.ErrInvalidInterval},
		{"overlap", Snapshot{Timeline: domain.Timeline{ID: "media-2"}, Clips: []domain.Clip{
			{ID: "x", Start: 0, End: 100}, {ID: "y", Start: 50, End: 150},
		}}, errors.ErrInvalidInterval},
		{"foreign clip", Snapshot{Timeline: domain.Timeline{ID: "media-2"}, Clips: []domain.Clip{{ID: "a", Start: 0, End: 100}}}, errors.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.Restore(tt.snap), tt.check)
		})
	}

	assert.Equal(t, [][2]int64{{1000, 2000}}, spans(t, s))
}

func TestSnapshot_TrimToDuration(t *testing.T) {
	snap := Snapshot{
		Timeline: domain.Timeline{ID: testTimeline, DurationMs: 10_000},
		Clips: []domain.Clip{
			{ID: "a", Start: 0, End: 1000},
			{ID: "b", Start: 9000, End: 11_000},
			{ID: "c", Start: 11_000, End: 12_000},
		},
		Flashcards: []domain.Flashcard{{ID: "c"}, {ID: "a"}, {ID: "b"}},
	}

	trimmed := snap.TrimToDuration(150)
	require.Len(t, trimmed.Clips, 2)
	assert.Equal(t, int64(10_000), trimmed.Clips[1].End)
	assert.Equal(t, []domain.Flashcard{{ID: "a"}, {ID: "b"}}, trimmed.Flashcards)

	t.Run("clamp below min duration drops the clip", func(t *testing.T) {
		short := Snapshot{
			Timeline:   domain.Timeline{ID: testTimeline, DurationMs: 10_000},
			Clips:      []domain.Clip{{ID: "a", Start: 1000, End: 2000}, {ID: "z", Start: 9990, End: 12_000}},
			Flashcards: []domain.Flashcard{{ID: "a"}, {ID: "z"}},
		}.TrimToDuration(150)
		assert.Equal(t, []domain.Clip{{ID: "a", Start: 1000, End: 2000}}, short.Clips)
		assert.Equal(t, []domain.Flashcard{{ID: "a"}}, short.Flashcards)
	})

	t.Run("zero duration is unbounded", func(t *testing.T) {
		open := snap
		open.Timeline.DurationMs = 0
		assert.Equal(t, open, open.TrimToDuration(150))
	})
}

func TestRestore_FitsClipsToDuration(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Restore(Snapshot{
		Timeline: domain.Timeline{ID: testTimeline, DurationMs: 10_000},
		Clips: []domain.Clip{
			{ID: "a", Start: 1000, End: 2000},
			{ID: "b", Start: 9000, End: 9500},
			{ID: "z", Start: 9990, End: 12_000},
		},
		Flashcards: []domain.Flashcard{{ID: "z", Fields: map[string]string{domain.TranscriptionField: "tail"}}},
	}))

	assert.Equal(t, [][2]int64{{1000, 2000}, {9000, 9500}}, spans(t, s))
	_, err := s.Flashcard("z")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assertInvariant(t, s, testTimeline)
}

func TestStore_TrimToDuration(t *testing.T) {
	s, rec := newTestStore(t)
	addClip(t, s, "a", 1000, 2000, "")
	addClip(t, s, "b", 4000, 6000, "")
	addClip(t, s, "c", 6000, 7000, "")
	addClip(t, s, "d", 8000, 9000, "")
	rec.Reset()

	require.NoError(t, s.OpenTimeline(domain.Timeline{ID: testTimeline, DurationMs: 5000}))
	require.NoError(t, s.TrimToDuration(testTimeline))

	assert.Equal(t, [][2]int64{{1000, 2000}, {4000, 5000}}, spans(t, s))
	assert.Equal(t, []events.Type{events.ClipStretched, events.ClipsDeleted}, rec.Types())
	assertInvariant(t, s, testTimeline)

	// A clamp that would leave less than MinDuration removes the clip.
	require.NoError(t, s.OpenTimeline(domain.Timeline{ID: testTimeline, DurationMs: 4100}))
	require.NoError(t, s.TrimToDuration(testTimeline))
	assert.Equal(t, [][2]int64{{1000, 2000}}, spans(t, s))

	assert.ErrorIs(t, s.TrimToDuration("nope"), errors.ErrTimelineNotFound)
}
