package clips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
)

func cue(start, end int64, text string) ImportedClip {
	return ImportedClip{Start: start, End: end, Fields: map[string]string{domain.TranscriptionField: text}}
}

func TestParseImportPolicy(t *testing.T) {
	p, err := ParseImportPolicy("merge")
	require.NoError(t, err)
	assert.Equal(t, ImportMerge, p)

	_, err = ParseImportPolicy("append")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestImport_Replace(t *testing.T) {
	s, rec := newTestStore(t)
	addClip(t, s, "old", 1000, 2000, "old")
	rec.Reset()

	result, err := s.Import(testTimeline, []ImportedClip{
		cue(4000, 5000, "second"),
		cue(1500, 2500, "first"),
		cue(6000, 6100, "too short"),
	}, ImportReplace)
	require.NoError(t, err)

	assert.Equal(t, ImportResult{Added: 2, Skipped: 1, Replaced: 1}, result)
	assert.Equal(t, [][2]int64{{1500, 2500}, {4000, 5000}}, spans(t, s))
	_, err = s.Get("old")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TimelineImported, evs[0].Type)
	assert.Equal(t, events.ImportData{Policy: "replace", Added: 2, Skipped: 1, Replaced: 1}, evs[0].Data)
}

func TestImport_MergeKeepsEarliestExisting(t *testing.T) {
	s, _ := newTestStore(t)
	addClip(t, s, "a", 1000, 2000, "existing a")
	addClip(t, s, "b", 2500, 3000, "existing b")

	result, err := s.Import(testTimeline, []ImportedClip{
		cue(1800, 2700, "bridge"),
		cue(5000, 6000, "fresh"),
	}, ImportMerge)
	require.NoError(t, err)

	assert.Equal(t, ImportResult{Added: 1, Merged: 1}, result)
	assert.Equal(t, [][2]int64{{1000, 3000}, {5000, 6000}}, spans(t, s))

	fc, err := s.Flashcard("a")
	require.NoError(t, err)
	assert.Equal(t, "existing a\nbridge\nexisting b", fc.Transcription())
	_, err = s.Get("b")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestImport_OverlappingCuesCollapse(t *testing.T) {
	s, _ := newTestStore(t)

	result, err := s.Import(testTimeline, []ImportedClip{
		cue(1000, 2000, "one"),
		cue(1900, 2600, "two"),
		cue(2500, 3000, "three"),
	}, ImportReplace)
	require.NoError(t, err)

	assert.Equal(t, ImportResult{Added: 1, Merged: 2}, result)
	list, err := s.List(testTimeline)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1000), list[0].Start)
	assert.Equal(t, int64(3000), list[0].End)

	fc, err := s.Flashcard(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree", fc.Transcription())
	assertInvariant(t, s, testTimeline)
}

func TestImport_Errors(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Import("missing", nil, ImportReplace)
	assert.ErrorIs(t, err, errors.ErrTimelineNotFound)

	_, err = s.Import(testTimeline, nil, ImportPolicy("append"))
	assert.ErrorIs(t, err, errors.ErrValidation)
}
