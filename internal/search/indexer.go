package search

import (
	"context"
	"log/slog"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
)

// Source reads live clip state from the editor.
type Source interface {
	Snapshot(timelineID string) (clips.Snapshot, error)
	Clip(clipID string) (editor.ClipView, error)
}

// Indexer keeps the index in step with editor events.
type Indexer struct {
	index  *SearchIndex
	source Source
	logger *slog.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(index *SearchIndex, source Source, logger *slog.Logger) *Indexer {
	return &Indexer{index: index, source: source, logger: logger}
}

// Run consumes events until ctx is done or in is closed.
func (x *Indexer) Run(ctx context.Context, in <-chan events.Event) {
	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return
			}
			if err := x.Handle(ctx, ev); err != nil {
				x.logger.Warn("search indexing failed",
					"event_type", string(ev.Type),
					"timeline_id", ev.TimelineID,
					"error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Handle applies one event to the index.
func (x *Indexer) Handle(ctx context.Context, ev events.Event) error {
	switch ev.Type {
	case events.ClipCreated:
		data, ok := ev.Data.(events.ClipData)
		if !ok {
			return nil
		}
		if data.Flashcard != nil {
			return x.index.IndexDocument(NewClipDocument(data.Clip, *data.Flashcard))
		}
		return x.reindexClip(data.Clip.ID)

	case events.ClipMoved, events.ClipStretched:
		data, ok := ev.Data.(events.ClipData)
		if !ok {
			return nil
		}
		return x.reindexClip(data.Clip.ID)

	case events.FlashcardUpdated:
		data, ok := ev.Data.(events.FlashcardData)
		if !ok {
			return nil
		}
		return x.reindexClip(data.Flashcard.ID)

	case events.ClipsMerged:
		data, ok := ev.Data.(events.MergeData)
		if !ok {
			return nil
		}
		if err := x.index.IndexDocument(NewClipDocument(data.Survivor, data.Flashcard)); err != nil {
			return err
		}
		return x.index.DeleteDocuments(data.Absorbed)

	case events.ClipsDeleted:
		data, ok := ev.Data.(events.DeleteData)
		if !ok {
			return nil
		}
		return x.index.DeleteDocuments(data.ClipIDs)

	case events.TimelineOpened, events.TimelineImported:
		return x.ReindexTimeline(ctx, ev.TimelineID)

	case events.TimelineClosed:
		_, err := x.index.DeleteTimeline(ctx, ev.TimelineID)
		return err
	}
	return nil
}

// ReindexTimeline replaces a timeline's documents with its current clips.
func (x *Indexer) ReindexTimeline(ctx context.Context, timelineID string) error {
	snap, err := x.source.Snapshot(timelineID)
	if errors.Is(err, errors.ErrTimelineNotFound) {
		// Closed before we got to it.
		_, err = x.index.DeleteTimeline(ctx, timelineID)
		return err
	}
	if err != nil {
		return err
	}

	if _, err := x.index.DeleteTimeline(ctx, timelineID); err != nil {
		return err
	}

	docs := make([]*ClipDocument, 0, len(snap.Clips))
	for i, clip := range snap.Clips {
		docs = append(docs, NewClipDocument(clip, snap.Flashcards[i]))
	}
	if err := x.index.IndexDocuments(docs); err != nil {
		return err
	}
	x.logger.Debug("timeline reindexed", "timeline_id", timelineID, "documents", len(docs))
	return nil
}

func (x *Indexer) reindexClip(clipID string) error {
	view, err := x.source.Clip(clipID)
	if errors.Is(err, errors.ErrNotFound) {
		// Gone by now; the delete or merge event that removed it follows.
		return nil
	}
	if err != nil {
		return err
	}
	return x.index.IndexDocument(NewClipDocument(view.Clip, view.Flashcard))
}
