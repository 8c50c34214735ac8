// Package autosave persists timeline snapshots in reaction to change events.
//
// The first change to a timeline is saved right away; further changes within
// the interval are coalesced and written by the next periodic flush.
package autosave

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/events"
	"github.com/listenupapp/clipdeck/internal/ratelimit"
)

// flushTimeout bounds the final flush after the worker stops.
const flushTimeout = 5 * time.Second

// Snapshotter reads the live state of a timeline.
type Snapshotter interface {
	Snapshot(timelineID string) (clips.Snapshot, error)
}

// Saver writes a snapshot to durable storage.
type Saver interface {
	SaveSnapshot(ctx context.Context, snap clips.Snapshot) error
}

// Worker saves dirty timelines.
type Worker struct {
	interval time.Duration
	source   Snapshotter
	sink     Saver
	logger   *slog.Logger
	limiter  *ratelimit.KeyedRateLimiter

	mu    sync.Mutex
	dirty map[string]bool
}

// New creates a worker writing each timeline at most once per interval.
func New(interval time.Duration, source Snapshotter, sink Saver, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		interval: interval,
		source:   source,
		sink:     sink,
		logger:   logger,
		limiter:  ratelimit.Every(interval),
		dirty:    make(map[string]bool),
	}
}

// Run consumes events until ctx is done or in is closed, then flushes whatever
// is still dirty.
func (w *Worker) Run(ctx context.Context, in <-chan events.Event) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("autosave started", "interval", w.interval)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		w.FlushAll(flushCtx)
		w.logger.Info("autosave stopped")
	}()

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return
			}
			w.Handle(ctx, ev)
		case <-ticker.C:
			w.FlushAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Handle processes one event.
func (w *Worker) Handle(ctx context.Context, ev events.Event) {
	switch {
	case ev.Type == events.TimelineClosed:
		w.setDirty(ev.TimelineID, false)
		w.limiter.Forget(ev.TimelineID)
	case ev.Type.Mutates():
		w.setDirty(ev.TimelineID, true)
		if w.limiter.Allow(ev.TimelineID) {
			w.save(ctx, ev.TimelineID)
		}
	}
}

// Pending returns the timelines with unsaved changes.
func (w *Worker) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirty))
	for timelineID := range w.dirty {
		out = append(out, timelineID)
	}
	slices.Sort(out)
	return out
}

// Flush saves a timeline now, dirty or not.
func (w *Worker) Flush(ctx context.Context, timelineID string) error {
	return w.save(ctx, timelineID)
}

// FlushAll saves every dirty timeline.
func (w *Worker) FlushAll(ctx context.Context) {
	for _, timelineID := range w.Pending() {
		_ = w.save(ctx, timelineID)
	}
}

// save clears the dirty mark before reading the snapshot, so changes made
// while writing mark the timeline dirty again.
func (w *Worker) save(ctx context.Context, timelineID string) error {
	w.setDirty(timelineID, false)

	snap, err := w.source.Snapshot(timelineID)
	if errors.Is(err, errors.ErrTimelineNotFound) {
		// Closed before we got to it.
		return err
	}
	if err != nil {
		w.setDirty(timelineID, true)
		w.logger.Error("autosave snapshot failed", "timeline_id", timelineID, "error", err)
		return err
	}

	if err := w.sink.SaveSnapshot(ctx, snap); err != nil {
		w.setDirty(timelineID, true)
		w.logger.Error("autosave write failed", "timeline_id", timelineID, "error", err)
		return err
	}
	w.logger.Debug("timeline saved", "timeline_id", timelineID, "clips", len(snap.Clips))
	return nil
}

func (w *Worker) setDirty(timelineID string, dirty bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if dirty {
		w.dirty[timelineID] = true
	} else {
		delete(w.dirty, timelineID)
	}
}
