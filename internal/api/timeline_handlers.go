package api

import (
	"context"
	"net/http"
	"time"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/http/response"
	"github.com/listenupapp/clipdeck/internal/store/sqlite"
)

// closeFlushTimeout bounds the save made before a timeline is closed.
const closeFlushTimeout = 10 * time.Second

// OpenTimelineRequest opens a timeline for editing.
type OpenTimelineRequest struct {
	ID              string  `json:"id" validate:"required,max=256"`
	DurationMs      int64   `json:"duration_ms" validate:"gte=0"`
	PixelsPerSecond float64 `json:"pixels_per_second" validate:"gte=0"`
	// Fresh skips restoring a saved snapshot.
	Fresh bool `json:"fresh,omitempty"`
}

// OpenTimelineResponse reports the opened timeline.
type OpenTimelineResponse struct {
	Timeline domain.Timeline `json:"timeline"`
	Restored bool            `json:"restored"`
	Clips    int             `json:"clips"`
}

// handleOpenTimeline opens a timeline, restoring its last saved snapshot when
// one exists.
func (s *Server) handleOpenTimeline(w http.ResponseWriter, r *http.Request) {
	var req OpenTimelineRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	meta := domain.Timeline{ID: req.ID, DurationMs: req.DurationMs, PixelsPerSecond: req.PixelsPerSecond}

	if _, err := s.editor.Timeline(req.ID); err == nil || req.Fresh || s.snapshots == nil {
		s.openFresh(w, meta)
		return
	}

	snap, err := s.snapshots.LoadSnapshot(r.Context(), req.ID)
	if errors.Is(err, errors.ErrNotFound) {
		s.openFresh(w, meta)
		return
	}
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	// The caller's media probe wins over stale metadata.
	snap.Timeline.DurationMs = meta.DurationMs
	if meta.PixelsPerSecond > 0 {
		snap.Timeline.PixelsPerSecond = meta.PixelsPerSecond
	}

	if err := s.editor.Restore(snap); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	tl, err := s.editor.Timeline(req.ID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	list, err := s.editor.Clips(req.ID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	s.logger.Info("timeline restored", "timeline_id", req.ID, "saved", len(snap.Clips), "clips", len(list))
	response.Created(w, OpenTimelineResponse{Timeline: tl, Restored: true, Clips: len(list)}, s.logger)
}

func (s *Server) openFresh(w http.ResponseWriter, meta domain.Timeline) {
	tl, err := s.editor.OpenTimeline(meta)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	list, err := s.editor.Clips(tl.ID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, OpenTimelineResponse{Timeline: tl, Clips: len(list)}, s.logger)
}

// handleListTimelines lists open timelines.
func (s *Server) handleListTimelines(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.editor.Timelines(), s.logger)
}

// handleListSavedTimelines lists timelines with a saved snapshot.
func (s *Server) handleListSavedTimelines(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		response.Success(w, []sqlite.SavedTimeline{}, s.logger)
		return
	}
	saved, err := s.snapshots.ListTimelines(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, saved, s.logger)
}

// handleGetTimeline returns an open timeline's metadata.
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := s.editor.Timeline(timelineParam(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, tl, s.logger)
}

// handleCloseTimeline saves pending changes and closes the timeline.
func (s *Server) handleCloseTimeline(w http.ResponseWriter, r *http.Request) {
	timelineID := timelineParam(r)

	if _, err := s.editor.Timeline(timelineID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if s.autosave != nil {
		// The save must finish even if the client hangs up.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), closeFlushTimeout)
		err := s.autosave.Flush(ctx, timelineID)
		cancel()
		if err != nil {
			s.logger.Error("failed to save timeline before close", "timeline_id", timelineID, "error", err)
			response.HandleError(w, err, s.logger)
			return
		}
	}

	if err := s.editor.CloseTimeline(timelineID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleGetSnapshot returns the live state of a timeline.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.editor.Snapshot(timelineParam(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, snap, s.logger)
}

// handleListClips lists a timeline's clips in start order.
func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	list, err := s.editor.Clips(timelineParam(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if list == nil {
		list = []domain.Clip{}
	}
	response.Success(w, list, s.logger)
}

// ClipAtResponse answers a point query.
type ClipAtResponse struct {
	Found bool         `json:"found"`
	Clip  *domain.Clip `json:"clip,omitempty"`
}

// handleClipAt returns the clip containing ?ms=.
func (s *Server) handleClipAt(w http.ResponseWriter, r *http.Request) {
	ms, err := queryInt64(r, "ms")
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	clip, ok, err := s.editor.ClipAt(timelineParam(r), ms)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	resp := ClipAtResponse{Found: ok}
	if ok {
		resp.Clip = &clip
	}
	response.Success(w, resp, s.logger)
}

// ImportClip is one clip in an import request.
type ImportClip struct {
	StartMs int64             `json:"start_ms" validate:"gte=0"`
	EndMs   int64             `json:"end_ms" validate:"gte=0"`
	Fields  map[string]string `json:"fields,omitempty"`
	Tags    []string          `json:"tags,omitempty"`
}

// ImportRequest bulk-adds clips.
type ImportRequest struct {
	Policy string       `json:"policy,omitempty" validate:"omitempty,import_policy"`
	Clips  []ImportClip `json:"clips" validate:"required,dive"`
}

// handleImport bulk-adds clips under a replace or merge policy.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	imported := make([]clips.ImportedClip, len(req.Clips))
	for i, c := range req.Clips {
		imported[i] = clips.ImportedClip{Start: c.StartMs, End: c.EndMs, Fields: c.Fields, Tags: c.Tags}
	}

	result, err := s.editor.Import(timelineParam(r), imported, clips.ImportPolicy(req.Policy))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}
