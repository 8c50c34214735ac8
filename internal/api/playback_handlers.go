package api

import (
	"net/http"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/http/response"
	"github.com/listenupapp/clipdeck/internal/timescale"
)

// SelectionRequest replaces the selection.
type SelectionRequest struct {
	Kind   domain.SelectionKind `json:"kind" validate:"required,oneof=none clip position"`
	ClipID string               `json:"clip_id,omitempty" validate:"required_if=Kind clip"`
	TimeMs int64                `json:"time_ms" validate:"gte=0"`
}

// PlaybackRequest is one play-head sample.
type PlaybackRequest struct {
	PositionMs int64 `json:"position_ms" validate:"gte=0"`
	Seeking    bool  `json:"seeking"`
}

// LoopRequest turns looping over the selected clip on or off.
type LoopRequest struct {
	Loop bool `json:"loop"`
}

// ViewportRequest records the visible window.
type ViewportRequest struct {
	Viewport timescale.Viewport `json:"viewport"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.editor.Session(timelineParam(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, state, s.logger)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	state, err := s.editor.Session(timelineParam(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, state.Selection, s.logger)
}

func (s *Server) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	sel, err := s.editor.Select(timelineParam(r), domain.Selection{Kind: req.Kind, ClipID: req.ClipID, TimeMs: req.TimeMs})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, sel, s.logger)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	var req PlaybackRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	tick, err := s.editor.UpdatePlayback(timelineParam(r), req.PositionMs, req.Seeking)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, tick, s.logger)
}

func (s *Server) handleSetLoop(w http.ResponseWriter, r *http.Request) {
	var req LoopRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	timelineID := timelineParam(r)
	if err := s.editor.SetLoop(timelineID, req.Loop); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.handleGetSession(w, r)
}

func (s *Server) handleSetViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if err := s.editor.SetViewport(timelineParam(r), req.Viewport); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.handleGetSession(w, r)
}
