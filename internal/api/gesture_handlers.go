package api

import (
	"net/http"

	"github.com/listenupapp/clipdeck/internal/gesture"
	"github.com/listenupapp/clipdeck/internal/http/response"
	"github.com/listenupapp/clipdeck/internal/timescale"
)

// PointerRequest is one pointer sample from the rendering client.
type PointerRequest struct {
	ClientX float64 `json:"client_x"`
	// TimeMs is the client's event timestamp; only differences matter.
	TimeMs   int64              `json:"time_ms" validate:"gte=0"`
	Viewport timescale.Viewport `json:"viewport"`
}

func (p PointerRequest) event() gesture.PointerEvent {
	return gesture.PointerEvent{ClientX: p.ClientX, TimeMs: p.TimeMs}
}

// GestureStateResponse reports the machine state after pointer-down.
type GestureStateResponse struct {
	State gesture.State `json:"state"`
}

// PreviewResponse carries the pending clip while a gesture is in flight.
type PreviewResponse struct {
	Active  bool             `json:"active"`
	Preview *gesture.Preview `json:"preview,omitempty"`
}

func previewResponse(p gesture.Preview, ok bool) PreviewResponse {
	if !ok {
		return PreviewResponse{}
	}
	return PreviewResponse{Active: true, Preview: &p}
}

func (s *Server) handlePointerDown(w http.ResponseWriter, r *http.Request) {
	var req PointerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	state, err := s.editor.PointerDown(timelineParam(r), req.event(), req.Viewport)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, GestureStateResponse{State: state}, s.logger)
}

func (s *Server) handlePointerMove(w http.ResponseWriter, r *http.Request) {
	var req PointerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	preview, ok, err := s.editor.PointerMove(timelineParam(r), req.event(), req.Viewport)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, previewResponse(preview, ok), s.logger)
}

func (s *Server) handlePointerUp(w http.ResponseWriter, r *http.Request) {
	var req PointerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	outcome, err := s.editor.PointerUp(timelineParam(r), req.event(), req.Viewport)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, outcome, s.logger)
}

func (s *Server) handlePointerCancel(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.editor.CancelGesture(timelineParam(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, outcome, s.logger)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, ok, err := s.editor.Preview(timelineParam(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, previewResponse(preview, ok), s.logger)
}
