package api

import (
	"net/http"

	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/http/response"
)

// FlashcardRequest replaces a clip's flashcard.
type FlashcardRequest struct {
	Fields map[string]string      `json:"fields" validate:"required"`
	Tags   []string               `json:"tags"`
	Clozes []domain.ClozeDeletion `json:"cloze"`
}

// NeighborResponse answers previous/next queries.
type NeighborResponse struct {
	Found bool         `json:"found"`
	Clip  *domain.Clip `json:"clip,omitempty"`
}

func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	view, err := s.editor.Clip(clipParam(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, view, s.logger)
}

// handleDeleteClip removes a clip. Deleting an unknown clip succeeds.
func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	s.editor.DeleteClip(clipParam(r))
	response.NoContent(w)
}

func (s *Server) handlePreviousClip(w http.ResponseWriter, r *http.Request) {
	clip, ok, err := s.editor.Previous(clipParam(r))
	s.writeNeighbor(w, clip, ok, err)
}

func (s *Server) handleNextClip(w http.ResponseWriter, r *http.Request) {
	clip, ok, err := s.editor.Next(clipParam(r))
	s.writeNeighbor(w, clip, ok, err)
}

func (s *Server) writeNeighbor(w http.ResponseWriter, clip domain.Clip, ok bool, err error) {
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	resp := NeighborResponse{Found: ok}
	if ok {
		resp.Clip = &clip
	}
	response.Success(w, resp, s.logger)
}

func (s *Server) handleUpdateFlashcard(w http.ResponseWriter, r *http.Request) {
	var req FlashcardRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	card, err := s.editor.UpdateFlashcard(domain.Flashcard{
		ID:     clipParam(r),
		Fields: req.Fields,
		Tags:   req.Tags,
		Clozes: req.Clozes,
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, card, s.logger)
}
