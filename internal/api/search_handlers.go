package api

import (
	"net/http"
	"strings"

	"github.com/listenupapp/clipdeck/internal/http/response"
	"github.com/listenupapp/clipdeck/internal/search"
)

// maxSearchLimit caps page size.
const maxSearchLimit = 100

// handleSearch runs a flashcard text query.
//
//	GET /api/v1/search?q=&timeline=&tags=a,b&limit=&offset=&sort=relevance|position
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		response.Error(w, http.StatusServiceUnavailable, "search is disabled", s.logger)
		return
	}

	q := r.URL.Query()
	params := search.DefaultSearchParams()
	params.Query = q.Get("q")
	params.TimelineID = q.Get("timeline")
	if tags := q.Get("tags"); tags != "" {
		params.Tags = strings.Split(tags, ",")
	}
	params.Limit = min(max(queryInt(r, "limit", params.Limit), 1), maxSearchLimit)
	params.Offset = max(queryInt(r, "offset", 0), 0)
	if sortBy := q.Get("sort"); sortBy != "" {
		params.SortBy = sortBy
	}

	result, err := s.search.Search(r.Context(), params)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}
