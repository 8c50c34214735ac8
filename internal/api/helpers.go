package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/listenupapp/clipdeck/internal/errors"
)

// maxBodySize caps request bodies; imports of long subtitle files are the largest.
const maxBodySize = 8 << 20

// decodeJSON reads the request body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.Validation("request body is required")
		}
		return errors.Validationf("invalid request body: %v", err)
	}
	return s.validator.Validate(dst)
}

// queryInt64 parses an integer query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.ValidationWithDetails(name+" is required", map[string]string{name: "is required"})
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.ValidationWithDetails(name+" must be an integer", map[string]string{name: "must be an integer"})
	}
	return v, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

func timelineParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func clipParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}
