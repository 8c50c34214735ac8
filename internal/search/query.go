package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query      string   // User's search query
	TimelineID string   // Restrict to one timeline (empty = all)
	Tags       []string // Every tag must be present

	// Pagination
	Limit  int
	Offset int

	// SortBy is "relevance" (default) or "position".
	SortBy string

	Highlight bool // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:     20,
		Offset:    0,
		SortBy:    "relevance",
		Highlight: true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single matching clip.
type SearchHit struct {
	ID            string            `json:"id"`
	TimelineID    string            `json:"timeline_id"`
	Score         float64           `json:"score"`
	Transcription string            `json:"transcription"`
	Tags          []string          `json:"tags,omitempty"`
	StartMs       int64             `json:"start_ms"`
	EndMs         int64             `json:"end_ms"`
	Highlights    map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)

	switch params.SortBy {
	case "position":
		searchRequest.SortBy([]string{"timeline_id", "start_ms"})
	default:
		searchRequest.SortBy([]string{"-_score", "start_ms"})
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("transcription")
	}

	searchRequest.Fields = []string{"timeline_id", "transcription", "tags", "start_ms", "end_ms"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if tl, ok := hit.Fields["timeline_id"].(string); ok {
			searchHit.TimelineID = tl
		}
		if tr, ok := hit.Fields["transcription"].(string); ok {
			searchHit.Transcription = tr
		}
		// Bleve returns a bare string for single-valued array fields.
		switch tags := hit.Fields["tags"].(type) {
		case string:
			searchHit.Tags = []string{tags}
		case []any:
			for _, tag := range tags {
				if s, ok := tag.(string); ok {
					searchHit.Tags = append(searchHit.Tags, s)
				}
			}
		}
		if v, ok := hit.Fields["start_ms"].(float64); ok {
			searchHit.StartMs = int64(v)
		}
		if v, ok := hit.Fields["end_ms"].(float64); ok {
			searchHit.EndMs = int64(v)
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		textQueries := []query.Query{}

		transcriptionMatch := bleve.NewMatchQuery(q)
		transcriptionMatch.SetField("transcription")
		transcriptionMatch.SetBoost(3.0)
		textQueries = append(textQueries, transcriptionMatch)

		notesMatch := bleve.NewMatchQuery(q)
		notesMatch.SetField("notes")
		textQueries = append(textQueries, notesMatch)

		// Typo tolerance on single words only; fuzzy matching works per term.
		if !strings.ContainsAny(q, " \t") {
			fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(q))
			fuzzyQuery.SetFuzziness(1)
			fuzzyQuery.SetField("transcription")
			fuzzyQuery.SetBoost(0.8)
			textQueries = append(textQueries, fuzzyQuery)

			// Prefix query for autocomplete (minimum 2 chars)
			if len(q) >= 2 {
				prefixQuery := bleve.NewPrefixQuery(strings.ToLower(q))
				prefixQuery.SetField("transcription")
				prefixQuery.SetBoost(0.5)
				textQueries = append(textQueries, prefixQuery)
			}
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.TimelineID != "" {
		tq := bleve.NewTermQuery(params.TimelineID)
		tq.SetField("timeline_id")
		queries = append(queries, tq)
	}

	for _, tag := range params.Tags {
		tq := bleve.NewTermQuery(tag)
		tq.SetField("tags")
		queries = append(queries, tq)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// timelineDocIDs returns the ids of every document in a timeline.
// Caller must hold s.mu.
func (s *SearchIndex) timelineDocIDs(ctx context.Context, timelineID string) ([]string, error) {
	tq := bleve.NewTermQuery(timelineID)
	tq.SetField("timeline_id")

	var ids []string
	const page = 1000
	for from := 0; ; from += page {
		req := bleve.NewSearchRequestOptions(tq, page, from, false)
		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("list timeline documents: %w", err)
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < page {
			return ids, nil
		}
	}
}

// DeleteTimeline removes every document belonging to a timeline.
func (s *SearchIndex) DeleteTimeline(ctx context.Context, timelineID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.timelineDocIDs(ctx, timelineID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := s.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("delete timeline documents: %w", err)
	}
	return len(ids), nil
}
