package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for clip documents.
//
// Flashcards hold text in whatever language is being studied, so text fields
// use the language-neutral standard analyzer rather than an English stemmer.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	// Transcription - primary search target
	transcriptionFieldMapping := bleve.NewTextFieldMapping()
	transcriptionFieldMapping.Analyzer = standard.Name
	transcriptionFieldMapping.Store = true
	transcriptionFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("transcription", transcriptionFieldMapping)

	// Notes - other flashcard fields, searchable but not stored
	notesFieldMapping := bleve.NewTextFieldMapping()
	notesFieldMapping.Analyzer = standard.Name
	notesFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("notes", notesFieldMapping)

	// --- Keyword fields (exact match) ---

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	timelineFieldMapping := bleve.NewTextFieldMapping()
	timelineFieldMapping.Analyzer = keyword.Name
	timelineFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("timeline_id", timelineFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	tagsFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	// --- Numeric fields (sorting) ---

	startFieldMapping := bleve.NewNumericFieldMapping()
	startFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("start_ms", startFieldMapping)

	endFieldMapping := bleve.NewNumericFieldMapping()
	endFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("end_ms", endFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
