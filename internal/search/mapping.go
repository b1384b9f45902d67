package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for tag documents.
//
// Group names and tags are matched exactly, so every text field uses the
// keyword analyzer. Tags are case sensitive.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()

	postIDFieldMapping := bleve.NewTextFieldMapping()
	postIDFieldMapping.Analyzer = keyword.Name
	postIDFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("post_id", postIDFieldMapping)

	// Groups - faceted to list group usage
	groupsFieldMapping := bleve.NewTextFieldMapping()
	groupsFieldMapping.Analyzer = keyword.Name
	groupsFieldMapping.Store = true
	groupsFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("groups", groupsFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	tagsFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	pairsFieldMapping := bleve.NewTextFieldMapping()
	pairsFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("pairs", pairsFieldMapping)

	updatedAtFieldMapping := bleve.NewNumericFieldMapping()
	updatedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("updated_at", updatedAtFieldMapping)

	importedFieldMapping := bleve.NewBooleanFieldMapping()
	docMapping.AddFieldMappingsAt("is_imported", importedFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
