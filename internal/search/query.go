package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a lookup. Group and Tag are exact; either may be empty.
type Params struct {
	Group string
	Tag   string

	// Pagination
	Limit  int
	Offset int

	// IncludeFacets adds group and tag usage counts among the matches.
	IncludeFacets bool
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{Limit: 50}
}

// Result lists matching posts, most recently updated first.
type Result struct {
	Total   uint64       `json:"total"`
	TookMs  int64        `json:"took_ms"`
	PostIDs []string     `json:"post_ids"`
	Groups  []FacetCount `json:"groups,omitempty"`
	Tags    []FacetCount `json:"tags,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Find returns the posts matching params.
func (s *SearchIndex) Find(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultParams().Limit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	req.SortBy([]string{"-updated_at", "_id"})
	if params.IncludeFacets {
		req.AddFacet("groups", bleve.NewFacetRequest("groups", 20))
		req.AddFacet("tags", bleve.NewFacetRequest("tags", 20))
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Total:   res.Total,
		TookMs:  res.Took.Milliseconds(),
		PostIDs: make([]string, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		out.PostIDs = append(out.PostIDs, hit.ID)
	}
	if params.IncludeFacets {
		out.Groups = facetCounts(res, "groups")
		out.Tags = facetCounts(res, "tags")
	}
	return out, nil
}

func buildQuery(params Params) query.Query {
	term := func(field, value string) query.Query {
		q := bleve.NewTermQuery(value)
		q.SetField(field)
		return q
	}

	switch {
	case params.Group != "" && params.Tag != "":
		return term("pairs", PairTerm(params.Group, params.Tag))
	case params.Group != "":
		return term("groups", params.Group)
	case params.Tag != "":
		return term("tags", params.Tag)
	default:
		return bleve.NewMatchAllQuery()
	}
}

func facetCounts(res *bleve.SearchResult, name string) []FacetCount {
	facet, ok := res.Facets[name]
	if !ok || facet.Terms == nil {
		return nil
	}
	var out []FacetCount
	for _, term := range facet.Terms.Terms() {
		out = append(out, FacetCount{Value: term.Term, Count: term.Count})
	}
	return out
}
