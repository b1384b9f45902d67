package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/tagsync/internal/search"
)

func (s *Server) registerPostRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "findPosts",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts",
		Summary:     "Find posts",
		Description: "Returns post IDs carrying a group, a tag, or a tag inside a group",
		Tags:        []string{"Posts"},
	}, s.handleFindPosts)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPost",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Get post groups",
		Description: "Returns the stored groups of a post",
		Tags:        []string{"Posts"},
	}, s.handleGetPost)

	huma.Register(s.api, huma.Operation{
		OperationID: "savePost",
		Method:      http.MethodPut,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Save tag string",
		Description: "Parses a grouped tag string and stores its groups. Returns the flat tag string for the site field.",
		Tags:        []string{"Posts"},
	}, s.handleSavePost)

	huma.Register(s.api, huma.Operation{
		OperationID: "deletePost",
		Method:      http.MethodDelete,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Delete post groups",
		Description: "Removes the stored groups of a post",
		Tags:        []string{"Posts"},
	}, s.handleDeletePost)

	huma.Register(s.api, huma.Operation{
		OperationID: "loadPost",
		Method:      http.MethodPost,
		Path:        "/api/v1/posts/{id}/load",
		Summary:     "Load tag string for editing",
		Description: "Prunes groups to the tags still on the post and rebuilds the grouped tag string",
		Tags:        []string{"Posts"},
	}, s.handleLoadPost)

	huma.Register(s.api, huma.Operation{
		OperationID: "togglePostTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/posts/{id}/toggle",
		Summary:     "Toggle a tag in a group",
		Description: "Adds or removes one tag of one group",
		Tags:        []string{"Posts"},
	}, s.handleTogglePost)
}

// === DTOs ===

// PostIDInput contains the post path parameter.
type PostIDInput struct {
	ID string `path:"id" pattern:"^[0-9]+$" doc:"Post ID"`
}

// PostOutput wraps a post for Huma.
type PostOutput struct {
	Body PostResponse
}

// SavePostInput wraps the save request for Huma.
type SavePostInput struct {
	ID   string `path:"id" pattern:"^[0-9]+$" doc:"Post ID"`
	Body TextRequest
}

// SaveResponse is the outcome of a save.
type SaveResponse struct {
	Record *PostResponse `json:"record,omitempty" doc:"Stored groups, absent when the text had none"`
	Text   string        `json:"text" doc:"Flat tag string for the site field"`
}

// SaveOutput wraps the save response for Huma.
type SaveOutput struct {
	Body SaveResponse
}

// LoadPostInput wraps the load request for Huma.
type LoadPostInput struct {
	ID   string `path:"id" pattern:"^[0-9]+$" doc:"Post ID"`
	Body TextRequest
}

// LoadResponse is a tag string rebuilt for editing.
type LoadResponse struct {
	Record *PostResponse `json:"record,omitempty" doc:"Stored groups after pruning"`
	Text   string        `json:"text" doc:"Grouped tag string"`
	Pruned bool          `json:"pruned" doc:"Whether groups lost tags no longer on the post"`
}

// LoadOutput wraps the load response for Huma.
type LoadOutput struct {
	Body LoadResponse
}

// ToggleRequest is the request body for toggling a tag.
type ToggleRequest struct {
	Group string `json:"group" validate:"required,groupname" doc:"Group name"`
	Tag   string `json:"tag" validate:"required,tagname" doc:"Tag"`
	On    bool   `json:"on" doc:"Add when true, remove when false"`
}

// ToggleInput wraps the toggle request for Huma.
type ToggleInput struct {
	ID   string `path:"id" pattern:"^[0-9]+$" doc:"Post ID"`
	Body ToggleRequest
}

// ToggleResponse is the record after a toggle.
type ToggleResponse struct {
	Record *PostResponse `json:"record,omitempty" doc:"Stored groups, absent when none are left"`
}

// ToggleOutput wraps the toggle response for Huma.
type ToggleOutput struct {
	Body ToggleResponse
}

// FindPostsInput contains parameters for finding posts.
type FindPostsInput struct {
	Group  string `query:"group" doc:"Group name"`
	Tag    string `query:"tag" doc:"Tag"`
	Limit  int    `query:"limit" validate:"omitempty,gte=1,lte=500" doc:"Max results (default 50)"`
	Offset int    `query:"offset" validate:"omitempty,gte=0" doc:"Results to skip"`
	Facets bool   `query:"facets" doc:"Include group and tag counts"`
}

// FindPostsResponse contains matching posts.
type FindPostsResponse struct {
	Total   uint64              `json:"total" doc:"Total matches"`
	TookMs  int64               `json:"took_ms" doc:"Query time in milliseconds"`
	PostIDs []string            `json:"post_ids" doc:"Matching post IDs, most recently edited first"`
	Groups  []search.FacetCount `json:"groups,omitempty" doc:"Group counts among matches"`
	Tags    []search.FacetCount `json:"tags,omitempty" doc:"Tag counts among matches"`
}

// FindPostsOutput wraps the find response for Huma.
type FindPostsOutput struct {
	Body FindPostsResponse
}

// === Handlers ===

func (s *Server) handleGetPost(ctx context.Context, input *PostIDInput) (*PostOutput, error) {
	rec, err := s.services.Tags.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &PostOutput{Body: *toPostResponse(rec)}, nil
}

func (s *Server) handleSavePost(ctx context.Context, input *SavePostInput) (*SaveOutput, error) {
	res, err := s.services.Tags.Save(ctx, input.ID, input.Body.Text)
	if err != nil {
		return nil, err
	}
	return &SaveOutput{
		Body: SaveResponse{
			Record: toPostResponse(res.Record),
			Text:   res.Text,
		},
	}, nil
}

func (s *Server) handleDeletePost(ctx context.Context, input *PostIDInput) (*MessageOutput, error) {
	if err := s.services.Tags.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Post groups deleted"}}, nil
}

func (s *Server) handleLoadPost(ctx context.Context, input *LoadPostInput) (*LoadOutput, error) {
	res, err := s.services.Tags.Load(ctx, input.ID, input.Body.Text)
	if err != nil {
		return nil, err
	}
	return &LoadOutput{
		Body: LoadResponse{
			Record: toPostResponse(res.Record),
			Text:   res.Text,
			Pruned: res.Pruned,
		},
	}, nil
}

func (s *Server) handleTogglePost(ctx context.Context, input *ToggleInput) (*ToggleOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	rec, err := s.services.Tags.Toggle(ctx, input.ID, input.Body.Group, input.Body.Tag, input.Body.On)
	if err != nil {
		return nil, err
	}
	return &ToggleOutput{Body: ToggleResponse{Record: toPostResponse(rec)}}, nil
}

func (s *Server) handleFindPosts(ctx context.Context, input *FindPostsInput) (*FindPostsOutput, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	params := search.DefaultParams()
	params.Group = input.Group
	params.Tag = input.Tag
	params.Offset = input.Offset
	params.IncludeFacets = input.Facets
	if input.Limit > 0 {
		params.Limit = input.Limit
	}

	res, err := s.services.Tags.Find(ctx, params)
	if err != nil {
		return nil, err
	}

	ids := res.PostIDs
	if ids == nil {
		ids = []string{}
	}
	return &FindPostsOutput{
		Body: FindPostsResponse{
			Total:   res.Total,
			TookMs:  res.TookMs,
			PostIDs: ids,
			Groups:  res.Groups,
			Tags:    res.Tags,
		},
	}, nil
}
