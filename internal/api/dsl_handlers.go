package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/tagsync/internal/dsl"
)

func (s *Server) registerDSLRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "parseTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/dsl/parse",
		Summary:     "Parse tag string",
		Description: "Splits a grouped tag string into groups and loose tags",
		Tags:        []string{"DSL"},
	}, s.handleParse)

	huma.Register(s.api, huma.Operation{
		OperationID: "flattenTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/dsl/flatten",
		Summary:     "Flatten tag string",
		Description: "Returns the plain space separated tag string",
		Tags:        []string{"DSL"},
	}, s.handleFlatten)

	huma.Register(s.api, huma.Operation{
		OperationID: "reconstructTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/dsl/reconstruct",
		Summary:     "Reconstruct tag string",
		Description: "Rebuilds a grouped tag string from flat tags and groups",
		Tags:        []string{"DSL"},
	}, s.handleReconstruct)
}

// === DTOs ===

// TextRequest carries a tag string.
type TextRequest struct {
	Text string `json:"text" doc:"Tag string"`
}

// TextInput wraps a tag string request for Huma.
type TextInput struct {
	Body TextRequest
}

// TextResponse carries a tag string.
type TextResponse struct {
	Text string `json:"text" doc:"Tag string"`
}

// TextOutput wraps a tag string response for Huma.
type TextOutput struct {
	Body TextResponse
}

// ParseResponse is a parsed tag string.
type ParseResponse struct {
	Groups    []GroupDTO `json:"groups" doc:"Groups in order of first appearance"`
	LooseTags []string   `json:"loose_tags" doc:"Tags outside any group"`
	Tags      []string   `json:"tags" doc:"Every tag without duplicates"`
	Flat      string     `json:"flat" doc:"Flattened tag string"`
}

// ParseOutput wraps the parse response for Huma.
type ParseOutput struct {
	Body ParseResponse
}

// ReconstructRequest is the request body for reconstructing a tag string.
type ReconstructRequest struct {
	Text   string     `json:"text" doc:"Flat tag string currently on the post"`
	Groups []GroupDTO `json:"groups" validate:"dive" doc:"Stored groups"`
}

// ReconstructInput wraps the reconstruct request for Huma.
type ReconstructInput struct {
	Body ReconstructRequest
}

// === Handlers ===

func (s *Server) handleParse(_ context.Context, input *TextInput) (*ParseOutput, error) {
	res := dsl.Parse(input.Body.Text)

	loose := res.LooseTags
	if loose == nil {
		loose = []string{}
	}
	tags := dsl.Tags(input.Body.Text)
	if tags == nil {
		tags = []string{}
	}

	return &ParseOutput{
		Body: ParseResponse{
			Groups:    toGroupDTOs(res.Groups),
			LooseTags: loose,
			Tags:      tags,
			Flat:      dsl.Flatten(input.Body.Text),
		},
	}, nil
}

func (s *Server) handleFlatten(_ context.Context, input *TextInput) (*TextOutput, error) {
	return &TextOutput{Body: TextResponse{Text: dsl.Flatten(input.Body.Text)}}, nil
}

func (s *Server) handleReconstruct(_ context.Context, input *ReconstructInput) (*TextOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	text := dsl.Reconstruct(input.Body.Text, fromGroupDTOs(input.Body.Groups))
	return &TextOutput{Body: TextResponse{Text: text}}, nil
}
