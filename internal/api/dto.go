package api

import (
	"time"

	"github.com/listenupapp/tagsync/internal/domain"
)

// GroupDTO is one named group of tags.
type GroupDTO struct {
	Name string   `json:"name" validate:"groupname" doc:"Group name"`
	Tags []string `json:"tags" validate:"dive,tagname" doc:"Tags in display order"`
}

// PostResponse is the grouping state of one post.
type PostResponse struct {
	PostID     string     `json:"post_id" doc:"Post ID"`
	UpdatedAt  time.Time  `json:"updated_at" doc:"Time of the last local write"`
	IsImported bool       `json:"is_imported" doc:"Record came from an import and has not been edited since"`
	Groups     []GroupDTO `json:"groups" doc:"Groups in display order"`
}

func toGroupDTOs(groups domain.GroupMap) []GroupDTO {
	out := make([]GroupDTO, 0, groups.Len())
	for _, g := range groups.Groups() {
		out = append(out, GroupDTO{Name: g.Name, Tags: g.Tags})
	}
	return out
}

func fromGroupDTOs(groups []GroupDTO) domain.GroupMap {
	var out domain.GroupMap
	for _, g := range groups {
		out.Add(g.Name, g.Tags...)
	}
	return out
}

func toPostResponse(rec *domain.PostTagRecord) *PostResponse {
	if rec == nil {
		return nil
	}
	return &PostResponse{
		PostID:     rec.PostID,
		UpdatedAt:  rec.UpdatedTime(),
		IsImported: rec.IsImported,
		Groups:     toGroupDTOs(rec.Groups),
	}
}

// MessageResponse is a plain confirmation.
type MessageResponse struct {
	Message string `json:"message" doc:"Confirmation message"`
}

// MessageOutput wraps a confirmation for Huma.
type MessageOutput struct {
	Body MessageResponse
}
