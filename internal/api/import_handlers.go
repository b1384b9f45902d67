package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/tagsync/internal/importer"
)

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "startImport",
		Method:      http.MethodPost,
		Path:        "/api/v1/imports",
		Summary:     "Import a document",
		Description: "Fetches another remote document, applies new records and returns conflicts to resolve",
		Tags:        []string{"Import"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleStartImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "getImport",
		Method:      http.MethodGet,
		Path:        "/api/v1/imports/{id}",
		Summary:     "Get import session",
		Description: "Returns the unresolved conflicts of an import",
		Tags:        []string{"Import"},
	}, s.handleGetImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "resolveImport",
		Method:      http.MethodPost,
		Path:        "/api/v1/imports/{id}/resolve",
		Summary:     "Resolve import conflicts",
		Description: "Applies one policy to every conflict of the session",
		Tags:        []string{"Import"},
	}, s.handleResolveImport)
}

// === DTOs ===

// StartImportRequest is the request body for starting an import.
type StartImportRequest struct {
	DocumentID string `json:"document_id" validate:"required,max=128" doc:"Remote document to import"`
}

// StartImportInput wraps the request for Huma.
type StartImportInput struct {
	Body StartImportRequest
}

// ConflictResponse is one post that differs between the two sides.
type ConflictResponse struct {
	PostID string        `json:"post_id" doc:"Post ID"`
	Local  *PostResponse `json:"local,omitempty" doc:"Local record"`
	Remote *PostResponse `json:"remote" doc:"Imported record"`
}

// ImportResultResponse counts applied records.
type ImportResultResponse struct {
	Imported   int                  `json:"imported" doc:"Records written"`
	Skipped    int                  `json:"skipped" doc:"Records left unchanged"`
	Errors     []importer.ItemError `json:"errors,omitempty" doc:"Records that failed"`
	DurationMs int64                `json:"duration_ms" doc:"Duration"`
}

// PreviewResponse is the outcome of starting an import.
type PreviewResponse struct {
	SessionID  string               `json:"session_id,omitempty" doc:"Session to resolve; absent without conflicts"`
	DocumentID string               `json:"document_id" doc:"Imported document"`
	New        []string             `json:"new" doc:"Posts imported right away"`
	Same       []string             `json:"same" doc:"Posts already equal"`
	Conflicts  []ConflictResponse   `json:"conflicts" doc:"Posts needing a policy"`
	Applied    ImportResultResponse `json:"applied" doc:"Records applied so far"`
}

// PreviewOutput wraps the preview for Huma.
type PreviewOutput struct {
	Body PreviewResponse
}

// ImportIDInput contains the session path parameter.
type ImportIDInput struct {
	ID string `path:"id" doc:"Import session ID"`
}

// SessionResponse is a pending import.
type SessionResponse struct {
	ID         string             `json:"id" doc:"Session ID"`
	DocumentID string             `json:"document_id" doc:"Imported document"`
	CreatedAt  time.Time          `json:"created_at" doc:"Creation time"`
	Conflicts  []ConflictResponse `json:"conflicts" doc:"Posts needing a policy"`
}

// SessionOutput wraps the session for Huma.
type SessionOutput struct {
	Body SessionResponse
}

// ResolveRequest is the request body for resolving conflicts.
type ResolveRequest struct {
	Policy string `json:"policy" enum:"KEEP,OVERWRITE,MERGE" doc:"KEEP local, OVERWRITE with remote, or MERGE tags per group"`
}

// ResolveInput wraps the resolve request for Huma.
type ResolveInput struct {
	ID   string `path:"id" doc:"Import session ID"`
	Body ResolveRequest
}

// ResolveOutput wraps the result for Huma.
type ResolveOutput struct {
	Body ImportResultResponse
}

// === Handlers ===

func (s *Server) handleStartImport(ctx context.Context, input *StartImportInput) (*PreviewOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	p, err := s.services.Imports.Preview(ctx, input.Body.DocumentID)
	if err != nil {
		return nil, err
	}

	return &PreviewOutput{
		Body: PreviewResponse{
			SessionID:  p.SessionID,
			DocumentID: p.DocumentID,
			New:        nonNil(p.New),
			Same:       nonNil(p.Same),
			Conflicts:  toConflictResponses(p.Conflicts),
			Applied:    toImportResultResponse(&p.Applied),
		},
	}, nil
}

func (s *Server) handleGetImport(ctx context.Context, input *ImportIDInput) (*SessionOutput, error) {
	sess, err := s.services.Imports.Session(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{
		Body: SessionResponse{
			ID:         sess.ID,
			DocumentID: sess.DocumentID,
			CreatedAt:  sess.CreatedAt,
			Conflicts:  toConflictResponses(sess.Conflicts),
		},
	}, nil
}

func (s *Server) handleResolveImport(ctx context.Context, input *ResolveInput) (*ResolveOutput, error) {
	res, err := s.services.Imports.Resolve(ctx, input.ID, importer.Policy(input.Body.Policy))
	if err != nil {
		return nil, err
	}
	return &ResolveOutput{Body: toImportResultResponse(res)}, nil
}

func toConflictResponses(diffs []importer.DiffResult) []ConflictResponse {
	out := make([]ConflictResponse, 0, len(diffs))
	for _, d := range diffs {
		out = append(out, ConflictResponse{
			PostID: d.PostID,
			Local:  toPostResponse(d.Local),
			Remote: toPostResponse(d.Remote),
		})
	}
	return out
}

func toImportResultResponse(r *importer.Result) ImportResultResponse {
	return ImportResultResponse{
		Imported:   r.Imported,
		Skipped:    r.Skipped,
		Errors:     r.Errors,
		DurationMs: r.Duration.Milliseconds(),
	}
}
