package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/tagsync/internal/service"
	"github.com/listenupapp/tagsync/internal/settings"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getRemoteSettings",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings/remote",
		Summary:     "Get remote connection",
		Description: "Returns whether a token is stored and which document is used. The token is never returned.",
		Tags:        []string{"Settings"},
	}, s.handleGetRemoteSettings)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateRemoteSettings",
		Method:      http.MethodPut,
		Path:        "/api/v1/settings/remote",
		Summary:     "Update remote connection",
		Description: "Stores the access token and document ID. An empty token disconnects.",
		Tags:        []string{"Settings"},
	}, s.handleUpdateRemoteSettings)
}

// RemoteSettingsRequest is the request body for updating the connection.
// Omitted fields are kept.
type RemoteSettingsRequest struct {
	Token      *string `json:"token,omitempty" doc:"Access token; empty disconnects"`
	DocumentID *string `json:"document_id,omitempty" validate:"omitempty,max=128" doc:"Remote document ID"`
}

// UpdateRemoteSettingsInput wraps the request for Huma.
type UpdateRemoteSettingsInput struct {
	Body RemoteSettingsRequest
}

// RemoteSettingsOutput wraps the connection status for Huma.
type RemoteSettingsOutput struct {
	Body settings.Status
}

func (s *Server) handleGetRemoteSettings(ctx context.Context, _ *struct{}) (*RemoteSettingsOutput, error) {
	status, err := s.services.Settings.GetRemote(ctx)
	if err != nil {
		return nil, err
	}
	return &RemoteSettingsOutput{Body: status}, nil
}

func (s *Server) handleUpdateRemoteSettings(ctx context.Context, input *UpdateRemoteSettingsInput) (*RemoteSettingsOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	status, err := s.services.Settings.UpdateRemote(ctx, &service.RemoteUpdate{
		Token:      input.Body.Token,
		DocumentID: input.Body.DocumentID,
	})
	if err != nil {
		return nil, err
	}
	return &RemoteSettingsOutput{Body: status}, nil
}
