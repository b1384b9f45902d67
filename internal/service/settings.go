package service

import (
	"context"
	"log/slog"
	"strings"

	domainerrors "github.com/listenupapp/tagsync/internal/errors"
	"github.com/listenupapp/tagsync/internal/settings"
)

// SettingsService manages the remote connection.
type SettingsService struct {
	store  *settings.Store
	logger *slog.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store *settings.Store, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		logger: logger,
	}
}

// RemoteUpdate contains fields that can be updated. Nil fields are kept.
type RemoteUpdate struct {
	Token      *string
	DocumentID *string
}

// GetRemote returns the connection status. The token itself is never
// returned.
func (s *SettingsService) GetRemote(ctx context.Context) (settings.Status, error) {
	return s.store.Status(ctx)
}

// UpdateRemote stores new credentials. An empty token disconnects.
func (s *SettingsService) UpdateRemote(ctx context.Context, update *RemoteUpdate) (settings.Status, error) {
	if err := ctx.Err(); err != nil {
		return settings.Status{}, err
	}

	if update.Token != nil {
		token := strings.TrimSpace(*update.Token)
		if token == "" {
			if err := s.store.Clear(ctx); err != nil {
				return settings.Status{}, err
			}
			s.logger.Info("remote disconnected")
			return s.store.Status(ctx)
		}
		if err := s.store.SetToken(ctx, token); err != nil {
			return settings.Status{}, err
		}
	}

	if update.DocumentID != nil {
		docID := strings.TrimSpace(*update.DocumentID)
		if strings.ContainsAny(docID, "/?# ") {
			return settings.Status{}, domainerrors.Validationf("invalid document id %q", docID)
		}
		if err := s.store.SetDocumentID(ctx, docID); err != nil {
			return settings.Status{}, err
		}
	}

	status, err := s.store.Status(ctx)
	if err != nil {
		return settings.Status{}, err
	}
	s.logger.Info("remote settings updated", "has_token", status.HasToken, "document_id", status.DocumentID)
	return status, nil
}
