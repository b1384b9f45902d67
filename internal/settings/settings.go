// Package settings stores the remote sync credentials.
package settings

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/oauth2"

	"github.com/listenupapp/tagsync/internal/kv"
)

const remoteKey = "settings:remote"

// ErrNoToken is returned by Token when no access token is configured.
var ErrNoToken = errors.New("no remote access token configured")

// Credentials are what sync needs to reach the remote document.
type Credentials struct {
	Token      string
	DocumentID string
}

// Configured reports whether both the token and the document id are set.
func (c Credentials) Configured() bool {
	return c.Token != "" && c.DocumentID != ""
}

// Status is the non-secret view of the credentials.
type Status struct {
	HasToken   bool      `json:"has_token"`
	DocumentID string    `json:"document_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

type stored struct {
	SealedToken string    `json:"sealed_token,omitempty"`
	DocumentID  string    `json:"document_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store keeps credentials in the key-value backend. The token is sealed with
// XChaCha20-Poly1305.
type Store struct {
	kv     kv.Store
	aead   cipher.AEAD
	logger *slog.Logger

	mu sync.Mutex
}

// NewStore creates a settings store. key must be 32 bytes.
func NewStore(backend kv.Store, key []byte, logger *slog.Logger) (*Store, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("settings cipher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: backend, aead: aead, logger: logger}, nil
}

// Credentials returns the stored credentials. Missing values are empty.
func (s *Store) Credentials(ctx context.Context) (Credentials, error) {
	st, err := s.load(ctx)
	if err != nil {
		return Credentials{}, err
	}
	token, err := s.open(st.SealedToken)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Token: token, DocumentID: st.DocumentID}, nil
}

// Status returns the credentials without the token.
func (s *Store) Status(ctx context.Context) (Status, error) {
	st, err := s.load(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{HasToken: st.SealedToken != "", DocumentID: st.DocumentID, UpdatedAt: st.UpdatedAt}, nil
}

// SetToken stores the access token. An empty token clears it.
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.update(ctx, func(st *stored) error {
		if token == "" {
			st.SealedToken = ""
			return nil
		}
		sealed, err := s.seal(token)
		if err != nil {
			return err
		}
		st.SealedToken = sealed
		return nil
	})
}

// SetDocumentID stores the remote document id. An empty id clears it.
func (s *Store) SetDocumentID(ctx context.Context, documentID string) error {
	return s.update(ctx, func(st *stored) error {
		st.DocumentID = documentID
		return nil
	})
}

// Clear removes all credentials.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, remoteKey)
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	creds, err := s.Credentials(context.Background())
	if err != nil {
		return nil, err
	}
	if creds.Token == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"}, nil
}

func (s *Store) load(ctx context.Context) (stored, error) {
	var st stored
	if _, err := kv.GetJSON(ctx, s.kv, remoteKey, &st); err != nil {
		return stored{}, fmt.Errorf("load remote settings: %w", err)
	}
	return st, nil
}

func (s *Store) update(ctx context.Context, fn func(*stored) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	st.UpdatedAt = time.Now().UTC()
	if err := kv.SetJSON(ctx, s.kv, remoteKey, st); err != nil {
		return fmt.Errorf("save remote settings: %w", err)
	}
	s.logger.Info("remote settings updated", "has_token", st.SealedToken != "", "document_id", st.DocumentID)
	return nil
}

func (s *Store) seal(plain string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plain), []byte(remoteKey))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Store) open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed token: %w", err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", errors.New("sealed token too short")
	}
	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, []byte(remoteKey))
	if err != nil {
		return "", fmt.Errorf("open sealed token: %w", err)
	}
	return string(plain), nil
}
