package remote

import (
	"context"
	"errors"
	"fmt"

	domainerrors "github.com/listenupapp/tagsync/internal/errors"
)

// Sentinel errors for remote store operations.
var (
	ErrNotFound     = errors.New("remote: document not found")
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrRateLimited  = errors.New("remote: rate limited by server")
	ErrBadRequest   = errors.New("remote: bad request")
	ErrServer       = errors.New("remote: server error")
	ErrTooLarge     = errors.New("remote: response too large")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op         string // Operation: "get", "update", "create", "raw"
	DocumentID string // If applicable
	Err        error
}

func (e *Error) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("remote %s [%s]: %v", e.Op, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, documentID string, err error) error {
	return &Error{
		Op:         op,
		DocumentID: documentID,
		Err:        err,
	}
}

// DomainError converts a remote failure into a coded domain error so the
// API layer can map it to a status.
func DomainError(err error, msg string) error {
	if err == nil {
		return nil
	}
	code := domainerrors.CodeRemoteFailure
	switch {
	case errors.Is(err, ErrNotFound):
		code = domainerrors.CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		code = domainerrors.CodeUnauthorized
	case errors.Is(err, ErrRateLimited):
		code = domainerrors.CodeRateLimited
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return domainerrors.Wrap(err, code, msg)
}
