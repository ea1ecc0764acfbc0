package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/asyncrace/internal/domain/model"
)

// Sentinel kinds for client errors.
var (
	ErrInvalidBaseURL = errors.New("invalid backend url")
	ErrBadResponse    = errors.New("malformed backend response")
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func newStatusError(method, path string, code int, msg string) *StatusError {
	return &StatusError{Method: method, Path: path, Code: code, Message: msg}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

// Unwrap maps statuses onto domain sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusConflict:
		return model.ErrConflict
	}
	return nil
}

func asStatus(err error, target **StatusError) bool {
	return err != nil && errors.As(err, target)
}
