package pubflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrContentNotFound indicates a content entity was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrAliasNotFound indicates an alias binding was not found
	ErrAliasNotFound = errors.New("alias binding not found")

	// ErrAliasExists indicates the (alias, language) pair is already bound
	ErrAliasExists = errors.New("alias already bound")

	// ErrInvalidAlias indicates an alias candidate cannot be derived because
	// both the explicit input and the entity title are empty
	ErrInvalidAlias = errors.New("cannot derive alias")

	// ErrAlreadyRunning indicates the sitemap job is already in progress
	ErrAlreadyRunning = errors.New("sitemap generation already in progress")

	// ErrUnsupportedLanguage indicates a language outside the configured set
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrInvalidStatus indicates a status outside the content type's set
	ErrInvalidStatus = errors.New("invalid publication status")

	// ErrTypeNotRegistered indicates an unknown content type
	ErrTypeNotRegistered = errors.New("content type not registered")

	// ErrAnonymousAuthor indicates an author cannot be assigned because the
	// acting principal is anonymous
	ErrAnonymousAuthor = errors.New("cannot assign author: principal is anonymous")

	// ErrPermissionDenied indicates the acting principal lacks the required
	// capability
	ErrPermissionDenied = errors.New("permission denied")
)

// ContentError represents an error related to content operations
type ContentError struct {
	ContentID uuid.UUID
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// AliasError represents an error related to alias lifecycle operations
type AliasError struct {
	Alias string
	Op    string
	Err   error
}

func (e *AliasError) Error() string {
	return fmt.Sprintf("alias operation %s failed for %q: %v", e.Op, e.Alias, e.Err)
}

func (e *AliasError) Unwrap() error {
	return e.Err
}
