package pubflow

import (
	"time"

	"github.com/google/uuid"
)

// SaveContentRequest contains parameters for creating or updating a content
// entity. A zero ID means create.
type SaveContentRequest struct {
	ID          uuid.UUID
	Type        string
	Title       string
	Description string
	Body        string
	Language    string
	Status      Status
	AuthorID    uuid.UUID
	Alias       string
	VideoLinks  []string
	Section     string
	Tags        []string
	PublishTime *time.Time
	Options     map[string]any
}

// ListContentRequest contains parameters for listing or searching content.
type ListContentRequest struct {
	Type string

	// Language filters by language. Empty means the configured default,
	// "*" means all languages.
	Language string

	// Status filters by publication status. Empty means published,
	// "*" means all statuses.
	Status string

	// IncludeScheduled disables the publish-time ceiling, returning
	// entities scheduled in the future.
	IncludeScheduled bool

	// Query, when non-empty, runs a full-text search instead of a plain
	// listing.
	Query string

	AuthorID *uuid.UUID

	Page    int // 1-based; zero means first page
	PerPage int // zero means the default page size
}
