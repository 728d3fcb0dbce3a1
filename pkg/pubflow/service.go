package pubflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service defines the main interface of the content lifecycle core. Every
// mutating operation takes the acting principal explicitly; there is no
// ambient current user.
type Service interface {
	// Content lifecycle
	SaveContent(ctx context.Context, principal Principal, req SaveContentRequest) (*Content, error)
	GetContent(ctx context.Context, id uuid.UUID) (*Content, error)
	GetContentByPath(ctx context.Context, path, language string) (*Content, error)
	DeleteContent(ctx context.Context, principal Principal, id uuid.UUID) error
	ListContent(ctx context.Context, req ListContentRequest) (*ContentPage, error)

	// Derived body views
	RenderBody(c *Content, opts RenderOptions) string
	PlainBody(c *Content) string

	// Discoverability jobs, intended to be invoked by an external
	// scheduler. GenerateSitemap fails fast with ErrAlreadyRunning while a
	// previous run is still active.
	GenerateSitemap(ctx context.Context) error
	GenerateFeeds(ctx context.Context) error

	// SweepOrphanAliases collects alias bindings that were never resolved
	// to an entity.
	SweepOrphanAliases(ctx context.Context, olderThan time.Duration) (int64, error)

	// Registry returns the content type table.
	Registry() *Registry
}
