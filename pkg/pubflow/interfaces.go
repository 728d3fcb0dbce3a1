package pubflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for content and alias persistence.
//
// Implementations provide their own per-document write serialization; the
// core never assumes it is the only writer.
type Repository interface {
	// Content operations
	CreateContent(ctx context.Context, content *Content) error
	GetContent(ctx context.Context, id uuid.UUID) (*Content, error)
	UpdateContent(ctx context.Context, content *Content) error
	DeleteContent(ctx context.Context, id uuid.UUID) error
	ListContent(ctx context.Context, q ContentQuery) ([]*Content, error)
	CountContent(ctx context.Context, q ContentQuery) (int64, error)

	// SearchContent runs a full-text search restricted by q. The text
	// analyzer is keyed by the entity language where the backend supports it.
	SearchContent(ctx context.Context, q ContentQuery, query string) ([]*Content, error)

	// Alias operations
	CreateAlias(ctx context.Context, binding *AliasBinding) error
	GetAlias(ctx context.Context, id uuid.UUID) (*AliasBinding, error)
	GetAliasByPath(ctx context.Context, alias, language string) (*AliasBinding, error)
	UpdateAlias(ctx context.Context, binding *AliasBinding) error
	DeleteAlias(ctx context.Context, id uuid.UUID) error

	// DeleteOrphanAliases removes every binding still targeting
	// AliasTargetUnbound that was created before the given time, and returns
	// the number removed.
	DeleteOrphanAliases(ctx context.Context, before time.Time) (int64, error)
}

// MediaStore defines the interface for the external media storage service.
// The core only records references; fetching, resizing and serving assets
// are the store's concern.
type MediaStore interface {
	// CreateFromURL registers the asset behind srcURL and returns a
	// reference to it.
	CreateFromURL(ctx context.Context, srcURL string) (*Attachment, error)

	// AttachmentURL returns a serving URL for the attachment, optionally
	// constrained to the given pixel dimensions (0 means unconstrained).
	AttachmentURL(a Attachment, width, height int) string

	// Delete removes the stored asset. Deleting an already-removed asset is
	// not an error.
	Delete(ctx context.Context, a Attachment) error
}

// Mailer defines the interface for the mail transport collaborator.
type Mailer interface {
	Send(ctx context.Context, to, subject, body, from string) error
}

// Principal is an authenticated (or anonymous) actor. Every operation that
// needs capability checks receives its principal explicitly.
type Principal interface {
	ID() uuid.UUID
	Email() string
	DisplayName() string
	Anonymous() bool
	HasCapability(name string) bool
}

// Directory resolves principals, used by the notification side effects.
type Directory interface {
	GetPrincipal(ctx context.Context, id uuid.UUID) (Principal, error)
	PrincipalsWithAnyCapability(ctx context.Context, capabilities ...string) ([]Principal, error)
}
