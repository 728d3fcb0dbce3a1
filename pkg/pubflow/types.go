package pubflow

import (
	"time"

	"github.com/google/uuid"
)

// Status is the domain type for publication states.
type Status string

// Publication status constants (typed).
const (
	StatusUnpublished Status = "unpublished"
	StatusWaiting     Status = "waiting"
	StatusPublished   Status = "published"
)

// DefaultStatuses is the status set used by content types that do not
// declare their own. Order matters: the first entry is the hidden default.
var DefaultStatuses = []Status{StatusUnpublished, StatusWaiting, StatusPublished}

// Field names a content type may enable. The codec, the state machine and
// the emitters consult the type descriptor instead of inspecting entities
// at runtime.
type Field string

// Optional field group constants.
const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldBody        Field = "body"
	FieldImages      Field = "images"
	FieldVideoLinks  Field = "video_links"
	FieldStatus      Field = "status"
	FieldAlias       Field = "alias"
	FieldPublishTime Field = "publish_time"
	FieldAuthor      Field = "author"
	FieldSection     Field = "section"
	FieldTags        Field = "tags"
)

// AliasTargetUnbound marks an alias binding whose owning entity has not
// received an identifier yet.
const AliasTargetUnbound = "UNBOUND"

// Content is a publishable content entity. Body is kept in storage form:
// prose interleaved with [img:N] and [vid:N] placeholder tokens whose
// ordinals index Images and VideoLinks.
type Content struct {
	ID           uuid.UUID      `json:"id"`
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Body         string         `json:"body,omitempty"`
	Images       []Attachment   `json:"images,omitempty"`
	VideoLinks   []string       `json:"video_links,omitempty"`
	Language     string         `json:"language"`
	Status       Status         `json:"status,omitempty"`
	PrevStatus   Status         `json:"prev_status,omitempty"`
	AuthorID     uuid.UUID      `json:"author_id"`
	AliasID      uuid.UUID      `json:"alias_id,omitempty"`
	PendingAlias string         `json:"-"`
	Section      string         `json:"section,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	PublishTime  *time.Time     `json:"publish_time,omitempty"`
	Options      map[string]any `json:"options,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    *time.Time     `json:"deleted_at,omitempty"`
}

// Attachment is a reference to a separately stored media asset. The entity
// owns the reference list; the asset itself lives in a MediaStore.
type Attachment struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	FileName string    `json:"file_name,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
	Size     int64     `json:"size,omitempty"`
}

// AliasBinding binds a canonical path string to a content entity. At most
// one non-deleted binding may exist per (alias, language) pair.
type AliasBinding struct {
	ID        uuid.UUID `json:"id"`
	Alias     string    `json:"alias"`
	Target    string    `json:"target"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentQuery defines filtering options for listing and counting content.
type ContentQuery struct {
	Type            *string
	Types           []string
	Language        *string
	Status          *Status
	AuthorID        *uuid.UUID
	PublishedBefore *time.Time
	SortBy          *string // "publish_time" (default) or "updated_at"
	SortOrder       *string // "asc" or "desc" (default)
	Limit           *int
	Offset          *int
}

// ContentPage is one page of list/search results.
type ContentPage struct {
	Items   []*Content `json:"items"`
	Total   int64      `json:"total"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
}

// Capability names used by the moderation guard and the notifiers.
// Capabilities are scoped per content type.
func CapBypassModeration(contentType string) string { return "content.bypass_moderation." + contentType }

// CapModify names the capability to modify any entity of a content type.
func CapModify(contentType string) string { return "content.modify." + contentType }

// CapDelete names the capability to delete any entity of a content type.
func CapDelete(contentType string) string { return "content.delete." + contentType }
