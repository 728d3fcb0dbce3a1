package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pubflow/pubflow/pkg/pubflow"
)

// Repository implements pubflow.Repository using in-memory storage
type Repository struct {
	mu          sync.RWMutex
	contents    map[uuid.UUID]*pubflow.Content
	aliases     map[uuid.UUID]*pubflow.AliasBinding
	aliasByPath map[string]uuid.UUID // "language\x00alias" -> binding_id
}

// New creates a new in-memory repository
func New() pubflow.Repository {
	return &Repository{
		contents:    make(map[uuid.UUID]*pubflow.Content),
		aliases:     make(map[uuid.UUID]*pubflow.AliasBinding),
		aliasByPath: make(map[string]uuid.UUID),
	}
}

func pathKey(alias, language string) string {
	return language + "\x00" + alias
}

// cloneContent copies the entity together with its slice and map fields so
// callers cannot mutate stored state.
func cloneContent(c *pubflow.Content) *pubflow.Content {
	cp := *c
	if c.Images != nil {
		cp.Images = append([]pubflow.Attachment(nil), c.Images...)
	}
	if c.VideoLinks != nil {
		cp.VideoLinks = append([]string(nil), c.VideoLinks...)
	}
	if c.Tags != nil {
		cp.Tags = append([]string(nil), c.Tags...)
	}
	if c.Options != nil {
		cp.Options = make(map[string]any, len(c.Options))
		for k, v := range c.Options {
			cp.Options[k] = v
		}
	}
	return &cp
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *pubflow.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contents[content.ID] = cloneContent(content)
	return nil
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*pubflow.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	content, exists := r.contents[id]
	if !exists || content.DeletedAt != nil {
		return nil, pubflow.ErrContentNotFound
	}
	return cloneContent(content), nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *pubflow.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[content.ID]; !exists {
		return pubflow.ErrContentNotFound
	}
	r.contents[content.ID] = cloneContent(content)
	return nil
}

func (r *Repository) DeleteContent(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.contents[id]
	if !exists || c.DeletedAt != nil {
		return pubflow.ErrContentNotFound
	}

	now := time.Now().UTC()
	c.DeletedAt = &now
	c.UpdatedAt = now
	return nil
}

func (r *Repository) ListContent(ctx context.Context, q pubflow.ContentQuery) ([]*pubflow.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return pageContent(r.filterContent(q), q), nil
}

func (r *Repository) CountContent(ctx context.Context, q pubflow.ContentQuery) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.filterContent(q))), nil
}

func (r *Repository) SearchContent(ctx context.Context, q pubflow.ContentQuery, query string) ([]*pubflow.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// This backend has no text analyzer; it matches case-insensitive
	// substrings over title, description and body.
	needle := strings.ToLower(query)
	var matched []*pubflow.Content
	for _, c := range r.filterContent(q) {
		haystack := strings.ToLower(c.Title + " " + c.Description + " " + c.Body)
		if strings.Contains(haystack, needle) {
			matched = append(matched, c)
		}
	}
	return pageContent(matched, q), nil
}

// filterContent returns clones of every non-deleted entity matching the
// query filters, sorted. Limit and offset are applied by pageContent so
// counting can reuse the same path.
func (r *Repository) filterContent(q pubflow.ContentQuery) []*pubflow.Content {
	var result []*pubflow.Content
	for _, c := range r.contents {
		if c.DeletedAt != nil {
			continue
		}
		if !matchQuery(c, q) {
			continue
		}
		result = append(result, cloneContent(c))
	}

	sortBy := "publish_time"
	if q.SortBy != nil {
		sortBy = *q.SortBy
	}
	asc := q.SortOrder != nil && *q.SortOrder == "asc"
	sort.Slice(result, func(i, j int) bool {
		ti, tj := sortTime(result[i], sortBy), sortTime(result[j], sortBy)
		if asc {
			return ti.Before(tj)
		}
		return tj.Before(ti)
	})

	return result
}

func matchQuery(c *pubflow.Content, q pubflow.ContentQuery) bool {
	if q.Type != nil && c.Type != *q.Type {
		return false
	}
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if c.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Language != nil && c.Language != *q.Language {
		return false
	}
	if q.Status != nil && c.Status != *q.Status {
		return false
	}
	if q.AuthorID != nil && c.AuthorID != *q.AuthorID {
		return false
	}
	if q.PublishedBefore != nil {
		if c.PublishTime == nil || c.PublishTime.After(*q.PublishedBefore) {
			return false
		}
	}
	return true
}

func sortTime(c *pubflow.Content, sortBy string) time.Time {
	if sortBy == "updated_at" {
		return c.UpdatedAt
	}
	if c.PublishTime != nil {
		return *c.PublishTime
	}
	return c.CreatedAt
}

func pageContent(items []*pubflow.Content, q pubflow.ContentQuery) []*pubflow.Content {
	if q.Offset != nil {
		if *q.Offset >= len(items) {
			return nil
		}
		items = items[*q.Offset:]
	}
	if q.Limit != nil && *q.Limit < len(items) {
		items = items[:*q.Limit]
	}
	return items
}

// Alias operations

func (r *Repository) CreateAlias(ctx context.Context, binding *pubflow.AliasBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pathKey(binding.Alias, binding.Language)
	if _, exists := r.aliasByPath[key]; exists {
		return pubflow.ErrAliasExists
	}

	bindingCopy := *binding
	r.aliases[binding.ID] = &bindingCopy
	r.aliasByPath[key] = binding.ID
	return nil
}

func (r *Repository) GetAlias(ctx context.Context, id uuid.UUID) (*pubflow.AliasBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, exists := r.aliases[id]
	if !exists {
		return nil, pubflow.ErrAliasNotFound
	}
	bindingCopy := *binding
	return &bindingCopy, nil
}

func (r *Repository) GetAliasByPath(ctx context.Context, alias, language string) (*pubflow.AliasBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.aliasByPath[pathKey(alias, language)]
	if !exists {
		return nil, pubflow.ErrAliasNotFound
	}
	bindingCopy := *r.aliases[id]
	return &bindingCopy, nil
}

func (r *Repository) UpdateAlias(ctx context.Context, binding *pubflow.AliasBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.aliases[binding.ID]
	if !exists {
		return pubflow.ErrAliasNotFound
	}

	newKey := pathKey(binding.Alias, binding.Language)
	if otherID, taken := r.aliasByPath[newKey]; taken && otherID != binding.ID {
		return pubflow.ErrAliasExists
	}

	delete(r.aliasByPath, pathKey(old.Alias, old.Language))
	bindingCopy := *binding
	r.aliases[binding.ID] = &bindingCopy
	r.aliasByPath[newKey] = binding.ID
	return nil
}

func (r *Repository) DeleteAlias(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, exists := r.aliases[id]
	if !exists {
		return pubflow.ErrAliasNotFound
	}

	delete(r.aliasByPath, pathKey(binding.Alias, binding.Language))
	delete(r.aliases, id)
	return nil
}

func (r *Repository) DeleteOrphanAliases(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, binding := range r.aliases {
		if binding.Target != pubflow.AliasTargetUnbound {
			continue
		}
		if !binding.CreatedAt.Before(before) {
			continue
		}
		delete(r.aliasByPath, pathKey(binding.Alias, binding.Language))
		delete(r.aliases, id)
		removed++
	}
	return removed, nil
}
