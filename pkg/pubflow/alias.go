package pubflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrphanGracePeriod is how long an unresolved alias binding may exist
// before the sweep collects it.
const OrphanGracePeriod = 24 * time.Hour

// AliasTarget returns the canonical forward-reference path for an entity.
func AliasTarget(contentType string, id uuid.UUID) string {
	return "content/view/" + contentType + "/" + id.String()
}

// ParseAliasTarget extracts the content type and entity id from a binding
// target produced by AliasTarget.
func ParseAliasTarget(target string) (contentType string, id uuid.UUID, err error) {
	rest, ok := strings.CutPrefix(target, "content/view/")
	if !ok {
		return "", uuid.Nil, errors.New("malformed alias target: " + target)
	}
	typeName, rawID, ok := strings.Cut(rest, "/")
	if !ok {
		return "", uuid.Nil, errors.New("malformed alias target: " + target)
	}
	id, err = uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, err
	}
	return typeName, id, nil
}

// AliasManager owns the binding between a content entity and its canonical
// path, including the deferred binding used while an entity has no
// identifier yet.
type AliasManager struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewAliasManager returns a manager over the given repository.
func NewAliasManager(repo Repository, logger *slog.Logger) *AliasManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &AliasManager{repo: repo, logger: logger, now: time.Now}
}

func (m *AliasManager) slugify(typ *TypeDescriptor, c *Content, raw string) (string, error) {
	if typ.Slugify != nil {
		if s := typ.Slugify(c, raw); s != "" {
			return s, nil
		}
		return "", &AliasError{Alias: raw, Op: "slugify", Err: ErrInvalidAlias}
	}

	if raw != "" {
		return raw, nil
	}
	if c.Title == "" {
		return "", &AliasError{Op: "slugify", Err: ErrInvalidAlias}
	}
	return typ.Name + "/" + c.Title, nil
}

// Bind computes the alias candidate for the entity and attaches it. For an
// entity without an identifier the candidate is held as a pending string
// until the first persist; for a persisted entity an unresolved binding is
// created immediately. An existing binding with a different alias is
// rewritten in place, preserving its creation time.
func (m *AliasManager) Bind(ctx context.Context, typ *TypeDescriptor, c *Content, raw string) error {
	candidate, err := m.slugify(typ, c, raw)
	if err != nil {
		return err
	}

	// No binding yet.
	if c.AliasID == uuid.Nil {
		if c.ID == uuid.Nil {
			// A forward reference needs a real target identifier, which the
			// entity does not have yet.
			c.PendingAlias = candidate
			return nil
		}
		b := &AliasBinding{
			ID:        uuid.New(),
			Alias:     candidate,
			Target:    AliasTargetUnbound,
			Language:  c.Language,
			CreatedAt: m.now().UTC(),
		}
		if err := m.repo.CreateAlias(ctx, b); err != nil {
			return &AliasError{Alias: candidate, Op: "bind", Err: err}
		}
		c.AliasID = b.ID
		return nil
	}

	b, err := m.repo.GetAlias(ctx, c.AliasID)
	if errors.Is(err, ErrAliasNotFound) {
		// The binding was deleted concurrently. Recreate it.
		b = &AliasBinding{
			ID:        uuid.New(),
			Alias:     candidate,
			Target:    AliasTarget(typ.Name, c.ID),
			Language:  c.Language,
			CreatedAt: m.now().UTC(),
		}
		if err := m.repo.CreateAlias(ctx, b); err != nil {
			return &AliasError{Alias: candidate, Op: "bind", Err: err}
		}
		c.AliasID = b.ID
		return nil
	}
	if err != nil {
		return &AliasError{Alias: candidate, Op: "bind", Err: err}
	}

	if b.Alias != candidate {
		b.Alias = candidate
		if err := m.repo.UpdateAlias(ctx, b); err != nil {
			return &AliasError{Alias: candidate, Op: "rebind", Err: err}
		}
	}

	return nil
}

// FinalizeAfterPersist resolves the entity's binding once the entity has an
// identifier: a pending alias string becomes a real binding, and an
// unresolved binding gets its target set. Returns true when the entity's
// alias reference changed and needs re-persisting.
func (m *AliasManager) FinalizeAfterPersist(ctx context.Context, typ *TypeDescriptor, c *Content) (bool, error) {
	if c.PendingAlias != "" {
		b := &AliasBinding{
			ID:        uuid.New(),
			Alias:     c.PendingAlias,
			Target:    AliasTarget(typ.Name, c.ID),
			Language:  c.Language,
			CreatedAt: m.now().UTC(),
		}
		if err := m.repo.CreateAlias(ctx, b); err != nil {
			return false, &AliasError{Alias: b.Alias, Op: "finalize", Err: err}
		}
		c.AliasID = b.ID
		c.PendingAlias = ""
		return true, nil
	}

	if c.AliasID == uuid.Nil {
		return false, nil
	}

	b, err := m.repo.GetAlias(ctx, c.AliasID)
	if errors.Is(err, ErrAliasNotFound) {
		// Deleted concurrently; nothing to resolve.
		return false, nil
	}
	if err != nil {
		return false, &AliasError{Op: "finalize", Err: err}
	}

	if b.Target == AliasTargetUnbound {
		b.Target = AliasTarget(typ.Name, c.ID)
		if err := m.repo.UpdateAlias(ctx, b); err != nil {
			return false, &AliasError{Alias: b.Alias, Op: "finalize", Err: err}
		}
	}

	return false, nil
}

// Release deletes the entity's binding on entity deletion. A binding that
// is already gone counts as success.
func (m *AliasManager) Release(ctx context.Context, c *Content) error {
	if c.AliasID == uuid.Nil {
		return nil
	}

	err := m.repo.DeleteAlias(ctx, c.AliasID)
	if err != nil && !errors.Is(err, ErrAliasNotFound) {
		return &AliasError{Op: "release", Err: err}
	}
	return nil
}

// SweepOrphans deletes every binding still targeting AliasTargetUnbound
// that is older than the given duration. Covers entities whose creation
// failed between alias allocation and persist.
func (m *AliasManager) SweepOrphans(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := m.repo.DeleteOrphanAliases(ctx, m.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, &AliasError{Op: "sweep", Err: err}
	}
	if n > 0 {
		m.logger.Info("swept orphan alias bindings", "count", n)
	}
	return n, nil
}
