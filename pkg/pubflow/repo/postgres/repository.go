package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pubflow/pubflow/pkg/pubflow"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements pubflow.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) pubflow.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) pubflow.Repository {
	return &Repository{db: pool}
}

// searchConfig maps an entity language to the text search configuration
// used for full-text queries. Languages without a stemmer fall back to the
// simple configuration.
func searchConfig(language string) string {
	switch language {
	case "en":
		return "english"
	case "ru":
		return "russian"
	default:
		return "simple"
	}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "alias") {
				return pubflow.ErrAliasExists
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("record not found")
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const contentColumns = `id, type, title, description, body, images, video_links,
           language, status, prev_status, author_id, alias_id, section, tags,
           publish_time, options, created_at, updated_at`

func scanContent(row pgx.Row) (*pubflow.Content, error) {
	var c pubflow.Content
	var images, options []byte
	var aliasID *uuid.UUID

	err := row.Scan(
		&c.ID, &c.Type, &c.Title, &c.Description, &c.Body, &images, &c.VideoLinks,
		&c.Language, &c.Status, &c.PrevStatus, &c.AuthorID, &aliasID, &c.Section,
		&c.Tags, &c.PublishTime, &options, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(images) > 0 {
		if err := json.Unmarshal(images, &c.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &c.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
	}
	if aliasID != nil {
		c.AliasID = *aliasID
	}

	return &c, nil
}

func contentArgs(c *pubflow.Content) ([]interface{}, error) {
	images, err := json.Marshal(c.Images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	options, err := json.Marshal(c.Options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	var aliasID *uuid.UUID
	if c.AliasID != uuid.Nil {
		aliasID = &c.AliasID
	}

	return []interface{}{
		c.ID, c.Type, c.Title, c.Description, c.Body, images, c.VideoLinks,
		c.Language, c.Status, c.PrevStatus, c.AuthorID, aliasID, c.Section,
		c.Tags, c.PublishTime, options, c.CreatedAt, c.UpdatedAt,
	}, nil
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *pubflow.Content) error {
	query := `
		INSERT INTO content (` + contentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	args, err := contentArgs(content)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return r.handlePostgresError("create content", err)
	}
	return nil
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*pubflow.Content, error) {
	query := `
        SELECT ` + contentColumns + `
        FROM content WHERE id = $1 AND deleted_at IS NULL`

	c, err := scanContent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pubflow.ErrContentNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *pubflow.Content) error {
	query := `
		UPDATE content SET
			type = $2, title = $3, description = $4, body = $5, images = $6,
			video_links = $7, language = $8, status = $9, prev_status = $10,
			author_id = $11, alias_id = $12, section = $13, tags = $14,
			publish_time = $15, options = $16, created_at = $17, updated_at = $18
		WHERE id = $1 AND deleted_at IS NULL`

	args, err := contentArgs(content)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return r.handlePostgresError("update content", err)
	}
	if tag.RowsAffected() == 0 {
		return pubflow.ErrContentNotFound
	}
	return nil
}

func (r *Repository) DeleteContent(ctx context.Context, id uuid.UUID) error {
	// Soft delete: set deleted_at timestamp
	query := `UPDATE content SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return r.handlePostgresError("delete content", err)
	}
	if tag.RowsAffected() == 0 {
		return pubflow.ErrContentNotFound
	}
	return nil
}

// buildContentFilter translates a ContentQuery into a WHERE clause and its
// arguments, continuing the placeholder numbering from args.
func buildContentFilter(q pubflow.ContentQuery, args []interface{}) (string, []interface{}) {
	conds := []string{"deleted_at IS NULL"}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.Type != nil {
		add("type = $%d", *q.Type)
	}
	if len(q.Types) > 0 {
		add("type = ANY($%d)", q.Types)
	}
	if q.Language != nil {
		add("language = $%d", *q.Language)
	}
	if q.Status != nil {
		add("status = $%d", *q.Status)
	}
	if q.AuthorID != nil {
		add("author_id = $%d", *q.AuthorID)
	}
	if q.PublishedBefore != nil {
		add("publish_time IS NOT NULL AND publish_time <= $%d", *q.PublishedBefore)
	}

	return strings.Join(conds, " AND "), args
}

func orderClause(q pubflow.ContentQuery) string {
	column := "publish_time"
	if q.SortBy != nil && *q.SortBy == "updated_at" {
		column = "updated_at"
	}
	direction := "DESC"
	if q.SortOrder != nil && *q.SortOrder == "asc" {
		direction = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s NULLS LAST", column, direction)
}

func limitClause(q pubflow.ContentQuery, args []interface{}) (string, []interface{}) {
	var sb strings.Builder
	if q.Limit != nil {
		args = append(args, *q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if q.Offset != nil {
		args = append(args, *q.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}

func (r *Repository) queryContent(ctx context.Context, query string, args []interface{}) ([]*pubflow.Content, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	defer rows.Close()

	var results []*pubflow.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan content", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate content rows", err)
	}
	return results, nil
}

func (r *Repository) ListContent(ctx context.Context, q pubflow.ContentQuery) ([]*pubflow.Content, error) {
	where, args := buildContentFilter(q, nil)
	query := `SELECT ` + contentColumns + ` FROM content WHERE ` + where + orderClause(q)
	limits, args := limitClause(q, args)
	return r.queryContent(ctx, query+limits, args)
}

func (r *Repository) CountContent(ctx context.Context, q pubflow.ContentQuery) (int64, error) {
	where, args := buildContentFilter(q, nil)
	query := `SELECT COUNT(*) FROM content WHERE ` + where

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, r.handlePostgresError("count content", err)
	}
	return count, nil
}

func (r *Repository) SearchContent(ctx context.Context, q pubflow.ContentQuery, query string) ([]*pubflow.Content, error) {
	where, args := buildContentFilter(q, nil)

	// The text search configuration follows the query language when one is
	// given, so stemming matches the indexed language.
	cfg := "simple"
	if q.Language != nil {
		cfg = searchConfig(*q.Language)
	}

	args = append(args, cfg)
	cfgParam := len(args)
	args = append(args, query)
	queryParam := len(args)

	sql := `SELECT ` + contentColumns + ` FROM content WHERE ` + where + fmt.Sprintf(`
		AND to_tsvector($%d::regconfig, coalesce(title, '') || ' ' || coalesce(description, '') || ' ' || coalesce(body, ''))
		    @@ plainto_tsquery($%d::regconfig, $%d)`, cfgParam, cfgParam, queryParam) + orderClause(q)

	limits, args := limitClause(q, args)
	return r.queryContent(ctx, sql+limits, args)
}

// Alias operations

func (r *Repository) CreateAlias(ctx context.Context, binding *pubflow.AliasBinding) error {
	query := `
		INSERT INTO content_alias (id, alias, target, language, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		binding.ID, binding.Alias, binding.Target, binding.Language, binding.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create alias", err)
	}
	return nil
}

func (r *Repository) GetAlias(ctx context.Context, id uuid.UUID) (*pubflow.AliasBinding, error) {
	query := `
		SELECT id, alias, target, language, created_at
		FROM content_alias WHERE id = $1`

	var b pubflow.AliasBinding
	err := r.db.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Alias, &b.Target, &b.Language, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pubflow.ErrAliasNotFound
		}
		return nil, r.handlePostgresError("get alias", err)
	}
	return &b, nil
}

func (r *Repository) GetAliasByPath(ctx context.Context, alias, language string) (*pubflow.AliasBinding, error) {
	query := `
		SELECT id, alias, target, language, created_at
		FROM content_alias WHERE alias = $1 AND language = $2`

	var b pubflow.AliasBinding
	err := r.db.QueryRow(ctx, query, alias, language).Scan(
		&b.ID, &b.Alias, &b.Target, &b.Language, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pubflow.ErrAliasNotFound
		}
		return nil, r.handlePostgresError("get alias by path", err)
	}
	return &b, nil
}

func (r *Repository) UpdateAlias(ctx context.Context, binding *pubflow.AliasBinding) error {
	query := `
		UPDATE content_alias SET alias = $2, target = $3, language = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		binding.ID, binding.Alias, binding.Target, binding.Language)
	if err != nil {
		return r.handlePostgresError("update alias", err)
	}
	if tag.RowsAffected() == 0 {
		return pubflow.ErrAliasNotFound
	}
	return nil
}

func (r *Repository) DeleteAlias(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM content_alias WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete alias", err)
	}
	if tag.RowsAffected() == 0 {
		return pubflow.ErrAliasNotFound
	}
	return nil
}

func (r *Repository) DeleteOrphanAliases(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM content_alias WHERE target = $1 AND created_at < $2`
	tag, err := r.db.Exec(ctx, query, pubflow.AliasTargetUnbound, before)
	if err != nil {
		return 0, r.handlePostgresError("delete orphan aliases", err)
	}
	return tag.RowsAffected(), nil
}
