package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pubflow/pubflow/pkg/pubflow"
	"github.com/pubflow/pubflow/pkg/pubflow/media"
)

// Store is a filesystem implementation of the pubflow.MediaStore interface
type Store struct {
	baseDir      string
	urlPrefix    string
	maxFetchSize int64
	client       *http.Client
}

// Config options for the filesystem media store
type Config struct {
	BaseDir      string // Base directory for storing fetched assets
	URLPrefix    string // Public URL prefix the base directory is served under
	MaxFetchSize int64  // Per-asset download cap; zero means media.DefaultMaxFetchSize
	Client       *http.Client
}

// New creates a new filesystem media store
func New(config Config) (pubflow.MediaStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.URLPrefix == "" {
		return nil, errors.New("url prefix is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{
		baseDir:      config.BaseDir,
		urlPrefix:    config.URLPrefix,
		maxFetchSize: config.MaxFetchSize,
		client:       config.Client,
	}, nil
}

// assetKey shards assets into two-character prefix directories so a single
// directory never collects every file.
func assetKey(id uuid.UUID) string {
	s := id.String()
	return filepath.Join(s[:2], s)
}

// CreateFromURL downloads the asset behind srcURL into the base directory
// and returns a reference served under the configured URL prefix.
func (s *Store) CreateFromURL(ctx context.Context, srcURL string) (*pubflow.Attachment, error) {
	asset, err := media.FetchURL(ctx, s.client, srcURL, s.maxFetchSize)
	if err != nil {
		return nil, err
	}
	defer asset.Body.Close()

	id := uuid.New()
	key := assetKey(id)
	path := filepath.Join(s.baseDir, key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset file: %w", err)
	}

	size, err := io.Copy(file, asset.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write asset file: %w", err)
	}

	return &pubflow.Attachment{
		ID:       id,
		URL:      s.urlPrefix + "/" + filepath.ToSlash(key),
		FileName: asset.FileName,
		MimeType: asset.ContentType,
		Size:     size,
	}, nil
}

// AttachmentURL returns the serving URL, with resize hints when dimensions
// are constrained.
func (s *Store) AttachmentURL(a pubflow.Attachment, width, height int) string {
	return media.SizedURL(a.URL, width, height)
}

// Delete removes the stored asset file. A missing file counts as success.
func (s *Store) Delete(ctx context.Context, a pubflow.Attachment) error {
	err := os.Remove(filepath.Join(s.baseDir, assetKey(a.ID)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}
