package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/pubflow/pubflow/pkg/pubflow"
	"github.com/pubflow/pubflow/pkg/pubflow/media"
)

// Config options for the S3 media store
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// URLPrefix is the public base URL assets are served under, typically a
	// CDN or the bucket website endpoint. Empty derives the virtual-hosted
	// bucket URL.
	URLPrefix string

	// KeyPrefix namespaces every stored object key.
	KeyPrefix string

	MaxFetchSize int64 // Per-asset download cap; zero means media.DefaultMaxFetchSize
	Client       *http.Client

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Store is an S3-compatible implementation of the pubflow.MediaStore interface
type Store struct {
	client       *s3.Client
	uploader     *manager.Uploader
	bucket       string
	urlPrefix    string
	keyPrefix    string
	maxFetchSize int64
	httpClient   *http.Client
}

// New creates a new S3-compatible media store
func New(config Config) (pubflow.MediaStore, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	// Set up AWS config
	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)

	// Custom endpoint for S3-compatible services (MinIO, etc.)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	urlPrefix := config.URLPrefix
	if urlPrefix == "" {
		urlPrefix = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", config.Bucket, config.Region)
	}
	urlPrefix = strings.TrimSuffix(urlPrefix, "/")

	store := &Store{
		client:       client,
		uploader:     manager.NewUploader(client),
		bucket:       config.Bucket,
		urlPrefix:    urlPrefix,
		keyPrefix:    strings.Trim(config.KeyPrefix, "/"),
		maxFetchSize: config.MaxFetchSize,
		httpClient:   config.Client,
	}

	if config.CreateBucketIfNotExist {
		if err := store.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return store, nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (s *Store) createBucketIfNotExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	// MinIO reports a missing bucket with several error shapes.
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "BadRequest") &&
		!strings.Contains(err.Error(), "NotFound") {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil && !strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	// Give eventually-consistent services a moment before first use.
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (s *Store) objectKey(id uuid.UUID) string {
	key := id.String()[:2] + "/" + id.String()
	if s.keyPrefix != "" {
		return s.keyPrefix + "/" + key
	}
	return key
}

// CreateFromURL downloads the asset behind srcURL into the bucket and
// returns a reference served under the configured URL prefix.
func (s *Store) CreateFromURL(ctx context.Context, srcURL string) (*pubflow.Attachment, error) {
	asset, err := media.FetchURL(ctx, s.httpClient, srcURL, s.maxFetchSize)
	if err != nil {
		return nil, err
	}
	defer asset.Body.Close()

	id := uuid.New()
	key := s.objectKey(id)

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        asset.Body,
		ContentType: aws.String(asset.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload asset: %w", err)
	}

	size := asset.Size
	if size < 0 {
		if head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err == nil && head.ContentLength != nil {
			size = *head.ContentLength
		} else {
			size = 0
		}
	}

	return &pubflow.Attachment{
		ID:       id,
		URL:      s.urlPrefix + "/" + key,
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

// Delete removes the stored object. A missing object counts as success.
func (s *Store) Delete(ctx context.Context, a pubflow.Attachment) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(a.ID)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil
		}
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}
