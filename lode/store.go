// Package lode persists extraction output through a Lode Store.
//
// Layout under the store root (prefixes configurable):
//
//	raw/page-<n>.png          full snapshot per page
//	cropped/<name>.png        one tile per resolved name (flat namespace)
//	manifests/page-<n>.msgpack page report
//
// Both the filesystem and S3 backends are supported. All writes overwrite.
package lode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// Storage backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	// Backend is "fs" (default) or "s3".
	Backend string
	// Path is the fs root directory, or "bucket/prefix" for s3.
	Path string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional).
	Region string
	// Endpoint is a custom S3 endpoint URL (optional).
	Endpoint string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// NewStoreFactory returns a lazily-evaluated store factory for cfg.
func NewStoreFactory(cfg StoreConfig) (lode.StoreFactory, error) {
	switch cfg.Backend {
	case BackendFS, "":
		if cfg.Path == "" {
			return nil, errors.New("storage path is required for fs backend")
		}
		return lode.NewFSFactory(cfg.Path), nil
	case BackendS3:
		bucket, prefix := ParseS3Path(cfg.Path)
		return newS3Factory(S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", cfg.Backend)
	}
}

// OpenStore builds the store for cfg. For the fs backend the root and the
// layout directories are created if absent.
func OpenStore(cfg StoreConfig, layout Layout) (lode.Store, error) {
	if cfg.Backend == BackendFS || cfg.Backend == "" {
		if err := ensureDirs(cfg.Path, layout); err != nil {
			return nil, WrapInitError(err, cfg.Path)
		}
	}

	factory, err := NewStoreFactory(cfg)
	if err != nil {
		return nil, err
	}
	store, err := factory()
	if err != nil {
		return nil, WrapInitError(err, cfg.Path)
	}
	return store, nil
}

// StorageURI describes where output lands, for reports and notifications.
func StorageURI(cfg StoreConfig) string {
	if cfg.Backend == BackendS3 {
		return "s3://" + strings.TrimSuffix(cfg.Path, "/")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		abs = cfg.Path
	}
	return "file://" + filepath.ToSlash(abs)
}

func ensureDirs(root string, layout Layout) error {
	if root == "" {
		return errors.New("storage path is required for fs backend")
	}
	for _, dir := range []string{layout.RawPrefix, layout.CroppedPrefix, layout.ManifestPrefix} {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// newS3Factory loads AWS configuration and returns a Lode S3 store factory.
// Uses AWS SDK default credential chain (env vars, shared config, IAM role).
func newS3Factory(s3cfg S3Config) (lode.StoreFactory, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("failed to load AWS config: %w", err), s3cfg.Bucket)
	}

	var s3Opts []func(*s3.Options)
	if s3cfg.Endpoint != "" {
		endpoint := s3cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if s3cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: s3cfg.Bucket,
			Prefix: s3cfg.Prefix,
		})
	}, nil
}
