package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Config holds the object store connection settings.
type Config struct {
	// Endpoint is the S3-compatible endpoint, e.g. "localhost:9000".
	Endpoint string `yaml:"endpoint" env:"MINIO_ENDPOINT"`

	// AccessKey and SecretKey authenticate against the store.
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`

	// UseSSL enables TLS towards the endpoint.
	UseSSL bool `yaml:"use_ssl" env:"MINIO_USE_SSL"`

	// Bucket stores the archived images. Default: "cbir-images".
	Bucket string `yaml:"bucket" env:"MINIO_BUCKET"`
}

// DefaultConfig provides sensible defaults for a local store.
func DefaultConfig() Config {
	return Config{
		Endpoint: "localhost:9000",
		Bucket:   "cbir-images",
	}
}

// Store is a minio-backed image archive.
type Store struct {
	cfg    Config
	client *minio.Client
	log    *zap.Logger
}

// NewStore connects to the object store and ensures the bucket exists.
func NewStore(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultConfig().Bucket
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: initializing client: %w", err)
	}

	s := &Store{cfg: cfg, client: client, log: log}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Put stores data under key, overwriting any previous object.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("archive: storing %q: %w", key, err)
	}
	return nil
}

// Remove deletes the object under key. Removing a missing key is not an
// error.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("archive: removing %q: %w", key, err)
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("archive: checking bucket %q: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("archive: creating bucket %q: %w", s.cfg.Bucket, err)
	}
	s.log.Info("created archive bucket", zap.String("bucket", s.cfg.Bucket))
	return nil
}
