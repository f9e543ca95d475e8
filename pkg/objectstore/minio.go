package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// maxPresignExpiry is the longest lifetime S3 accepts for a presigned URL.
const maxPresignExpiry = 7 * 24 * time.Hour

// Config describes an S3-compatible bucket.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Store uploads evidence to an S3-compatible bucket and returns presigned GET URLs.
type Store struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	expiry   time.Duration
	logger   zerolog.Logger
	initOnce sync.Once
	initErr  error
}

// New constructs a MinIO-backed store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 || expiry > maxPresignExpiry {
		expiry = maxPresignExpiry
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "images"
	}

	return &Store{
		client: client,
		bucket: bucket,
		region: region,
		prefix: prefix,
		expiry: expiry,
		logger: logger.With().Str("component", "objectstore").Logger(),
	}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Upload stores the object and returns a presigned URL for it.
func (s *Store) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	key := ObjectKey(s.prefix, name, uuid.NewString())
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}

	s.logger.Info().Str("key", key).Int64("size", info.Size).Msg("evidence uploaded to bucket")

	return u.String(), nil
}

// ObjectKey builds a collision-free key under prefix that keeps the original base name.
func ObjectKey(prefix, name, unique string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload.bin"
	}
	return strings.Trim(prefix, "/") + "/" + unique + "-" + base
}
