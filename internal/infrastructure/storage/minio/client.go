package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// MinIOAPI is the subset of *minio.Client used by this package. GetObject is
// reached through an ObjectOpener because *minio.Object cannot be built
// outside the SDK.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// ObjectOpener opens an object for reading.
type ObjectOpener func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

// MinIOConfig configures the object store holding the feed document and the
// snapshot archive.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	// Bucket holds both the published feed document and the archive.
	Bucket string `mapstructure:"bucket"`
	// ArchivePrefix is the key prefix of archived snapshots.
	ArchivePrefix string `mapstructure:"archive_prefix"`
	// ArchiveRetentionDays expires archived snapshots; 0 keeps them forever.
	ArchiveRetentionDays int           `mapstructure:"archive_retention_days"`
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "sir-dashboard"
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "snapshots/"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

// Client wraps the MinIO SDK client with the bucket bootstrap logic.
type Client struct {
	api    MinIOAPI
	open   ObjectOpener
	config *MinIOConfig
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// ErrClientClosed is returned by every operation after Close.
var ErrClientClosed = errors.New(errors.ErrCodeStorageError, "minio client is closed")

// NewClient connects, verifies credentials and ensures the bucket exists.
func NewClient(cfg *MinIOConfig, log logging.Logger) (*Client, error) {
	applyDefaults(cfg)

	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "create minio client")
	}
	open := func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		return sdk.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	}

	c := NewClientWithAPI(sdk, open, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if _, err := sdk.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "connect to minio")
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI builds a Client around an existing API, used by tests.
func NewClientWithAPI(api MinIOAPI, open ObjectOpener, cfg *MinIOConfig, log logging.Logger) *Client {
	applyDefaults(cfg)
	return &Client{api: api, open: open, config: cfg, logger: log}
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.config.Bucket }

// EnsureBucket creates the bucket when missing and installs the archive
// expiry rule. A lifecycle failure is logged, not returned.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "check bucket")
	}
	if !exists {
		if err := c.api.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
			return errors.Wrapf(err, errors.ErrCodeStorageError, "create bucket %s", c.config.Bucket)
		}
		c.logger.Info("Created bucket", logging.String("bucket", c.config.Bucket))
	}

	if c.config.ArchiveRetentionDays > 0 {
		rules := lifecycle.NewConfiguration()
		rules.Rules = []lifecycle.Rule{{
			ID:         "snapshot-archive-expiry",
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: c.config.ArchivePrefix},
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(c.config.ArchiveRetentionDays)},
		}}
		if err := c.api.SetBucketLifecycle(ctx, c.config.Bucket, rules); err != nil {
			c.logger.Warn("Failed to set archive lifecycle", logging.Err(err))
		}
	}
	return nil
}

func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// HealthCheck verifies that the bucket is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio health check")
	}
	if !exists {
		return errors.New(errors.ErrCodeServiceUnavailable, "bucket missing").WithDetail(c.config.Bucket)
	}
	return nil
}

// Close marks the client closed. The SDK client holds no resources to free.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
