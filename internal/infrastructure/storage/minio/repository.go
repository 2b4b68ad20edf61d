package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

// ObjectStore is the object storage port used by the feed source and the
// snapshot archive.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (*ObjectInfo, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

type objectStore struct {
	client *Client
	logger logging.Logger
}

// NewObjectStore returns an ObjectStore scoped to the client's bucket.
func NewObjectStore(client *Client, log logging.Logger) ObjectStore {
	return &objectStore{client: client, logger: log}
}

func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return true
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}

func (s *objectStore) Upload(ctx context.Context, key string, data []byte, contentType string) (*ObjectInfo, error) {
	if err := s.client.checkOpen(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrInvalidRequest.WithDetail("empty object key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	info, err := s.client.api.PutObject(ctx, s.client.Bucket(), key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("Upload failed", logging.String("key", key), logging.Err(err))
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "upload %s", key)
	}
	s.logger.Debug("Object uploaded",
		logging.String("key", key),
		logging.Int64("size", info.Size),
		logging.Duration("took", time.Since(start)))

	return &ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  contentType,
		LastModified: info.LastModified,
	}, nil
}

func (s *objectStore) Download(ctx context.Context, key string) ([]byte, error) {
	if err := s.client.checkOpen(); err != nil {
		return nil, err
	}
	rc, err := s.client.open(ctx, s.client.Bucket(), key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetail(key)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "open %s", key)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetail(key)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "read %s", key)
	}
	return data, nil
}

func (s *objectStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.client.checkOpen(); err != nil {
		return false, err
	}
	_, err := s.client.api.StatObject(ctx, s.client.Bucket(), key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrCodeStorageError, "stat %s", key)
	}
	return true, nil
}

// List returns up to limit objects under prefix; limit <= 0 means no limit.
func (s *objectStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	if err := s.client.checkOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]ObjectInfo, 0)
	for obj := range s.client.api.ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrapf(obj.Err, errors.ErrCodeStorageError, "list %s", prefix)
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *objectStore) Delete(ctx context.Context, key string) error {
	if err := s.client.checkOpen(); err != nil {
		return err
	}
	if err := s.client.api.RemoveObject(ctx, s.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "delete %s", key)
	}
	return nil
}

// SnapshotArchive writes every fetched feed document to object storage so a
// board can be rebuilt for any past refresh.
type SnapshotArchive struct {
	store  ObjectStore
	prefix string
	logger logging.Logger
}

// NewSnapshotArchive returns an archive writing under prefix.
func NewSnapshotArchive(store ObjectStore, prefix string, log logging.Logger) *SnapshotArchive {
	if prefix == "" {
		prefix = "snapshots/"
	}
	return &SnapshotArchive{store: store, prefix: prefix, logger: log}
}

// ArchiveKey returns the object key for a snapshot.
func (a *SnapshotArchive) ArchiveKey(snap *incident.Snapshot) string {
	at := snap.FetchedAt.UTC()
	name := fmt.Sprintf("%s-%s.json", at.Format("20060102T150405Z"), snap.ID)
	return path.Join(a.prefix, at.Format("2006/01/02"), name)
}

// Archive stores the raw feed document that produced snap and returns its key.
func (a *SnapshotArchive) Archive(ctx context.Context, snap *incident.Snapshot, raw []byte) (string, error) {
	if snap == nil {
		return "", ErrInvalidRequest.WithDetail("nil snapshot")
	}
	if len(raw) == 0 {
		return "", ErrInvalidRequest.WithDetail("empty document")
	}
	key := a.ArchiveKey(snap)
	if _, err := a.store.Upload(ctx, key, raw, "application/json"); err != nil {
		return "", err
	}
	a.logger.Info("Snapshot archived", logging.String("key", key), logging.String("snapshot_id", snap.ID))
	return key, nil
}

// Recent lists the most recently archived documents, newest first.
func (a *SnapshotArchive) Recent(ctx context.Context, limit int) ([]ObjectInfo, error) {
	objs, err := a.store.List(ctx, a.prefix, 0)
	if err != nil {
		return nil, err
	}
	// Keys embed the fetch time, so lexical order is chronological.
	for i, j := 0, len(objs)-1; i < j; i, j = i+1, j-1 {
		objs[i], objs[j] = objs[j], objs[i]
	}
	if limit > 0 && len(objs) > limit {
		objs = objs[:limit]
	}
	return objs, nil
}
