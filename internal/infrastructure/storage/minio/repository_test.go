package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	apperrors "github.com/coprede/sir-dashboard/pkg/errors"
)

type RepositoryTestSuite struct {
	suite.Suite
	api     *MockMinIOAPI
	objects map[string][]byte
	store   ObjectStore
	client  *Client
}

func (s *RepositoryTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.objects = map[string][]byte{}
	open := func(_ context.Context, bucket, key string) (io.ReadCloser, error) {
		data, ok := s.objects[bucket+"/"+key]
		if !ok {
			return nil, minio.ErrorResponse{Code: "NoSuchKey", Key: key}
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	s.client = NewClientWithAPI(s.api, open, &MinIOConfig{Bucket: "sir"}, logging.NewNopLogger())
	s.store = NewObjectStore(s.client, logging.NewNopLogger())
}

func (s *RepositoryTestSuite) TestUpload() {
	data := []byte(`{"RAL":{}}`)
	s.api.On("PutObject", mock.Anything, "sir", "feed/latest.json", mock.Anything, int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"}).
		Return(minio.UploadInfo{Key: "feed/latest.json", Size: int64(len(data)), ETag: "abc"}, nil)

	info, err := s.store.Upload(context.Background(), "feed/latest.json", data, "application/json")
	s.Require().NoError(err)
	s.Equal("abc", info.ETag)
	s.Equal(int64(len(data)), info.Size)
}

func (s *RepositoryTestSuite) TestUpload_EmptyKey() {
	_, err := s.store.Upload(context.Background(), "", []byte("x"), "")
	s.True(apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func (s *RepositoryTestSuite) TestUpload_Failure() {
	s.api.On("PutObject", mock.Anything, "sir", "k", mock.Anything, int64(1), mock.Anything).
		Return(minio.UploadInfo{}, errors.New("connection reset"))

	_, err := s.store.Upload(context.Background(), "k", []byte("x"), "")
	s.True(apperrors.IsCode(err, apperrors.ErrCodeStorageError))
}

func (s *RepositoryTestSuite) TestDownload() {
	s.objects["sir/feed/latest.json"] = []byte("payload")

	data, err := s.store.Download(context.Background(), "feed/latest.json")
	s.Require().NoError(err)
	s.Equal("payload", string(data))

	_, err = s.store.Download(context.Background(), "missing.json")
	s.True(apperrors.IsNotFound(err))
}

func (s *RepositoryTestSuite) TestExists() {
	s.api.On("StatObject", mock.Anything, "sir", "a", mock.Anything).Return(minio.ObjectInfo{Key: "a"}, nil)
	s.api.On("StatObject", mock.Anything, "sir", "b", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})
	s.api.On("StatObject", mock.Anything, "sir", "c", mock.Anything).
		Return(minio.ObjectInfo{}, errors.New("timeout"))

	ok, err := s.store.Exists(context.Background(), "a")
	s.NoError(err)
	s.True(ok)

	ok, err = s.store.Exists(context.Background(), "b")
	s.NoError(err)
	s.False(ok)

	_, err = s.store.Exists(context.Background(), "c")
	s.Error(err)
}

func (s *RepositoryTestSuite) TestList_RespectsLimit() {
	ch := make(chan minio.ObjectInfo, 3)
	ch <- minio.ObjectInfo{Key: "snapshots/1.json"}
	ch <- minio.ObjectInfo{Key: "snapshots/2.json"}
	ch <- minio.ObjectInfo{Key: "snapshots/3.json"}
	close(ch)
	s.api.On("ListObjects", mock.Anything, "sir", minio.ListObjectsOptions{Prefix: "snapshots/", Recursive: true}).
		Return((<-chan minio.ObjectInfo)(ch))

	objs, err := s.store.List(context.Background(), "snapshots/", 2)
	s.Require().NoError(err)
	s.Len(objs, 2)
	s.Equal("snapshots/1.json", objs[0].Key)
}

func (s *RepositoryTestSuite) TestList_PropagatesError() {
	ch := make(chan minio.ObjectInfo, 1)
	ch <- minio.ObjectInfo{Err: errors.New("access denied")}
	close(ch)
	s.api.On("ListObjects", mock.Anything, "sir", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

	_, err := s.store.List(context.Background(), "", 0)
	s.Error(err)
}

func (s *RepositoryTestSuite) TestDelete() {
	s.api.On("RemoveObject", mock.Anything, "sir", "k", minio.RemoveObjectOptions{}).Return(nil)
	s.NoError(s.store.Delete(context.Background(), "k"))
}

func (s *RepositoryTestSuite) TestClosedClient() {
	s.Require().NoError(s.client.Close())
	_, err := s.store.Download(context.Background(), "k")
	s.ErrorIs(err, ErrClientClosed)
}

func (s *RepositoryTestSuite) TestSnapshotArchive() {
	archive := NewSnapshotArchive(s.store, "", logging.NewNopLogger())
	snap := &incident.Snapshot{ID: "abc", FetchedAt: time.Date(2026, 1, 12, 11, 15, 30, 0, time.UTC)}
	wantKey := "snapshots/2026/01/12/20260112T111530Z-abc.json"
	s.Equal(wantKey, archive.ArchiveKey(snap))

	s.api.On("PutObject", mock.Anything, "sir", wantKey, mock.Anything, int64(2), mock.Anything).
		Return(minio.UploadInfo{Key: wantKey, Size: 2}, nil)

	key, err := archive.Archive(context.Background(), snap, []byte("{}"))
	s.Require().NoError(err)
	s.Equal(wantKey, key)

	_, err = archive.Archive(context.Background(), snap, nil)
	s.Error(err)
	_, err = archive.Archive(context.Background(), nil, []byte("{}"))
	s.Error(err)
}

func (s *RepositoryTestSuite) TestSnapshotArchive_RecentNewestFirst() {
	ch := make(chan minio.ObjectInfo, 3)
	ch <- minio.ObjectInfo{Key: "snapshots/2026/01/10/a.json"}
	ch <- minio.ObjectInfo{Key: "snapshots/2026/01/11/b.json"}
	ch <- minio.ObjectInfo{Key: "snapshots/2026/01/12/c.json"}
	close(ch)
	s.api.On("ListObjects", mock.Anything, "sir", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

	archive := NewSnapshotArchive(s.store, "snapshots/", logging.NewNopLogger())
	objs, err := archive.Recent(context.Background(), 2)
	s.Require().NoError(err)
	s.Require().Len(objs, 2)
	s.Equal("snapshots/2026/01/12/c.json", objs[0].Key)
	s.Equal("snapshots/2026/01/11/b.json", objs[1].Key)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
