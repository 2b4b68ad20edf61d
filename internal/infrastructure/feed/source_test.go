package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

type stubObjects struct {
	data map[string][]byte
}

func (s *stubObjects) Download(_ context.Context, key string) ([]byte, error) {
	if b, ok := s.data[key]; ok {
		return b, nil
	}
	return nil, errors.NotFound("object not found")
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0o600))

	src := NewFileSource(path)
	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:"+path, got.Snapshot.Source)
	assert.Equal(t, []byte(sampleDocument), got.Raw)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Fetch(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedUnavailable))
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dashboard.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(sampleDocument))
		case "/broken.json":
			_, _ = w.Write([]byte("<html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	log := logging.NewNopLogger()

	got, err := NewHTTPSource(srv.URL+"/dashboard.json", 0, log).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Snapshot.RAL.Items, 2)

	_, err = NewHTTPSource(srv.URL+"/missing.json", 0, log).Fetch(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedUnavailable))

	_, err = NewHTTPSource(srv.URL+"/broken.json", 0, log).Fetch(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedMalformed))
}

func TestObjectSource(t *testing.T) {
	objects := &stubObjects{data: map[string][]byte{"feed/dashboard.json": []byte(sampleDocument)}}

	got, err := NewObjectSource(objects, "feed/dashboard.json").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio:feed/dashboard.json", got.Snapshot.Source)

	_, err = NewObjectSource(objects, "feed/other.json").Fetch(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedUnavailable))
	assert.True(t, errors.IsNotFound(err))
}

func TestNewSource(t *testing.T) {
	log := logging.NewNopLogger()
	objects := &stubObjects{}

	src, err := NewSource(SourceConfig{Path: "/tmp/x.json"}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	src, err = NewSource(SourceConfig{Kind: "HTTP", URL: "http://feed/x.json"}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)

	src, err = NewSource(SourceConfig{Kind: "minio", Object: "feed/x.json"}, objects, log)
	require.NoError(t, err)
	assert.IsType(t, &ObjectSource{}, src)

	for _, cfg := range []SourceConfig{
		{Kind: "file"},
		{Kind: "http"},
		{Kind: "minio", Object: "x"},
		{Kind: "ftp"},
	} {
		_, err := NewSource(cfg, nil, log)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig), cfg.Kind)
	}
}
