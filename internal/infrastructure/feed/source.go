package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// maxDocumentBytes bounds a single feed document.
const maxDocumentBytes = 64 << 20

// Fetched is a decoded snapshot together with the bytes it came from.
type Fetched struct {
	Snapshot *incident.Snapshot
	Raw      []byte
}

// Source produces the current feed document.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Fetched, error)
}

// SourceConfig selects and configures a Source.
type SourceConfig struct {
	// Kind is one of "file", "http" or "minio".
	Kind    string        `mapstructure:"kind"`
	Path    string        `mapstructure:"path"`
	URL     string        `mapstructure:"url"`
	Object  string        `mapstructure:"object"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ObjectDownloader is the part of the object store a Source needs.
type ObjectDownloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// NewSource builds the configured Source. objects is only required for the
// "minio" kind.
func NewSource(cfg SourceConfig, objects ObjectDownloader, log logging.Logger) (Source, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "file":
		if cfg.Path == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "feed.path is required for file source")
		}
		return NewFileSource(cfg.Path), nil
	case "http":
		if cfg.URL == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "feed.url is required for http source")
		}
		return NewHTTPSource(cfg.URL, cfg.Timeout, log), nil
	case "minio":
		if objects == nil || cfg.Object == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "feed.object and minio are required for minio source")
		}
		return NewObjectSource(objects, cfg.Object), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown feed source kind").WithDetail(cfg.Kind)
	}
}

func decodeFetched(source string, raw []byte) (*Fetched, error) {
	snap, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	snap.Source = source
	return &Fetched{Snapshot: snap, Raw: raw}, nil
}

// FileSource reads the document from the local filesystem.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource { return &FileSource{path: path} }

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Fetch(ctx context.Context) (*Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFeedUnavailable, "read feed file").WithDetail(s.path)
	}
	return decodeFetched(s.Name(), raw)
}

// HTTPSource downloads the document with a GET request.
type HTTPSource struct {
	url    string
	client *http.Client
	logger logging.Logger
}

func NewHTTPSource(url string, timeout time.Duration, log logging.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{url: url, client: &http.Client{Timeout: timeout}, logger: log}
}

func (s *HTTPSource) Name() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "build feed request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFeedUnavailable, "fetch feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeFeedUnavailable, "unexpected feed status").
			WithDetail(fmt.Sprintf("%s: HTTP %d", s.url, resp.StatusCode))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFeedUnavailable, "read feed body")
	}
	s.logger.Debug("Feed downloaded",
		logging.String("url", s.url),
		logging.Int("bytes", len(raw)),
		logging.Duration("took", time.Since(start)))
	return decodeFetched(s.Name(), raw)
}

// ObjectSource reads the document from object storage.
type ObjectSource struct {
	objects ObjectDownloader
	key     string
}

func NewObjectSource(objects ObjectDownloader, key string) *ObjectSource {
	return &ObjectSource{objects: objects, key: key}
}

func (s *ObjectSource) Name() string { return "minio:" + s.key }

func (s *ObjectSource) Fetch(ctx context.Context) (*Fetched, error) {
	raw, err := s.objects.Download(ctx, s.key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFeedUnavailable, "download feed object").WithDetail(s.key)
	}
	return decodeFetched(s.Name(), raw)
}
