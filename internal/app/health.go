package app

import (
	"context"

	"github.com/coprede/sir-dashboard/internal/application/dashboard"
	"github.com/coprede/sir-dashboard/internal/interfaces/http/handlers"
)

// HealthCheckers probes every enabled backend plus the presence of a
// snapshot to serve.
func (i *Infrastructure) HealthCheckers(snapshots dashboard.SnapshotReader) []handlers.HealthChecker {
	var checks []handlers.HealthChecker
	if i.Redis != nil {
		checks = append(checks, handlers.CheckFunc{ComponentName: "redis", Fn: i.Redis.Ping})
	}
	if i.Postgres != nil {
		checks = append(checks, handlers.CheckFunc{ComponentName: "postgres", Fn: i.Postgres.HealthCheck})
	}
	if i.MinIO != nil {
		checks = append(checks, handlers.CheckFunc{ComponentName: "minio", Fn: i.MinIO.HealthCheck})
	}
	if snapshots != nil {
		checks = append(checks, handlers.CheckFunc{ComponentName: "snapshot", Fn: func(ctx context.Context) error {
			_, err := snapshots.Latest(ctx)
			return err
		}})
	}
	return checks
}

// ObjectUploader adapts the object store to the ingest publisher.
type ObjectUploader struct {
	Infra *Infrastructure
}

func (u ObjectUploader) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := u.Infra.Objects.Upload(ctx, key, data, contentType)
	return err
}
