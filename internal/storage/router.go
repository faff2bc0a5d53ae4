// Package storage implements track file writers for local and object storage.
package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/jittakal/geobin/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var _ storage.Router = (*DefaultRouter)(nil)

// DefaultRouter implements Hive-style date partitioning for storage paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: strings.Trim(basePath, "/"),
	}
}

// Route returns the storage path for a feature type at the given time.
// Format: protocol://bucket/basePath/typeName/dt=YYYY-MM-DD/
// An empty basePath is left out.
func (r *DefaultRouter) Route(typeName string, t time.Time) string {
	date := t.UTC().Format("2006-01-02")

	if r.basePath == "" {
		return fmt.Sprintf("%s://%s/%s/dt=%s/", r.protocol, r.bucket, typeName, date)
	}
	return fmt.Sprintf("%s://%s/%s/%s/dt=%s/",
		r.protocol,
		r.bucket,
		r.basePath,
		typeName,
		date,
	)
}

// NewRouterForBackend returns the router matching a storage backend. The
// file backend routes relative to the writer's base path.
func NewRouterForBackend(backend, bucket, basePath string) *DefaultRouter {
	switch backend {
	case "s3":
		return NewRouter("s3", bucket, basePath)
	case "gcs":
		return NewRouter("gs", bucket, basePath)
	case "azure":
		return NewRouter("wasbs", bucket, basePath)
	default:
		return NewRouter("file", "", "")
	}
}
