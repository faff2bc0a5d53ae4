// Package catalog persists feature type definitions as canonical spec
// strings keyed by type name.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jittakal/geobin/internal/config/dto"
	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/internal/featuretype"
)

// Store is a key/value backend for spec strings.
type Store interface {
	// Put creates or replaces the spec for typeName.
	Put(ctx context.Context, typeName, spec string) error

	// Get returns the spec for typeName, or ErrSchemaNotFound.
	Get(ctx context.Context, typeName string) (string, error)

	// List returns every stored type name.
	List(ctx context.Context) ([]string, error)

	// Delete removes typeName, or returns ErrSchemaNotFound.
	Delete(ctx context.Context, typeName string) error

	Close() error
}

// MetricsCollector records catalog operations.
type MetricsCollector interface {
	IncCatalogOperations(backend string, operation string, status string)
}

// Catalog registers and loads feature types.
type Catalog struct {
	store   Store
	backend string
	logger  *zap.Logger
	metrics MetricsCollector
}

// New wraps a store. backend labels logs and metrics.
func New(store Store, backend string, logger *zap.Logger, metrics MetricsCollector) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{store: store, backend: backend, logger: logger, metrics: metrics}
}

// Open creates the store selected by cfg.
func Open(ctx context.Context, cfg dto.CatalogConfig, logger *zap.Logger, metrics MetricsCollector) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend := strings.ToLower(cfg.Backend)
	var (
		store Store
		err   error
	)
	switch backend {
	case "", "memory":
		backend = "memory"
		store = NewMemoryStore()
	case "sqlite":
		store, err = OpenSQLite(ctx, cfg.SQLite.Path)
	case "postgres":
		store, err = OpenPostgres(ctx, cfg.Postgres.DSN)
	case "redis":
		store, err = OpenRedis(ctx, cfg.Redis)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s catalog: %w", backend, err)
	}

	if logger != nil {
		logger.Info("schema catalog opened", zap.String("backend", backend))
	}
	return New(store, backend, logger, metrics), nil
}

// Register stores the canonical spec of ft under its type name.
func (c *Catalog) Register(ctx context.Context, ft *featuretype.FeatureType) error {
	err := c.store.Put(ctx, ft.TypeName(), ft.Spec())
	c.record("register", err)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ft.TypeName(), err)
	}
	c.logger.Info("schema registered",
		zap.String("type_name", ft.TypeName()),
		zap.String("spec", ft.Spec()),
	)
	return nil
}

// Load rebuilds a stored feature type.
func (c *Catalog) Load(ctx context.Context, typeName string) (*featuretype.FeatureType, error) {
	text, err := c.store.Get(ctx, typeName)
	c.record("load", err)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", typeName, err)
	}
	return featuretype.FromSpec(typeName, text)
}

// Spec returns the stored spec string for typeName.
func (c *Catalog) Spec(ctx context.Context, typeName string) (string, error) {
	text, err := c.store.Get(ctx, typeName)
	c.record("load", err)
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", typeName, err)
	}
	return text, nil
}

// List returns the registered type names in sorted order.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	names, err := c.store.List(ctx)
	c.record("list", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes a registered type.
func (c *Catalog) Remove(ctx context.Context, typeName string) error {
	err := c.store.Delete(ctx, typeName)
	c.record("remove", err)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", typeName, err)
	}
	c.logger.Info("schema removed", zap.String("type_name", typeName))
	return nil
}

// Close closes the underlying store.
func (c *Catalog) Close() error {
	return c.store.Close()
}

func (c *Catalog) record(op string, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	switch {
	case errors.Is(err, apperrors.ErrSchemaNotFound):
		status = "not_found"
	case err != nil:
		status = "failure"
	}
	c.metrics.IncCatalogOperations(c.backend, op, status)
}
