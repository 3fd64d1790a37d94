// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/persistence/file"
	"github.com/specforge/specforge/pkg/persistence/postgresql"
	rediskv "github.com/specforge/specforge/pkg/persistence/redis"
)

// NewPersistence picks a provider from the database URL scheme. Anything that
// is not redis:// or postgres:// is treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "redis://"):
		return rediskv.NewPersistence(databaseURL)
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
