// Package sqlite provides the SQLite storage adapter for the record store.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/storage/sqldb"
)

// Provider implements ports.Persistence using SQLite.
// It wraps the sqldb implementation.
type Provider struct {
	*sqldb.Store
}

// NewProvider opens (or creates) the database at path. The parent directory
// is created for plain file paths.
func NewProvider(path string, models ports.ModelResolver) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if isFilePath(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := sqldb.NewSQLite(path, models)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Store: store,
	}, nil
}

func isFilePath(path string) bool {
	return path != ":memory:" && !strings.HasPrefix(path, "file:")
}

// Ensure Provider implements ports.Persistence at compile time.
var _ ports.Persistence = (*Provider)(nil)
