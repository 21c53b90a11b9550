// Package postgres provides the PostgreSQL storage adapter for the record
// store. Connections use the pgx driver.
package postgres

import (
	"fmt"

	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/storage/sqldb"
)

// Provider implements ports.Persistence using PostgreSQL.
type Provider struct {
	*sqldb.Store
}

// NewProvider connects to dsn and prepares the schema.
func NewProvider(dsn string, models ports.ModelResolver) (*Provider, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	store, err := sqldb.NewPostgres(dsn, models)
	if err != nil {
		return nil, err
	}
	return &Provider{Store: store}, nil
}

var _ ports.Persistence = (*Provider)(nil)
