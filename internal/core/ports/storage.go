package ports

import (
	"context"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
)

// Persistence is the record store the actions write through.
// Implementations: in-memory, SQL (sqlite, postgres).
type Persistence interface {
	// Create inserts a record and returns it as stored, primary key included.
	Create(ctx context.Context, model *domain.Model, data domain.Record) (domain.Record, error)

	// Update merges data into the records matching pk and returns the updated
	// records.
	Update(ctx context.Context, model *domain.Model, pk any, data domain.Record) ([]domain.Record, error)

	// FindOne returns the record with the given key, resolving the listed
	// associations into related records. It returns nil, nil when absent.
	FindOne(ctx context.Context, model *domain.Model, pk any, populate []domain.Association) (domain.Record, error)

	// ReplaceCollection sets the full membership of a collection association.
	ReplaceCollection(ctx context.Context, model *domain.Model, pk any, association string, ids []any) error

	// CollectionIDs lists the member identifiers of a collection association.
	CollectionIDs(ctx context.Context, model *domain.Model, pk any, association string) ([]any, error)

	// Close closes the storage connection
	Close() error
}
