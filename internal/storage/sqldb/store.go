package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/storage"
	"github.com/tjfontaine/blueprint-api/internal/storage/dialect"
)

// Store is a SQL implementation of ports.Persistence that supports multiple
// database dialects. Records of every model share one table keyed by
// (model, id) with their attributes held as JSON; collection memberships
// live in record_links.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
	models  ports.ModelResolver
	now     func() time.Time
}

// Ensure Store implements Persistence
var _ ports.Persistence = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config, models ports.ModelResolver) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if n := d.MaxOpenConns(); n > 0 {
		db.SetMaxOpenConns(n)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d, models: models, now: time.Now}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string, models ports.ModelResolver) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath}, models)
}

// NewPostgres creates a new PostgreSQL store using the pgx driver.
func NewPostgres(dsn string, models ports.ModelResolver) (*Store, error) {
	return New(Config{Driver: "pgx", DSN: dsn}, models)
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) initSchema() error {
	text, ts, bigint := s.dialect.TextType(), s.dialect.TimestampType(), s.dialect.BigIntType()
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS records (
model %[1]s NOT NULL,
id %[1]s NOT NULL,
data %[1]s NOT NULL,
created_at %[2]s NOT NULL,
updated_at %[2]s NOT NULL,
PRIMARY KEY (model, id)
)`, text, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS record_links (
model %[1]s NOT NULL,
id %[1]s NOT NULL,
association %[1]s NOT NULL,
seq %[2]s NOT NULL,
target_id %[1]s NOT NULL,
PRIMARY KEY (model, id, association, seq)
)`, text, bigint),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sequences (
model %[1]s PRIMARY KEY,
value %[2]s NOT NULL
)`, text, bigint),
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return err
		}
	}
	return nil
}

type recordRow struct {
	ID        string    `db:"id"`
	Data      string    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *Store) Create(ctx context.Context, model *domain.Model, data domain.Record) (domain.Record, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	pk, err := storage.NewKey(model, data, func() (int64, error) {
		return s.nextSequence(ctx, tx, model.Name)
	})
	if err != nil {
		return nil, err
	}
	id := domain.IDString(pk)

	var exists int
	query := s.dialect.Rebind(`SELECT COUNT(*) FROM records WHERE model = ? AND id = ?`)
	if err := tx.GetContext(ctx, &exists, query, model.Name, id); err != nil {
		return nil, fmt.Errorf("failed to check %s %s: %w", model.Name, id, err)
	}
	if exists > 0 {
		return nil, domain.ErrConflict(fmt.Sprintf("%s %s already exists", model.Name, id))
	}

	base := storage.Base(model, data)
	payload, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", model.Name, err)
	}

	now := s.now().UTC()
	query = s.dialect.Rebind(`INSERT INTO records (model, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, model.Name, id, string(payload), now, now); err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", model.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return s.decode(model, recordRow{ID: id, Data: string(payload), CreatedAt: now, UpdatedAt: now})
}

func (s *Store) nextSequence(ctx context.Context, tx *sqlx.Tx, model string) (int64, error) {
	upsert := `INSERT INTO sequences (model, value) VALUES (?, 1) ` + s.dialect.IncrementClause("sequences", "model", "value")

	var next int64
	if s.dialect.SupportsReturning() {
		if err := tx.GetContext(ctx, &next, s.dialect.Rebind(upsert+` RETURNING value`), model); err != nil {
			return 0, fmt.Errorf("failed to allocate %s key: %w", model, err)
		}
		return next, nil
	}

	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(upsert), model); err != nil {
		return 0, fmt.Errorf("failed to allocate %s key: %w", model, err)
	}
	if err := tx.GetContext(ctx, &next, s.dialect.Rebind(`SELECT value FROM sequences WHERE model = ?`), model); err != nil {
		return 0, fmt.Errorf("failed to read %s key: %w", model, err)
	}
	return next, nil
}

func (s *Store) Update(ctx context.Context, model *domain.Model, pk any, data domain.Record) ([]domain.Record, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := domain.IDString(pk)
	var row recordRow
	query := s.dialect.Rebind(`SELECT id, data, created_at, updated_at FROM records WHERE model = ? AND id = ?`)
	if err := tx.GetContext(ctx, &row, query, model.Name, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.Record{}, nil
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", model.Name, id, err)
	}

	current, err := decodeData(row.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", model.Name, id, err)
	}
	for k, v := range storage.Base(model, data) {
		current[k] = v
	}
	payload, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", model.Name, err)
	}

	row.Data = string(payload)
	row.UpdatedAt = s.now().UTC()
	query = s.dialect.Rebind(`UPDATE records SET data = ?, updated_at = ? WHERE model = ? AND id = ?`)
	if _, err := tx.ExecContext(ctx, query, row.Data, row.UpdatedAt, model.Name, id); err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", model.Name, id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	rec, err := s.decode(model, row)
	if err != nil {
		return nil, err
	}
	return []domain.Record{rec}, nil
}

func (s *Store) FindOne(ctx context.Context, model *domain.Model, pk any, populate []domain.Association) (domain.Record, error) {
	rec, err := s.get(ctx, model, pk)
	if err != nil || rec == nil {
		return nil, err
	}

	members := func(ctx context.Context, association string) ([]any, error) {
		return s.CollectionIDs(ctx, model, pk, association)
	}
	if err := storage.Resolve(ctx, s.models, rec, populate, s.get, members); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) get(ctx context.Context, model *domain.Model, pk any) (domain.Record, error) {
	var row recordRow
	query := s.dialect.Rebind(`SELECT id, data, created_at, updated_at FROM records WHERE model = ? AND id = ?`)
	if err := s.db.GetContext(ctx, &row, query, model.Name, domain.IDString(pk)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s %v: %w", model.Name, pk, err)
	}
	return s.decode(model, row)
}

func (s *Store) ReplaceCollection(ctx context.Context, model *domain.Model, pk any, association string, ids []any) error {
	_, target, err := storage.Target(s.models, model, association)
	if err != nil {
		return err
	}

	owner, err := s.get(ctx, model, pk)
	if err != nil {
		return err
	}
	if owner == nil {
		return domain.ErrNotFound(fmt.Sprintf("%s %v does not exist", model.Name, pk))
	}

	members := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		id, err := target.ParsePK(raw)
		if err != nil {
			return storage.UnknownRelation(association, target, raw)
		}
		key := domain.IDString(id)
		if seen[key] {
			continue
		}
		related, err := s.get(ctx, target, id)
		if err != nil {
			return err
		}
		if related == nil {
			return storage.UnknownRelation(association, target, raw)
		}
		seen[key] = true
		members = append(members, key)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ownerID := domain.IDString(pk)
	query := s.dialect.Rebind(`DELETE FROM record_links WHERE model = ? AND id = ? AND association = ?`)
	if _, err := tx.ExecContext(ctx, query, model.Name, ownerID, association); err != nil {
		return fmt.Errorf("failed to clear %s.%s: %w", model.Name, association, err)
	}

	query = s.dialect.Rebind(`INSERT INTO record_links (model, id, association, seq, target_id) VALUES (?, ?, ?, ?, ?)`)
	for i, member := range members {
		if _, err := tx.ExecContext(ctx, query, model.Name, ownerID, association, i, member); err != nil {
			return fmt.Errorf("failed to link %s.%s: %w", model.Name, association, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Store) CollectionIDs(ctx context.Context, model *domain.Model, pk any, association string) ([]any, error) {
	_, target, err := storage.Target(s.models, model, association)
	if err != nil {
		return nil, err
	}

	var raw []string
	query := s.dialect.Rebind(`SELECT target_id FROM record_links WHERE model = ? AND id = ? AND association = ? ORDER BY seq`)
	if err := s.db.SelectContext(ctx, &raw, query, model.Name, domain.IDString(pk), association); err != nil {
		return nil, fmt.Errorf("failed to list %s.%s: %w", model.Name, association, err)
	}

	ids := make([]any, 0, len(raw))
	for _, r := range raw {
		id, err := target.ParsePK(r)
		if err != nil {
			return nil, fmt.Errorf("corrupt link %s.%s -> %q: %w", model.Name, association, r, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) decode(model *domain.Model, row recordRow) (domain.Record, error) {
	rec, err := decodeData(row.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", model.Name, row.ID, err)
	}
	pk, err := model.ParsePK(row.ID)
	if err != nil {
		return nil, err
	}
	rec[model.PrimaryKey] = pk
	rec["createdAt"] = row.CreatedAt.UTC()
	rec["updatedAt"] = row.UpdatedAt.UTC()
	return rec, nil
}

func decodeData(data string) (domain.Record, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	rec := domain.Record{}
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
