package dialect

import (
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		dialectType DialectType
		wantName    string
		wantErr     bool
	}{
		{"sqlite", SQLite, "sqlite", false},
		{"postgres", Postgres, "postgres", false},
		{"mysql", DialectType("mysql"), "", true},
		{"unknown", DialectType("unknown"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.dialectType)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driverName string
		wantName   string
		wantDriver string
		wantErr    bool
	}{
		{"sqlite", "sqlite", "sqlite", false},
		{"sqlite3", "sqlite", "sqlite", false},
		{"postgres", "postgres", "pgx", false},
		{"PostgreSQL", "postgres", "pgx", false},
		{"pgx", "postgres", "pgx", false},
		{"unknown", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driverName, func(t *testing.T) {
			d, err := FromDriverName(tt.driverName)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDriverName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}
			if d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
			if d.DriverName() != tt.wantDriver {
				t.Errorf("DriverName() = %v, want %v", d.DriverName(), tt.wantDriver)
			}
		})
	}
}

func TestSQLiteDialect_Rebind(t *testing.T) {
	d := &sqliteDialect{}
	query := "SELECT data FROM records WHERE model = ? AND id = ?"
	if got := d.Rebind(query); got != query {
		t.Errorf("Rebind() = %v, want %v", got, query)
	}
}

func TestPostgresDialect_Rebind(t *testing.T) {
	d := &postgresDialect{}
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT data FROM records WHERE id = ?", "SELECT data FROM records WHERE id = $1"},
		{"SELECT data FROM records WHERE model = ? AND id = ?", "SELECT data FROM records WHERE model = $1 AND id = $2"},
		{"INSERT INTO record_links VALUES (?, ?, ?)", "INSERT INTO record_links VALUES ($1, $2, $3)"},
		{"SELECT * FROM records", "SELECT * FROM records"},
	}

	for _, tt := range tests {
		if got := d.Rebind(tt.query); got != tt.want {
			t.Errorf("Rebind(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestIncrementClause(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{&sqliteDialect{}, "ON CONFLICT(model) DO UPDATE SET value = sequences.value + 1"},
		{&postgresDialect{}, "ON CONFLICT (model) DO UPDATE SET value = sequences.value + 1"},
	}
	for _, tt := range tests {
		if got := tt.dialect.IncrementClause("sequences", "model", "value"); got != tt.want {
			t.Errorf("%s IncrementClause() = %q, want %q", tt.dialect.Name(), got, tt.want)
		}
	}
}

func TestTypesAndPool(t *testing.T) {
	sqlite, _ := New(SQLite)
	postgres, _ := New(Postgres)

	if sqlite.MaxOpenConns() != 1 {
		t.Errorf("sqlite MaxOpenConns() = %d, want 1", sqlite.MaxOpenConns())
	}
	if postgres.MaxOpenConns() != 0 {
		t.Errorf("postgres MaxOpenConns() = %d, want 0", postgres.MaxOpenConns())
	}
	if sqlite.BigIntType() != "INTEGER" || postgres.BigIntType() != "BIGINT" {
		t.Error("unexpected BigIntType")
	}
	if len(sqlite.PragmaStatements()) == 0 || postgres.PragmaStatements() != nil {
		t.Error("only sqlite runs pragmas")
	}
	if !sqlite.SupportsReturning() || !postgres.SupportsReturning() {
		t.Error("both dialects support RETURNING")
	}
}
