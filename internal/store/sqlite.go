package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/school-cli/internal/model"
)

// profileSQLColumns mirrors model.ProfileColumns for the SQL backends.
var profileSQLColumns = []string{
	"school_name", "aff_no", "udise_code", "principal_name", "principal_number",
	"principal_email", "school_email", "address", "pincode", "website",
	"fee_structure", "total_strength",
}

func profileFromSQL(vals []string) *model.SchoolProfile {
	rec := make(map[string]string, len(vals))
	for i, v := range vals {
		rec[model.ProfileColumns[i]] = v
	}
	p := model.ProfileFromRecord(rec)
	return &p
}

// SQLiteStore implements ProfileStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection and writes serialize anyway.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS school_profiles (
	id               TEXT NOT NULL,
	aff_no           TEXT PRIMARY KEY,
	school_name      TEXT NOT NULL,
	udise_code       TEXT NOT NULL,
	principal_name   TEXT NOT NULL,
	principal_number TEXT NOT NULL,
	principal_email  TEXT NOT NULL,
	school_email     TEXT NOT NULL,
	address          TEXT NOT NULL,
	pincode          TEXT NOT NULL,
	website          TEXT NOT NULL,
	fee_structure    TEXT NOT NULL,
	total_strength   TEXT NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Reload is a no-op; every lookup reads the table directly.
func (s *SQLiteStore) Reload(context.Context) error {
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, affNo string) (*model.SchoolProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+strings.Join(profileSQLColumns, ", ")+` FROM school_profiles WHERE aff_no = ?`,
		strings.TrimSpace(affNo),
	)

	vals := make([]string, len(profileSQLColumns))
	dest := make([]any, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	err := row.Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: lookup %s", affNo)
	}
	return profileFromSQL(vals), nil
}

// Append inserts the profile. The primary key makes the uniqueness check and
// the write a single statement.
func (s *SQLiteStore) Append(ctx context.Context, p *model.SchoolProfile) error {
	affNo := strings.TrimSpace(p.AffNo)
	if affNo == "" {
		return ErrNoAffNo
	}

	args := []any{uuid.New().String(), time.Now().UTC()}
	for _, v := range p.Row() {
		args = append(args, v)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO school_profiles (id, created_at, `+strings.Join(profileSQLColumns, ", ")+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(aff_no) DO NOTHING`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert profile %s", affNo)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrDuplicate, "sqlite: aff no %s", affNo)
	}
	return nil
}
