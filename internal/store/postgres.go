package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/school-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements ProfileStore using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
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
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Reload is a no-op; every lookup reads the table directly.
func (s *PostgresStore) Reload(context.Context) error {
	return nil
}

func (s *PostgresStore) Lookup(ctx context.Context, affNo string) (*model.SchoolProfile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+strings.Join(profileSQLColumns, ", ")+` FROM school_profiles WHERE aff_no = $1`,
		strings.TrimSpace(affNo),
	)

	vals := make([]string, len(profileSQLColumns))
	dest := make([]any, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: lookup %s", affNo)
	}
	return profileFromSQL(vals), nil
}

func (s *PostgresStore) Append(ctx context.Context, p *model.SchoolProfile) error {
	affNo := strings.TrimSpace(p.AffNo)
	if affNo == "" {
		return ErrNoAffNo
	}

	args := []any{uuid.New().String()}
	placeholders := []string{"$1"}
	for _, v := range p.Row() {
		args = append(args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO school_profiles (id, `+strings.Join(profileSQLColumns, ", ")+`)
		 VALUES (`+strings.Join(placeholders, ", ")+`)
		 ON CONFLICT (aff_no) DO NOTHING`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert profile %s", affNo)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDuplicate, "postgres: aff no %s", affNo)
	}
	return nil
}
