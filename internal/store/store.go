// Package store persists resolved school profiles and reads the lead and
// engagement reference tables.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/school-cli/internal/model"
)

// ErrDuplicate is returned by Append when the affiliation number is already
// stored. The existing row is left untouched.
var ErrDuplicate = eris.New("store: profile already exists")

// ErrNoAffNo is returned when appending a profile without an identifier.
var ErrNoAffNo = eris.New("store: profile has no aff no")

// ProfileStore is an append-only collection of resolved profiles keyed by
// affiliation number. The first write for an identifier wins.
type ProfileStore interface {
	// Lookup returns the stored profile, or nil with no error on a miss.
	Lookup(ctx context.Context, affNo string) (*model.SchoolProfile, error)
	// Append adds a profile after checking it is not already present.
	Append(ctx context.Context, p *model.SchoolProfile) error
	// Reload refreshes any in-memory snapshot from durable storage.
	Reload(ctx context.Context) error

	Migrate(ctx context.Context) error
	Close() error
}

// Options selects and configures a ProfileStore backend.
type Options struct {
	Driver       string // csv, sqlite or postgres
	ProfilesPath string
	DatabaseURL  string
	LockTimeout  time.Duration
}

// Open creates the configured store and prepares its schema.
func Open(ctx context.Context, opts Options) (ProfileStore, error) {
	var (
		st  ProfileStore
		err error
	)
	switch opts.Driver {
	case "", "csv":
		st, err = NewCSV(ctx, opts.ProfilesPath, opts.LockTimeout)
	case "sqlite":
		st, err = NewSQLite(opts.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, opts.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
