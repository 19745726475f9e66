package store

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-cli/internal/fetcher"
	"github.com/sells-group/school-cli/internal/model"
)

// DefaultLockTimeout bounds how long Append waits for the file lock.
const DefaultLockTimeout = 5 * time.Second

const lockRetryDelay = 50 * time.Millisecond

// CSVStore keeps profiles in a header-keyed CSV file and serves lookups from
// an in-memory snapshot that is re-read after every append.
type CSVStore struct {
	path        string
	lock        *flock.Flock
	lockTimeout time.Duration

	// appendMu serializes appends within the process; the file lock covers
	// other processes.
	appendMu sync.Mutex

	mu       sync.RWMutex
	header   []string
	profiles map[string]model.SchoolProfile
	skipped  int
}

// NewCSV opens the profile file at path, creating it with the standard
// header if it does not exist, and loads the snapshot.
func NewCSV(ctx context.Context, path string, lockTimeout time.Duration) (*CSVStore, error) {
	if path == "" {
		return nil, eris.New("csv store: path is required")
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	s := &CSVStore{
		path:        path,
		lock:        flock.New(path + ".lock"),
		lockTimeout: lockTimeout,
	}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates the file with its header when missing and loads it.
func (s *CSVStore) Migrate(ctx context.Context) error {
	if err := EnsureTable(s.path, model.ProfileColumns); err != nil {
		return eris.Wrap(err, "csv store: migrate")
	}
	return s.Reload(ctx)
}

// Close releases the file lock handle.
func (s *CSVStore) Close() error {
	return s.lock.Close()
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Len returns the number of profiles in the snapshot.
func (s *CSVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// Skipped returns how many rows the last reload dropped.
func (s *CSVStore) Skipped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipped
}

// Reload re-reads the file into the snapshot. Malformed rows and rows
// without an affiliation number are skipped. When the same number appears
// twice the earlier row wins.
func (s *CSVStore) Reload(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return eris.Wrap(err, "csv store: open")
	}
	defer f.Close() //nolint:errcheck

	tbl, err := fetcher.ReadTable(ctx, f)
	if err != nil {
		return eris.Wrap(err, "csv store: read")
	}

	profiles := make(map[string]model.SchoolProfile, len(tbl.Rows))
	skipped := tbl.Skipped
	for _, rec := range tbl.Records() {
		p := model.ProfileFromRecord(rec)
		if p.AffNo == "" {
			skipped++
			continue
		}
		if _, ok := profiles[p.AffNo]; ok {
			continue
		}
		profiles[p.AffNo] = p
	}

	header := tbl.Header
	if len(header) == 0 {
		header = model.ProfileColumns
	}

	s.mu.Lock()
	s.header = header
	s.profiles = profiles
	s.skipped = skipped
	s.mu.Unlock()

	if skipped > 0 {
		zap.L().Debug("csv store: skipped rows on reload",
			zap.String("path", s.path),
			zap.Int("skipped", skipped),
		)
	}
	return nil
}

// Lookup returns the profile for affNo from the snapshot.
func (s *CSVStore) Lookup(_ context.Context, affNo string) (*model.SchoolProfile, error) {
	affNo = strings.TrimSpace(affNo)

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[affNo]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Append writes one row for p unless its affiliation number is already on
// disk. The check and the write happen under both a process mutex and an
// exclusive file lock, and the snapshot is reloaded afterwards.
func (s *CSVStore) Append(ctx context.Context, p *model.SchoolProfile) error {
	affNo := strings.TrimSpace(p.AffNo)
	if affNo == "" {
		return ErrNoAffNo
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return eris.Wrapf(err, "csv store: lock %s", s.path)
	}
	if !locked {
		return eris.Errorf("csv store: lock %s not acquired", s.path)
	}
	defer s.lock.Unlock() //nolint:errcheck

	// Another process may have written since our last reload.
	if err := s.Reload(ctx); err != nil {
		return err
	}
	if existing, _ := s.Lookup(ctx, affNo); existing != nil {
		return eris.Wrapf(ErrDuplicate, "csv store: aff no %s", affNo)
	}

	if err := s.writeRow(p); err != nil {
		return err
	}

	zap.L().Debug("csv store: appended profile", zap.String("aff_no", affNo))
	return s.Reload(ctx)
}

func (s *CSVStore) writeRow(p *model.SchoolProfile) error {
	s.mu.RLock()
	header := s.header
	s.mu.RUnlock()

	byCol := make(map[string]string, len(model.ProfileColumns))
	for i, v := range p.Row() {
		byCol[model.ProfileColumns[i]] = v
	}
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = byCol[col]
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrap(err, "csv store: open for append")
	}
	defer f.Close() //nolint:errcheck

	if err := ensureTrailingNewline(f); err != nil {
		return eris.Wrap(err, "csv store: check trailing newline")
	}

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return eris.Wrap(err, "csv store: write row")
	}
	w.Flush()
	return eris.Wrap(w.Error(), "csv store: flush")
}

// ensureTrailingNewline terminates a file whose last line has no newline so
// an appended row starts on its own line.
func ensureTrailingNewline(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte("\n"))
	return err
}

// EnsureTable creates a CSV file holding only the header when path does not
// exist yet.
func EnsureTable(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
