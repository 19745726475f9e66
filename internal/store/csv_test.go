package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-cli/internal/model"
)

const profileHeader = "School Name,Aff No,UDISE Code,Principal Name,Principal Number,Principal Email,School Email,Address,Pincode,Website,Fee Structure,Total Strength\n"

func newTestCSVStore(t *testing.T, content string) *CSVStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schools.csv")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	st, err := NewCSV(context.Background(), path, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func sampleProfile(affNo string) *model.SchoolProfile {
	return &model.SchoolProfile{
		AffNo:          affNo,
		Name:           model.Found("Green Valley School"),
		PrincipalName:  model.Found("S. Iyer"),
		PrincipalEmail: model.Found("iyer@gvs.example"),
		Address:        model.Found("12, Ring Road, Pune"),
		AnnualFee:      model.Some(84000),
		TotalStrength:  model.Some(960),
	}
}

func countLines(t *testing.T, path, needle string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, needle) {
			n++
		}
	}
	return n
}

func TestCSVStore_CreatesFileWithHeader(t *testing.T) {
	st := newTestCSVStore(t, "")

	data, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	assert.Equal(t, profileHeader, string(data))
	assert.Equal(t, 0, st.Len())
}

func TestCSVStore_LookupTrimsAndFillsSentinel(t *testing.T) {
	st := newTestCSVStore(t, profileHeader+
		"Sunrise Academy, 1930001 ,,Meena,,,,Jaipur,302001,,55000,\n")
	ctx := context.Background()

	p, err := st.Lookup(ctx, "  1930001 ")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Sunrise Academy", p.Name.String())
	assert.False(t, p.UDISECode.IsFound())
	assert.Equal(t, model.NotFoundText, p.Website.String())
	assert.Equal(t, model.Some(55000), p.AnnualFee)
	assert.False(t, p.TotalStrength.Valid)

	miss, err := st.Lookup(ctx, "999")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestCSVStore_SkipsMalformedRows(t *testing.T) {
	st := newTestCSVStore(t, profileHeader+
		"A,1,,,,,,,,,,\n"+
		"B,\"2\"broken,,,,,,,,,,\n"+
		"NoAff,,,,,,,,,,,\n"+
		"C,3,,,,,,,,,,,extra\n"+
		"D,4,,,,,,,,,,\n")

	assert.Equal(t, 2, st.Len())
	assert.Equal(t, 2, st.Skipped())

	p, err := st.Lookup(context.Background(), "4")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "D", p.Name.String())

	miss, err := st.Lookup(context.Background(), "3")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestCSVStore_ShortRowsFillSentinel(t *testing.T) {
	st := newTestCSVStore(t, profileHeader+"ABC School,999\n")

	p, err := st.Lookup(context.Background(), "999")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ABC School", p.Name.String())
	assert.Equal(t, model.NotFoundText, p.Website.String())
	assert.False(t, p.AnnualFee.Valid)
	assert.Equal(t, 0, st.Skipped())
}

func TestCSVStore_ByteOrderMarkHeader(t *testing.T) {
	st := newTestCSVStore(t, "\ufeff"+profileHeader+"BOM School,321,,,,,,,,,,\n")
	ctx := context.Background()

	p, err := st.Lookup(ctx, "321")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "BOM School", p.Name.String())

	require.NoError(t, st.Append(ctx, sampleProfile("322")))
	assert.Equal(t, 2, st.Len())
	assert.ErrorIs(t, st.Append(ctx, sampleProfile("321")), ErrDuplicate)
}

func TestCSVStore_FirstRowWins(t *testing.T) {
	st := newTestCSVStore(t, profileHeader+
		"First,7,,,,,,,,,,\n"+
		"Second,7,,,,,,,,,,\n")

	p, err := st.Lookup(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "First", p.Name.String())
}

func TestCSVStore_AppendThenLookup(t *testing.T) {
	st := newTestCSVStore(t, "")
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, sampleProfile("2130456")))

	p, err := st.Lookup(ctx, "2130456")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Green Valley School", p.Name.String())
	assert.Equal(t, "12, Ring Road, Pune", p.Address.String())
	assert.Equal(t, model.Some(84000), p.AnnualFee)
	assert.Equal(t, 1, countLines(t, st.Path(), "2130456"))
}

func TestCSVStore_AppendDuplicate(t *testing.T) {
	st := newTestCSVStore(t, "")
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, sampleProfile("55")))

	changed := sampleProfile("55")
	changed.Name = model.Found("Renamed")
	err := st.Append(ctx, changed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))

	p, err := st.Lookup(ctx, "55")
	require.NoError(t, err)
	assert.Equal(t, "Green Valley School", p.Name.String())
	assert.Equal(t, 1, countLines(t, st.Path(), ",55,"))
}

func TestCSVStore_AppendSeesOtherWriters(t *testing.T) {
	st := newTestCSVStore(t, "")
	ctx := context.Background()

	// Another process writes the row after our snapshot was taken.
	f, err := os.OpenFile(st.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("External,88,,,,,,,,,,\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = st.Append(ctx, sampleProfile("88"))
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestCSVStore_AppendRepairsMissingNewline(t *testing.T) {
	st := newTestCSVStore(t, profileHeader+"Last,1,,,,,,,,,,")
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, sampleProfile("2")))
	assert.Equal(t, 2, st.Len())

	p, err := st.Lookup(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Last", p.Name.String())
}

func TestCSVStore_AppendFollowsFileHeaderOrder(t *testing.T) {
	st := newTestCSVStore(t, "Aff No,School Name,Fee Structure\n")
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, sampleProfile("31")))

	data, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "31,Green Valley School,84000\n")
}

func TestCSVStore_AppendWithoutAffNo(t *testing.T) {
	st := newTestCSVStore(t, "")
	err := st.Append(context.Background(), sampleProfile("  "))
	assert.ErrorIs(t, err, ErrNoAffNo)
}

func TestCSVStore_ConcurrentAppendWritesOnce(t *testing.T) {
	st := newTestCSVStore(t, "")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.Append(ctx, sampleProfile("4242"))
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrDuplicate))
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, countLines(t, st.Path(), "4242"))
}

func TestCSVStore_TwoHandlesSameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schools.csv")
	ctx := context.Background()

	a, err := NewCSV(ctx, path, time.Second)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewCSV(ctx, path, time.Second)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Append(ctx, sampleProfile("600")))
	assert.True(t, errors.Is(b.Append(ctx, sampleProfile("600")), ErrDuplicate))

	require.NoError(t, b.Reload(ctx))
	p, err := b.Lookup(ctx, "600")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewCSV_RequiresPath(t *testing.T) {
	_, err := NewCSV(context.Background(), "", 0)
	assert.Error(t, err)
}

func TestEnsureTable_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "leads.csv")
	require.NoError(t, EnsureTable(path, model.LeadColumns))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Aff No,Person,SCHOOL_ID\n", string(data))

	// Existing files are left alone.
	require.NoError(t, os.WriteFile(path, []byte("custom\n"), 0o644))
	require.NoError(t, EnsureTable(path, model.LeadColumns))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom\n", string(data))
}
