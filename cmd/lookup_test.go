package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-cli/internal/config"
	"github.com/sells-group/school-cli/internal/model"
	"github.com/sells-group/school-cli/internal/resolve"
)

const portalPage = `<html><body>
<span id="lblsch_name">Green Valley School</span>
<span id="lblsectui">12000</span>
<span id="lblstu1">30</span>
</body></html>`

// testConfig points every path at a temp dir and the portal at srvURL.
func testConfig(t *testing.T, srvURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "matched_schools.csv"),
		[]byte("Aff No,Person,SCHOOL_ID\n1130999,Asha,S9\n"), 0o644))

	return &config.Config{
		Portal: config.PortalConfig{BaseURL: srvURL, TimeoutSecs: 5, RatePerSec: 100},
		Store: config.StoreConfig{
			Driver:          "csv",
			ProfilesPath:    filepath.Join(dir, "schools.csv"),
			LockTimeoutSecs: 1,
		},
		Reference: config.ReferenceConfig{
			LeadsPath:  filepath.Join(dir, "matched_schools.csv"),
			RoundsPath: filepath.Join(dir, "v2_data.csv"),
		},
		Lead:    config.LeadConfig{CooldownDays: 90, MarkUnique: true},
		Resolve: config.ResolveConfig{Concurrency: 2},
		Server:  config.ServerConfig{Port: 5000},
		Log:     config.LogConfig{Level: "info", Format: "json"},
	}
}

func portalServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("AffNo") == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, portalPage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWriteResults_SingleJSON(t *testing.T) {
	var buf bytes.Buffer
	p := &model.EnrichedProfile{SchoolProfile: model.SchoolProfile{AffNo: "1", Name: model.Found("A")}}
	require.NoError(t, writeResults(&buf, "json", []resolve.Result{{AffNo: "1", Profile: p}}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
	assert.Equal(t, "A", body["school_name"])
	assert.Equal(t, "Not Found", body["address"])
}

func TestWriteResults_ListWithFailures(t *testing.T) {
	var buf bytes.Buffer
	results := []resolve.Result{
		{AffNo: "1", Err: resolve.ErrNotFound},
		{AffNo: "", Err: resolve.ErrInvalidID},
	}
	require.NoError(t, writeResults(&buf, "json", results))

	var body []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "No information found", body[0]["error"])
	assert.Equal(t, "1", body[0]["aff_no"])
	assert.Contains(t, body[1]["error"], "affiliation number required")
}

func TestWriteResults_YAML(t *testing.T) {
	var buf bytes.Buffer
	p := &model.EnrichedProfile{
		SchoolProfile: model.SchoolProfile{AffNo: "1", Name: model.Found("A"), AnnualFee: model.Some(5)},
		LeadStatus:    model.LeadStatusUnique,
	}
	require.NoError(t, writeResults(&buf, "yaml", []resolve.Result{{AffNo: "1", Profile: p}}))

	out := buf.String()
	assert.Contains(t, out, "school_name: A\n")
	assert.Contains(t, out, `fee_structure: "5"`)
	assert.Contains(t, out, "lead_status: Unique Lead\n")
	assert.NotContains(t, out, "journey")
}

func TestWriteResults_UnknownFormat(t *testing.T) {
	err := writeResults(&bytes.Buffer{}, "xml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestInitEnv_ValidatesConfig(t *testing.T) {
	c := testConfig(t, "http://127.0.0.1:0")
	c.Store.Driver = "mongo"
	_, err := initEnv(context.Background(), c, "lookup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestLookupCommand_EndToEnd(t *testing.T) {
	srv := portalServer(t)
	cfg = testConfig(t, srv.URL)
	t.Cleanup(func() { cfg = nil })

	var out bytes.Buffer
	lookupCmd.SetOut(&out)
	lookupCmd.SetContext(context.Background())
	t.Cleanup(func() { lookupCmd.SetOut(nil) })

	require.NoError(t, lookupCmd.RunE(lookupCmd, []string{"1130999"}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "Green Valley School", body["school_name"])
	assert.Equal(t, "12000", body["fee_structure"])
	assert.Equal(t, "30", body["total_strength"])
	assert.Equal(t, "Existing Lead — with Asha", body["lead_status"])
	assert.Equal(t, "S9", body["school_code"])

	data, err := os.ReadFile(cfg.Store.ProfilesPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "1130999"))
}

func TestLookupCommand_ReportsFailures(t *testing.T) {
	srv := portalServer(t)
	cfg = testConfig(t, srv.URL)
	t.Cleanup(func() { cfg = nil })

	var out bytes.Buffer
	lookupCmd.SetOut(&out)
	lookupCmd.SetContext(context.Background())
	t.Cleanup(func() { lookupCmd.SetOut(nil) })

	err := lookupCmd.RunE(lookupCmd, []string{"1130999", "down"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 lookups failed")
	assert.Contains(t, out.String(), "No information found")
}
