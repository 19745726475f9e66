package store

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-cli/internal/fetcher"
	"github.com/sells-group/school-cli/internal/model"
)

// defaultPerson is reported when a lead row names no owner.
const defaultPerson = "Assigned"

// ReferenceTables holds the lead assignment and engagement round tables.
// Both are maintained outside this program and re-read wholesale by Load.
type ReferenceTables struct {
	leadsPath  string
	roundsPath string

	mu     sync.RWMutex
	leads  []model.LeadAssignment
	rounds []model.EngagementRound
}

// NewReferenceTables creates any missing table file with its header.
func NewReferenceTables(leadsPath, roundsPath string) (*ReferenceTables, error) {
	if err := EnsureTable(leadsPath, model.LeadColumns); err != nil {
		return nil, eris.Wrapf(err, "reference: create %s", leadsPath)
	}
	if err := EnsureTable(roundsPath, model.RoundColumns); err != nil {
		return nil, eris.Wrapf(err, "reference: create %s", roundsPath)
	}
	return &ReferenceTables{leadsPath: leadsPath, roundsPath: roundsPath}, nil
}

// Load re-reads both tables.
func (r *ReferenceTables) Load(ctx context.Context) error {
	leadRecs, err := readRecords(ctx, r.leadsPath)
	if err != nil {
		return eris.Wrap(err, "reference: load leads")
	}
	roundRecs, err := readRecords(ctx, r.roundsPath)
	if err != nil {
		return eris.Wrap(err, "reference: load rounds")
	}

	leads := make([]model.LeadAssignment, 0, len(leadRecs))
	for _, rec := range leadRecs {
		la := model.LeadAssignment{
			AffNo:      strings.TrimSpace(rec[model.ColAffNo]),
			Person:     strings.TrimSpace(rec[model.ColPerson]),
			SchoolCode: strings.TrimSpace(rec[model.ColSchoolCode]),
		}
		if la.AffNo == "" {
			continue
		}
		if la.Person == "" {
			la.Person = defaultPerson
		}
		leads = append(leads, la)
	}

	rounds := make([]model.EngagementRound, 0, len(roundRecs))
	for _, rec := range roundRecs {
		rounds = append(rounds, model.EngagementRound{
			SchoolCode:    strings.TrimSpace(rec[model.ColSchoolCode]),
			RoundType:     model.ValueOf(rec[model.ColRoundType]),
			Date:          model.ValueOf(rec[model.ColPrelimsDate]),
			Registration:  model.ValueOf(rec[model.ColRegistration]),
			Participation: model.ValueOf(rec[model.ColParticipation]),
			Rep:           model.ValueOf(rec[model.ColRep]),
		})
	}

	r.mu.Lock()
	r.leads = leads
	r.rounds = rounds
	r.mu.Unlock()

	zap.L().Debug("reference: tables loaded",
		zap.Int("leads", len(leads)),
		zap.Int("rounds", len(rounds)),
	)
	return nil
}

// LeadFor returns the first assignment for affNo.
func (r *ReferenceTables) LeadFor(affNo string) (model.LeadAssignment, bool) {
	affNo = strings.TrimSpace(affNo)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, la := range r.leads {
		if la.AffNo == affNo {
			return la, true
		}
	}
	return model.LeadAssignment{}, false
}

// RoundsFor returns the rounds recorded for a school code in file order.
func (r *ReferenceTables) RoundsFor(code string) []model.EngagementRound {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.EngagementRound
	for _, round := range r.rounds {
		if round.SchoolCode == code {
			out = append(out, round)
		}
	}
	return out
}

func readRecords(ctx context.Context, path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	tbl, err := fetcher.ReadTable(ctx, f)
	if err != nil {
		return nil, err
	}
	return tbl.Records(), nil
}
