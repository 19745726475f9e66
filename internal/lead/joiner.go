// Package lead joins resolved school profiles with the sales lead and
// engagement history tables.
package lead

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-cli/internal/model"
)

// DefaultCooldownDays is added to the latest engagement date to get the date
// a school may be pitched again.
const DefaultCooldownDays = 90

// existingLeadFormat renders the lead status for an assigned school.
const existingLeadFormat = "Existing Lead — with %s"

// dateLayouts are tried in order when parsing engagement dates.
var dateLayouts = []string{"2-Jan-2006", "2-1-2006", "2006-1-2"}

// excludedReps marks engagement rows that never counted.
var excludedReps = map[string]bool{"canceled": true, "duplicate": true}

// References is the read side of the lead and engagement tables.
type References interface {
	Load(ctx context.Context) error
	LeadFor(affNo string) (model.LeadAssignment, bool)
	RoundsFor(code string) []model.EngagementRound
}

// Options tunes the joiner.
type Options struct {
	CooldownDays int
	// MarkUnique sets LeadStatus on schools with no assignment.
	MarkUnique bool
}

// Joiner attaches lead status, journey and eligibility to profiles.
type Joiner struct {
	refs References
	opts Options
}

// NewJoiner creates a Joiner over refs.
func NewJoiner(refs References, opts Options) *Joiner {
	if opts.CooldownDays <= 0 {
		opts.CooldownDays = DefaultCooldownDays
	}
	return &Joiner{refs: refs, opts: opts}
}

// Enrich reloads the reference tables and returns a copy of p with
// relationship fields attached. p is not modified.
func (j *Joiner) Enrich(ctx context.Context, p *model.SchoolProfile) (*model.EnrichedProfile, error) {
	if p == nil {
		return nil, eris.New("lead: nil profile")
	}
	if err := j.refs.Load(ctx); err != nil {
		return nil, eris.Wrap(err, "lead: load reference tables")
	}

	out := &model.EnrichedProfile{SchoolProfile: *p}

	la, ok := j.refs.LeadFor(p.AffNo)
	if !ok {
		if j.opts.MarkUnique {
			out.LeadStatus = model.LeadStatusUnique
		}
		return out, nil
	}

	out.LeadStatus = fmt.Sprintf(existingLeadFormat, la.Person)
	out.SchoolCode = la.SchoolCode
	if la.SchoolCode == "" {
		return out, nil
	}

	rounds := j.refs.RoundsFor(la.SchoolCode)
	if len(rounds) == 0 {
		return out, nil
	}

	journey := Journey(rounds)
	out.Journey = journey
	if len(journey) > 0 {
		out.LeadOwner = journey[len(journey)-1].Rep.String()
	}
	out.EligibleAfter = EligibleAfter(journey, j.opts.CooldownDays)

	zap.L().Debug("lead: enriched profile",
		zap.String("aff_no", p.AffNo),
		zap.String("school_code", la.SchoolCode),
		zap.Int("rounds", len(rounds)),
		zap.Int("journey", len(journey)),
	)
	return out, nil
}

// Journey removes duplicate rows and rows whose representative is
// "canceled" or "duplicate", keeping the original order.
func Journey(rounds []model.EngagementRound) []model.EngagementRound {
	seen := make(map[model.RoundKey]bool, len(rounds))
	out := make([]model.EngagementRound, 0, len(rounds))
	for _, r := range rounds {
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		if excludedReps[strings.ToLower(strings.TrimSpace(r.Rep.String()))] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// EligibleAfter returns the latest parseable engagement date plus
// cooldownDays as YYYY-MM-DD, or model.EligibleNotAvailable.
func EligibleAfter(journey []model.EngagementRound, cooldownDays int) string {
	var (
		latest time.Time
		found  bool
	)
	for _, r := range journey {
		if !r.Date.IsFound() {
			continue
		}
		t, ok := ParseDate(r.Date.String())
		if !ok {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	if !found {
		return model.EligibleNotAvailable
	}
	return latest.AddDate(0, 0, cooldownDays).Format("2006-01-02")
}

// ParseDate tries each supported layout in order.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
