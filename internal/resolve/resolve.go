// Package resolve reconciles live portal data with the local profile store
// and attaches lead relationships.
package resolve

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/school-cli/internal/fetcher"
	"github.com/sells-group/school-cli/internal/model"
	"github.com/sells-group/school-cli/internal/store"
)

var (
	// ErrInvalidID is returned for an empty affiliation number.
	ErrInvalidID = eris.New("resolve: affiliation number required")
	// ErrNotFound is returned when neither the portal nor the store has the
	// school.
	ErrNotFound = eris.New("resolve: no information found")
)

// DefaultConcurrency bounds ResolveAll when no limit is given.
const DefaultConcurrency = 4

// Fetcher retrieves a live profile.
type Fetcher interface {
	Fetch(ctx context.Context, affNo string) (*model.SchoolProfile, error)
	DetailURL(affNo string) string
}

// Enricher attaches relationship data to a profile.
type Enricher interface {
	Enrich(ctx context.Context, p *model.SchoolProfile) (*model.EnrichedProfile, error)
}

// Options tunes resolution policy.
type Options struct {
	// TreatEmptyAsMissing handles a fetched page with no recognizable fields
	// like an unreachable portal.
	TreatEmptyAsMissing bool
}

// Resolver produces the best available profile for an affiliation number.
type Resolver struct {
	fetcher  Fetcher
	store    store.ProfileStore
	enricher Enricher
	opts     Options
}

// New creates a Resolver.
func New(f Fetcher, st store.ProfileStore, e Enricher, opts Options) *Resolver {
	return &Resolver{fetcher: f, store: st, enricher: e, opts: opts}
}

// Resolve fetches the live profile and persists it when new. If the portal
// cannot be reached the stored copy is served instead.
func (r *Resolver) Resolve(ctx context.Context, affNo string) (*model.EnrichedProfile, error) {
	affNo = strings.TrimSpace(affNo)
	if affNo == "" {
		return nil, ErrInvalidID
	}
	log := zap.L().With(zap.String("aff_no", affNo))
	start := time.Now()

	profile, err := r.fetch(ctx, affNo)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "resolve: cancelled")
		}
		log.Warn("resolve: portal unavailable, using store",
			zap.String("reason", fetcher.FailureReason(err)),
			zap.Error(err),
		)
		profile, err = r.fromStore(ctx, affNo)
		if err != nil {
			return nil, err
		}
	} else {
		r.persist(ctx, profile)
	}

	out, err := r.enricher.Enrich(ctx, profile)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: enrich %s", affNo)
	}

	log.Info("resolve: complete",
		zap.Bool("has_data", profile.HasData()),
		zap.String("lead_status", out.LeadStatus),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}

func (r *Resolver) fetch(ctx context.Context, affNo string) (*model.SchoolProfile, error) {
	p, err := r.fetcher.Fetch(ctx, affNo)
	if err != nil {
		return nil, err
	}
	if r.opts.TreatEmptyAsMissing && !p.HasData() {
		return nil, eris.Wrapf(fetcher.ErrUnavailable, "resolve: empty page for %s", affNo)
	}
	return p, nil
}

func (r *Resolver) fromStore(ctx context.Context, affNo string) (*model.SchoolProfile, error) {
	p, err := r.store.Lookup(ctx, affNo)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: store lookup %s", affNo)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	p.SourceURL = r.fetcher.DetailURL(affNo)
	return p, nil
}

// persist appends a freshly fetched profile unless it is already stored.
// Failures are logged and never reach the caller.
func (r *Resolver) persist(ctx context.Context, p *model.SchoolProfile) {
	log := zap.L().With(zap.String("aff_no", p.AffNo))

	existing, err := r.store.Lookup(ctx, p.AffNo)
	if err != nil {
		log.Error("resolve: store lookup failed", zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	err = r.store.Append(ctx, p)
	switch {
	case err == nil:
		log.Debug("resolve: profile stored")
	case errors.Is(err, store.ErrDuplicate):
		log.Debug("resolve: profile stored concurrently")
	default:
		log.Error("resolve: store append failed", zap.Error(err))
	}
}

// Result is the outcome of one resolution in a batch.
type Result struct {
	AffNo   string                 `json:"aff_no"`
	Profile *model.EnrichedProfile `json:"profile,omitempty"`
	Err     error                  `json:"-"`
}

// Batch collects the results of ResolveAll in input order.
type Batch struct {
	Results   []Result
	NotFound  []string
	Succeeded int64
	Failed    int64
}

// ResolveAll resolves ids with at most concurrency resolutions in flight.
// A failed id does not stop the others.
func (r *Resolver) ResolveAll(ctx context.Context, ids []string, concurrency int) (*Batch, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(ids))
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			p, err := r.Resolve(gctx, id)
			results[i] = Result{AffNo: strings.TrimSpace(id), Profile: p, Err: err}
			if err != nil {
				failed.Add(1)
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "resolve: batch")
	}

	b := &Batch{Results: results, Succeeded: succeeded.Load(), Failed: failed.Load()}
	for _, res := range results {
		if errors.Is(res.Err, ErrNotFound) {
			b.NotFound = append(b.NotFound, res.AffNo)
		}
	}

	zap.L().Info("resolve: batch complete",
		zap.Int("total", len(ids)),
		zap.Int64("succeeded", b.Succeeded),
		zap.Int64("failed", b.Failed),
		zap.Int("not_found", len(b.NotFound)),
	)
	return b, nil
}
