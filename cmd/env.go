package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-cli/internal/config"
	"github.com/sells-group/school-cli/internal/fetcher"
	"github.com/sells-group/school-cli/internal/lead"
	"github.com/sells-group/school-cli/internal/resolve"
	"github.com/sells-group/school-cli/internal/store"
)

// appEnv holds the store and resolver shared by the lookup and serve
// commands.
type appEnv struct {
	Store    store.ProfileStore
	Resolver *resolve.Resolver
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode and wires the portal, store, reference
// tables and resolver. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	refs, err := store.NewReferenceTables(c.Reference.LeadsPath, c.Reference.RoundsPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	dl := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Portal.UserAgent,
		Timeout:    time.Duration(c.Portal.TimeoutSecs) * time.Second,
		RatePerSec: c.Portal.RatePerSec,
	})
	guarded := fetcher.NewBreakerDownloader(dl, fetcher.BreakerConfig{
		FailureThreshold: c.Portal.BreakerThreshold,
		ResetTimeout:     time.Duration(c.Portal.BreakerResetSecs) * time.Second,
	})
	portal := fetcher.NewPortal(guarded, c.Portal.BaseURL)

	joiner := lead.NewJoiner(refs, lead.Options{
		CooldownDays: c.Lead.CooldownDays,
		MarkUnique:   c.Lead.MarkUnique,
	})

	zap.L().Debug("environment ready",
		zap.String("store_driver", c.Store.Driver),
		zap.String("portal", c.Portal.BaseURL),
	)

	return &appEnv{
		Store: st,
		Resolver: resolve.New(portal, st, joiner, resolve.Options{
			TreatEmptyAsMissing: c.Resolve.TreatEmptyAsMissing,
		}),
	}, nil
}

func openStore(ctx context.Context, c *config.Config) (store.ProfileStore, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:       c.Store.Driver,
		ProfilesPath: c.Store.ProfilesPath,
		DatabaseURL:  c.Store.DatabaseURL,
		LockTimeout:  time.Duration(c.Store.LockTimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
