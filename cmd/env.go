package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/diligence-dashboard/internal/auth"
	"github.com/sells-group/diligence-dashboard/internal/dashboard"
	"github.com/sells-group/diligence-dashboard/internal/fetcher"
	"github.com/sells-group/diligence-dashboard/internal/store"
)

// dashboardEnv holds the store and view-model shared by serve and export.
type dashboardEnv struct {
	Store     store.Store
	Dashboard *dashboard.Dashboard
}

// Close releases resources held by the environment.
func (e *dashboardEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initDashboard opens the store and restores persisted dashboard state.
// Records are not loaded; callers Reload when they need them.
func initDashboard(ctx context.Context, mode string) (*dashboardEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	d, err := dashboard.New(ctx, dashboard.Options{
		Source:    cfg.Data.Source,
		Opener:    fetcher.NewSource(),
		Store:     st,
		Delimiter: cfg.Data.DelimiterRune(),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &dashboardEnv{Store: st, Dashboard: d}, nil
}

// initParameterStore returns the secret source behind POST /auth and ssm
// mode logins: SSM in api and ssm mode, the configured local pair otherwise.
func initParameterStore(ctx context.Context) (auth.ParameterStore, error) {
	if mode := strings.ToLower(cfg.Auth.Mode); mode == auth.ModeAPI || mode == auth.ModeSSM {
		return auth.LoadSSMParameterStore(ctx, cfg.Auth.Region)
	}
	return auth.NewStaticParameterStore(map[string]string{
		cfg.Auth.UsernameParam: cfg.Auth.Username,
		cfg.Auth.PasswordParam: cfg.Auth.Password,
	}), nil
}
