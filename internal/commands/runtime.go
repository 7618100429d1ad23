package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/settled-dev/settled/internal/auditlog"
	"github.com/settled-dev/settled/internal/config"
	"github.com/settled-dev/settled/internal/ledger"
	"github.com/settled-dev/settled/internal/provider"
	"github.com/settled-dev/settled/internal/store"
)

// runtime bundles the wired engine for a command invocation.
type runtime struct {
	cfg      *config.Config
	store    store.Store
	provider provider.SystemRecordProvider
	ledger   *ledger.Service
	close    func()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newRuntime wires store, provider, and ledger from configuration. With no
// database_url the store is in-memory, which only makes sense for serve.
func newRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	var st store.Store
	closer := func() {}
	if cfg.DatabaseURL != "" {
		pg, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		st = pg
		closer = pg.Close
	} else {
		st = store.NewMemory()
	}

	var prov provider.SystemRecordProvider
	if cfg.RecordsCSV != "" {
		f, err := os.Open(cfg.RecordsCSV)
		if err != nil {
			closer()
			return nil, fmt.Errorf("opening records snapshot: %w", err)
		}
		mem, err := provider.ReadRecordsCSV(f)
		f.Close()
		if err != nil {
			closer()
			return nil, err
		}
		prov = mem
	} else {
		prov = provider.NewMemory()
	}
	if cfg.Provider.RetryMaxElapsedSeconds > 0 {
		prov = provider.NewRetrying(prov, time.Duration(cfg.Provider.RetryMaxElapsedSeconds)*time.Second)
	}

	matching, err := cfg.Suggest()
	if err != nil {
		closer()
		return nil, err
	}

	opts := []ledger.Option{}
	if cfg.AuditDir != "" {
		opts = append(opts, ledger.WithAuditor(auditlog.NewLogger(cfg.AuditDir)))
	}

	return &runtime{
		cfg:      cfg,
		store:    st,
		provider: prov,
		ledger:   ledger.New(st, prov, matching, opts...),
		close:    closer,
	}, nil
}
