package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/simex/api"
	"github.com/rustyeddy/simex/config"
	"github.com/rustyeddy/simex/internal/dbg"
	"github.com/rustyeddy/simex/journal"
	"github.com/rustyeddy/simex/market"
	"github.com/rustyeddy/simex/sim"
	"github.com/rustyeddy/simex/state"
)

var devLog bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the emulator API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&devLog, "dev", false, "human-readable log output")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	// .env may point at the config file in container setups.
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		path = os.Getenv("SIMEX_CONFIG")
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := dbg.NewProdLogger()
	if devLog {
		logger = dbg.NewDevLogger()
	}
	defer func() { _ = logger.Sync() }()

	step := time.Duration(cfg.Simulation.StepMinutes) * time.Minute
	store, err := market.LoadDir(cfg.Data.KlinesDir, step)
	if err != nil {
		return fmt.Errorf("load klines: %w", err)
	}
	start, ok := store.Earliest()
	if !ok {
		return fmt.Errorf("kline data is empty")
	}
	logger.Info("klines loaded",
		zap.Strings("symbols", store.Symbols()),
		zap.Time("earliest", start))

	jrnl, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = jrnl.Close() }()

	engine := sim.New(cfg.EngineConfig(start), store, jrnl, logger)

	snapStore, err := state.NewStore(cfg.Data.StatePath)
	if err != nil {
		return err
	}
	snap, err := snapStore.Load()
	switch {
	case err == nil:
		if err := engine.Restore(snap); err != nil {
			return fmt.Errorf("restore state: %w", err)
		}
	case errors.Is(err, sim.ErrNotFound):
		logger.Info("no saved state, starting fresh",
			zap.Float64("balance", cfg.Account.Balance),
			zap.Time("time", engine.CurrentTime()))
	default:
		return fmt.Errorf("load state: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Simulation.AutoSaveSeconds > 0 {
		go autoSave(ctx, engine, snapStore, logger,
			time.Duration(cfg.Simulation.AutoSaveSeconds)*time.Second)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewServer(engine, store, snapStore, logger),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", cfg.Server.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	// Final save so a clean shutdown never loses state.
	if err := snapStore.Save(engine.Snapshot()); err != nil {
		logger.Error("final state save", zap.Error(err))
		return err
	}
	return nil
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(cfg.Journal.FillsFile, cfg.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
	return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
}

// autoSave periodically snapshots the engine. Snapshot() holds the engine
// lock, so saves never observe a half-applied step.
func autoSave(ctx context.Context, engine *sim.Engine, store *state.Store, logger *zap.Logger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := store.Save(engine.Snapshot()); err != nil {
				logger.Warn("auto save", zap.Error(err))
			}
		}
	}
}
