package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldmsys/ldm/pkg/api"
	"github.com/ldmsys/ldm/pkg/codec"
	"github.com/ldmsys/ldm/pkg/config"
	"github.com/ldmsys/ldm/pkg/events"
	"github.com/ldmsys/ldm/pkg/identity"
	"github.com/ldmsys/ldm/pkg/log"
	"github.com/ldmsys/ldm/pkg/manager"
	"github.com/ldmsys/ldm/pkg/metrics"
	"github.com/ldmsys/ldm/pkg/repository"
	"github.com/ldmsys/ldm/pkg/scheduler"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/sync"
	"github.com/ldmsys/ldm/pkg/tm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the LDM server",
	Long: `serve boots the configured backend (authoritative or local),
the TM engine, the operation scheduler, the sync engine and the HTTP
request surface, then blocks until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("node-id", "", "Unique node ID (authoritative mode; overrides config's raft.node_id)")
	serveCmd.Flags().String("raft-bind-addr", "", "Address for Raft communication (authoritative mode; overrides config's raft.bind_addr)")
	serveCmd.Flags().Bool("bootstrap", false, "Bootstrap a new single-node cluster (authoritative mode, first run only; overrides config's raft.bootstrap)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.WithComponent("ldmd")
	logger.Info().Str("mode", string(cfg.DatabaseMode)).Str("data_dir", cfg.DataDir).Msg("starting ldmd")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	offlineDir := filepath.Join(cfg.DataDir, "offline")
	if err := os.MkdirAll(offlineDir, 0o755); err != nil {
		return fmt.Errorf("create offline data dir: %w", err)
	}
	indexDir := filepath.Join(cfg.DataDir, "tm-index")
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("create tm index dir: %w", err)
	}

	var (
		repo       *repository.Repository
		schedStore storage.Store
		tmStore    tm.Store
		syncStore  sync.Store
		metricsSrc metrics.Source
		cluster    *manager.Manager
	)

	switch cfg.DatabaseMode {
	case config.ModeAuthoritative:
		nodeID, _ := cmd.Flags().GetString("node-id")
		if nodeID == "" {
			nodeID = cfg.Raft.NodeID
		}
		if nodeID == "" {
			nodeID = "node-1"
		}
		bindAddr, _ := cmd.Flags().GetString("raft-bind-addr")
		if bindAddr == "" {
			bindAddr = cfg.Raft.BindAddr
		}
		if bindAddr == "" {
			bindAddr = "127.0.0.1:7946"
		}
		bootstrap, _ := cmd.Flags().GetBool("bootstrap")
		if !bootstrap {
			bootstrap = cfg.Raft.Bootstrap
		}

		mgr, err := manager.NewManager(&manager.Config{
			NodeID:   nodeID,
			BindAddr: bindAddr,
			DataDir:  cfg.DataDir,
		})
		if err != nil {
			return fmt.Errorf("create manager: %w", err)
		}
		if bootstrap {
			if err := mgr.Bootstrap(); err != nil {
				return fmt.Errorf("bootstrap cluster: %w", err)
			}
			logger.Info().Str("node_id", nodeID).Msg("cluster bootstrapped")
		}
		defer func() {
			if err := mgr.Shutdown(); err != nil {
				logger.Error().Err(err).Msg("manager shutdown")
			}
		}()

		repo = repository.New(repository.NewAuthoritativeBackend(mgr), trashRetention(cfg))
		schedStore = mgr.Store()
		tmStore = mgr
		syncStore = mgr
		metricsSrc = mgr
		cluster = mgr

	case config.ModeLocal:
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		backend := repository.NewLocalBackend(store)
		repo = repository.New(backend, trashRetention(cfg))
		schedStore = store
		tmStore = backend
		syncStore = backend
		metricsSrc = backend

	default:
		return fmt.Errorf("unknown database.mode %q", cfg.DatabaseMode)
	}

	offlineBoltStore, err := storage.NewBoltStore(offlineDir)
	if err != nil {
		return fmt.Errorf("open offline sandbox store: %w", err)
	}
	offlineBackend := repository.NewLocalBackend(offlineBoltStore)
	offlineRepo := repository.New(offlineBackend, trashRetention(cfg))

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	tmEngine := tm.New(tmStore, indexDir, cfg.Cascade)

	schedCfg := scheduler.ConfigFromSettings(cfg.Scheduler, cfg.OperationRetention)
	sched := scheduler.New(schedStore, broker, schedCfg)
	sched.Start()
	defer sched.Stop()

	syncEngine := sync.New(syncStore, offlineBackend)
	reconciler := sync.NewReconciler(syncEngine, time.Duration(cfg.Sync.PollIntervalMS)*time.Millisecond, func() []string {
		return nil // connected-session tracking lives at the API layer; reconciliation is opt-in per deployment until wired to a session registry
	})
	reconciler.Start()
	defer reconciler.Stop()

	identitySvc := identity.NewService(cfg.JWTSecret, 24*time.Hour)
	codecs := codec.NewRegistry()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("backend", true, string(cfg.DatabaseMode))
	metrics.RegisterComponent("scheduler", true, "ready")
	metrics.RegisterComponent("sync", true, "ready")

	collector := metrics.NewCollector(metricsSrc)
	collector.Start()
	defer collector.Stop()

	srv := api.NewServer(api.Deps{
		Config:     cfg,
		Repo:       repo,
		Offline:    offlineRepo,
		TM:         tmEngine,
		Scheduler:  sched,
		SyncEngine: syncEngine,
		Identity:   identitySvc,
		Cluster:    cluster,
		Metrics:    metricsSrc,
		Codecs:     codecs,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("API listening")
		if err := srv.Start(cfg.ListenAddr); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("API server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API shutdown")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func trashRetention(cfg *config.Config) time.Duration {
	if cfg.Trash.RetentionDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(cfg.Trash.RetentionDays) * 24 * time.Hour
}
