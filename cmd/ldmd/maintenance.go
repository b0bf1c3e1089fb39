package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ldmsys/ldm/pkg/config"
	"github.com/ldmsys/ldm/pkg/log"
	"github.com/ldmsys/ldm/pkg/repository"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/tm"
)

// Maintenance subcommands open a data directory's store directly rather
// than going through the scheduler/API, the same way warren-migrate
// operated straight on a bbolt file: run them against a data directory
// whose ldmd is not currently serving it, since neither subcommand takes
// the single-writer gate a running process holds.

var tmCmd = &cobra.Command{
	Use:   "tm",
	Short: "Translation memory maintenance",
}

var tmReindexCmd = &cobra.Command{
	Use:   "reindex TM_ID",
	Short: "Rebuild a TM's persistent vector index from its stored entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runTMReindex,
}

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Trash maintenance",
}

var trashSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Permanently delete trash items past their retention window",
	RunE:  runTrashSweep,
}

func init() {
	tmCmd.PersistentFlags().String("data-dir", "./data", "Data directory (as passed to 'serve')")
	tmCmd.AddCommand(tmReindexCmd)

	trashCmd.PersistentFlags().String("data-dir", "./data", "Data directory (as passed to 'serve')")
	trashCmd.AddCommand(trashSweepCmd)
}

func runTMReindex(cmd *cobra.Command, args []string) error {
	tmID := args[0]
	dataDir, _ := cmd.Flags().GetString("data-dir")

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	indexDir := filepath.Join(dataDir, "tm-index")
	cfg := config.Default()
	engine := tm.New(store, indexDir, cfg.Cascade)

	logger := log.WithComponent("ldmd")
	logger.Info().Str("tm_id", tmID).Msg("reindexing")

	// ImportEntries with no new pairs still re-reads every stored entry
	// and rebuilds the index, the same codepath import uses after
	// streaming pairs in — reindexing is just that rebuild with an empty
	// delta.
	count, err := engine.ImportEntries(tmID, nil, nil)
	if err != nil {
		return fmt.Errorf("reindex tm %s: %w", tmID, err)
	}
	fmt.Printf("reindexed tm %s: %d entries\n", tmID, count)
	return nil
}

func runTrashSweep(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	backend := repository.NewLocalBackend(store)
	// PurgeExpired reads each item's own ExpiresAt, so the retention
	// window passed to New here is unused by this command.
	repo := repository.New(backend, 0)

	n, err := repo.PurgeExpired()
	if err != nil {
		return fmt.Errorf("sweep trash: %w", err)
	}
	fmt.Printf("purged %d expired trash item(s)\n", n)
	return nil
}
