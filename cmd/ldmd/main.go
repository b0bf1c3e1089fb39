// Command ldmd is the LDM server: it boots whichever backend
// database.mode selects, the TM engine, the operation scheduler, the
// sync engine and the HTTP request surface, then serves until asked to
// stop. Maintenance subcommands (tm reindex, trash sweep) operate
// directly on a data directory without starting the HTTP listener, for
// use from cron or an operator shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ldmsys/ldm/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ldmd",
	Short: "LDM - Localization Data Manager server",
	Long: `ldmd stores translatable string rows organized into a
platform/project/folder/file/row hierarchy, offers translation-memory
search and pre-translation, and keeps a desktop client's offline
workspace in sync with the central store.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ldmd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tmCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(applyCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
