package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/BotCoder254/URLBriefr/internal/config"
)

// Cfg holds the loaded configuration, available to all subcommands.
var Cfg *config.Config

// RootCmd is the base command. Subcommands (run-server, create, stats,
// migrate, sweep) register themselves via their own init() functions, which
// keeps command wiring local and avoids import cycles.
var RootCmd = &cobra.Command{
	Use:   "urlbriefr",
	Short: "URL shortener with click analytics and A/B-tested redirects",
	Long: `URLBriefr shortens URLs and resolves them with click analytics,
weighted A/B destinations, IP restrictions and tamper detection.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig runs before any subcommand and loads configuration from file,
// environment and defaults.
func initConfig() {
	var err error
	Cfg, err = config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Problem loading configuration: %v. Using default values.", err)
	}
}
