package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/BotCoder254/URLBriefr/cmd"
	"github.com/BotCoder254/URLBriefr/internal/config"
	"github.com/BotCoder254/URLBriefr/internal/repository"
)

// SweepCmd runs a single expiry pass without starting the server.
var SweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Deactivates every expired link in one pass.",
	Long: `Runs the same expiry deactivation the server performs periodically,
once, and reports how many links were turned off. Useful from cron when the
server is not running.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		linkRepo := repository.NewLinkRepository(db)
		n, err := linkRepo.DeactivateExpired(time.Now())
		if err != nil {
			log.Fatalf("Failed to deactivate expired links: %v", err)
		}

		fmt.Printf("Sweep complete: %d link(s) deactivated.\n", n)
	},
}

func init() {
	cmd.RootCmd.AddCommand(SweepCmd)
}
