package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/BotCoder254/URLBriefr/cmd"
	"github.com/BotCoder254/URLBriefr/internal/config"
	"github.com/BotCoder254/URLBriefr/internal/repository"
	"github.com/BotCoder254/URLBriefr/internal/security"
	"github.com/BotCoder254/URLBriefr/internal/services"
)

var statsCodeFlag string

// StatsCmd prints click analytics for a short code.
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Displays click statistics for a short code.",
	Long: `Shows the destination URL, total click count and per-dimension breakdowns
for the given short code.

Example:
  urlbriefr stats --code="xyz123"`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		if statsCodeFlag == "" {
			fmt.Println("Error: --code flag is required")
			os.Exit(1)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		linkRepo := repository.NewLinkRepository(db)
		clickRepo := repository.NewClickRepository(db)
		verifier := security.NewIntegrityVerifier(cfg.Security.IntegritySecret)
		linkService := services.NewLinkService(linkRepo, clickRepo, verifier, nil, cfg.Links.CodeLength, cfg.Links.MaxRetries)

		stats, err := linkService.GetLinkStats(statsCodeFlag)
		if err != nil {
			log.Fatalf("Failed to get stats for code '%s': %v", statsCodeFlag, err)
		}

		fmt.Printf("Statistics for short code: %s\n", stats.Link.Code)
		fmt.Printf("Destination URL: %s\n", stats.Link.OriginalURL)
		fmt.Printf("Active: %t\n", stats.Link.IsActive)
		fmt.Printf("Total clicks: %d\n", stats.TotalClicks)

		printBreakdown("By browser", stats.ClicksByBrowser)
		printBreakdown("By device", stats.ClicksByDevice)
		printBreakdown("By OS", stats.ClicksByOS)
		printBreakdown("By country", stats.ClicksByCountry)
		printBreakdown("Top referrers", stats.TopReferrers)
	},
}

func printBreakdown(label string, counts []repository.FieldCount) {
	if len(counts) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, c := range counts {
		fmt.Printf("  %-20s %d\n", c.Value, c.Count)
	}
}

func init() {
	StatsCmd.Flags().StringVar(&statsCodeFlag, "code", "", "Short code to inspect")
	StatsCmd.MarkFlagRequired("code")
	cmd.RootCmd.AddCommand(StatsCmd)
}
