package cli

import (
	"fmt"
	"log"
	"net/url"
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

var (
	longURLFlag    string
	customCodeFlag string
	oneTimeFlag    bool
)

// CreateCmd shortens a single URL from the command line.
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a short link for a long URL.",
	Long: `Shortens the given URL and prints the generated code and full short URL.

Example:
  urlbriefr create --url="https://www.google.com/search?q=go+lang"`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		if longURLFlag == "" {
			fmt.Println("Error: --url flag is required")
			os.Exit(1)
		}
		if _, err := url.ParseRequestURI(longURLFlag); err != nil {
			fmt.Printf("Error: Invalid URL format: %v\n", err)
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

		link, err := linkService.CreateLink(services.CreateLinkInput{
			OriginalURL: longURLFlag,
			CustomCode:  customCodeFlag,
			OneTimeUse:  oneTimeFlag,
		})
		if err != nil {
			log.Fatalf("Failed to create short link: %v", err)
		}

		fmt.Printf("Short URL created successfully:\n")
		fmt.Printf("Code: %s\n", link.Code)
		fmt.Printf("Full short URL: %s/s/%s\n", cfg.Server.BaseURL, link.Code)
	},
}

func init() {
	CreateCmd.Flags().StringVar(&longURLFlag, "url", "", "Long URL to shorten")
	CreateCmd.Flags().StringVar(&customCodeFlag, "code", "", "Custom short code (optional)")
	CreateCmd.Flags().BoolVar(&oneTimeFlag, "one-time", false, "Deactivate the link after its first use")
	CreateCmd.MarkFlagRequired("url")
	cmd.RootCmd.AddCommand(CreateCmd)
}
