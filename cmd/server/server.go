package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/BotCoder254/URLBriefr/cmd"
	"github.com/BotCoder254/URLBriefr/internal/abtest"
	"github.com/BotCoder254/URLBriefr/internal/api"
	"github.com/BotCoder254/URLBriefr/internal/cache"
	"github.com/BotCoder254/URLBriefr/internal/config"
	"github.com/BotCoder254/URLBriefr/internal/geoip"
	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/BotCoder254/URLBriefr/internal/monitor"
	"github.com/BotCoder254/URLBriefr/internal/preview"
	"github.com/BotCoder254/URLBriefr/internal/repository"
	"github.com/BotCoder254/URLBriefr/internal/safety"
	"github.com/BotCoder254/URLBriefr/internal/security"
	"github.com/BotCoder254/URLBriefr/internal/services"
	"github.com/BotCoder254/URLBriefr/internal/workers"
)

// RunServerCmd starts the HTTP server together with the analytics worker
// pool and the background sweep.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Starts the URL shortener API server and background processes.",
	Long: `Initializes the database, wires the redirect pipeline with its cache,
geolocation and analytics workers, starts the expiry sweep, then serves HTTP.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		if err := db.AutoMigrate(
			&models.ShortLink{},
			&models.ABTestVariant{},
			&models.IPRestriction{},
			&models.ClickEvent{},
			&models.UserSession{},
			&models.SpoofingAttempt{},
			&models.ScanResult{},
		); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		linkRepo := repository.NewLinkRepository(db)
		clickRepo := repository.NewClickRepository(db)
		log.Println("Repositories initialized.")

		// Optional collaborators degrade to no-ops when unconfigured.
		var linkCache *cache.Cache
		if cfg.Redis.Addr != "" {
			linkCache, err = cache.Connect(cfg.Redis.Addr, cfg.Redis.Password, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second)
			if err != nil {
				log.Printf("Warning: Redis unavailable (%v), continuing without link cache.", err)
				linkCache = nil
			} else {
				defer linkCache.Close()
				log.Println("Link cache connected.")
			}
		}

		var geoResolver geoip.Resolver = geoip.NoopResolver{}
		if cfg.GeoIP.DatabasePath != "" {
			mmdb, err := geoip.Open(cfg.GeoIP.DatabasePath)
			if err != nil {
				log.Printf("Warning: GeoIP database unavailable (%v), locations will be Unknown.", err)
			} else {
				defer mmdb.Close()
				geoResolver = mmdb
			}
		}

		verifier := security.NewIntegrityVerifier(cfg.Security.IntegritySecret)
		selector := abtest.NewSelector(nil)
		scanner := safety.NewScanner(cfg.Security.SafeBrowsingAPIKey)
		previews := preview.NewFetcher()

		// Analytics pipeline: buffered channel into a worker pool.
		events := make(chan models.AnalyticsEvent, cfg.Analytics.BufferSize)
		workerWG := workers.StartClickWorkers(cfg.Analytics.WorkerCount, events, clickRepo)
		sink := services.NewChannelSink(events)
		log.Printf("Analytics channel initialized with buffer %d, %d worker(s) started.",
			cfg.Analytics.BufferSize, cfg.Analytics.WorkerCount)

		linkService := services.NewLinkService(linkRepo, clickRepo, verifier, linkCache, cfg.Links.CodeLength, cfg.Links.MaxRetries)
		redirectService := services.NewRedirectService(
			linkRepo, clickRepo, verifier, selector, geoResolver, linkCache, sink,
			time.Duration(cfg.GeoIP.TimeoutSeconds)*time.Second,
		)
		log.Println("Services initialized.")

		// Background sweep: expiry deactivation plus destination health.
		monitorCtx, stopMonitor := context.WithCancel(context.Background())
		sweeper := monitor.NewMonitor(linkRepo, time.Duration(cfg.Monitor.IntervalMinutes)*time.Minute)
		go sweeper.Start(monitorCtx)
		log.Printf("Sweep started with an interval of %dmin.", cfg.Monitor.IntervalMinutes)

		router := gin.Default()
		handlers := api.NewHandlers(linkService, redirectService, scanner, previews, cfg.Server.BaseURL)
		api.SetupRoutes(router, handlers)
		log.Println("API routes configured.")

		serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:    serverAddr,
			Handler: router,
		}

		go func() {
			log.Printf("Starting server on %s", serverAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutdown signal received. Stopping server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}

		// Drain the analytics pipeline before exiting.
		stopMonitor()
		close(events)
		workerWG.Wait()

		log.Println("Server stopped cleanly.")
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}
