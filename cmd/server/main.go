package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/dharun-dev/streamvault/internal/api"
	"github.com/dharun-dev/streamvault/internal/catalog"
	"github.com/dharun-dev/streamvault/internal/config"
	"github.com/dharun-dev/streamvault/internal/database"
	"github.com/dharun-dev/streamvault/internal/metadata"
	"github.com/dharun-dev/streamvault/internal/scraper"
	"github.com/dharun-dev/streamvault/internal/services"
	"github.com/dharun-dev/streamvault/internal/torrent"
	"github.com/dharun-dev/streamvault/internal/userdata"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	log.Println("Starting StreamVault API Server...")

	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection established")

	store := database.NewStore(db)

	var finder metadata.Finder
	if cfg.IMDbLookup {
		finder = metadata.NewIMDbClient()
	}

	merger := catalog.NewMerger(store, finder)
	query := catalog.NewQuery(store, cfg.HostURL)
	codec := userdata.NewCodec(cfg.SecretKey)

	// Build one crawler per enabled source profile
	available := scraper.Profiles()
	var (
		profiles []*scraper.Profile
		targets  []services.Target
		fetchers []scraper.Fetcher
	)
	for _, name := range cfg.Sources {
		profile, ok := available[name]
		if !ok {
			log.Fatalf("Unknown source profile: %s", name)
		}

		var fetcher scraper.Fetcher
		if cfg.UseBrowser {
			fetcher = scraper.NewBrowserFetcher(cfg.ProxyURL)
		} else {
			fetcher, err = scraper.NewSessionFetcher(cfg.ProxyURL)
			if err != nil {
				log.Fatalf("Failed to create fetcher for %s: %v", name, err)
			}
		}
		fetchers = append(fetchers, fetcher)

		crawler := scraper.New(profile, fetcher, torrent.NewExtractor(fetcher), merger)
		profiles = append(profiles, profile)
		targets = append(targets, crawler)
		log.Printf("Source %s enabled", name)
	}
	defer func() {
		for _, f := range fetchers {
			f.Close()
		}
	}()

	// Background sweep
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	sweeper := services.NewSweeper(targets, cfg.SweepSchedule, cfg.SweepStartPage, cfg.SweepPages)
	if err := sweeper.Start(sweepCtx); err != nil {
		log.Fatalf("Failed to start sweeper: %v", err)
	}

	handler := api.NewHandler(query, codec, sweeper, cfg.HostURL, profiles)
	router := api.SetupRoutes(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	sweepCancel()
	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
