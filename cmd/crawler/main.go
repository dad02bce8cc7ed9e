package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/dharun-dev/streamvault/internal/catalog"
	"github.com/dharun-dev/streamvault/internal/config"
	"github.com/dharun-dev/streamvault/internal/database"
	"github.com/dharun-dev/streamvault/internal/metadata"
	"github.com/dharun-dev/streamvault/internal/scraper"
	"github.com/dharun-dev/streamvault/internal/torrent"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	var (
		source     = flag.String("source", "tamilmv", "source profile to crawl")
		language   = flag.String("language", "tamil", "language section to crawl")
		videoType  = flag.String("video-type", "hdrip", "media-type section to crawl (hdrip, tcrip, dubbed, old, series)")
		pages      = flag.Int("pages", 1, "number of pages to crawl per section")
		startPage  = flag.Int("start-page", 1, "page to start crawling from")
		keyword    = flag.String("keyword", "", "crawl search results for a keyword instead of a section")
		useBrowser = flag.Bool("use-browser", false, "fetch pages through a headless browser")
		all        = flag.Bool("all", false, "sweep every (language, media-type) combination of the source")
	)
	flag.Parse()

	cfg := config.Load()

	profile, ok := scraper.Profiles()[*source]
	if !ok {
		log.Fatalf("Unknown source profile: %s", *source)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := database.NewStore(db)

	var finder metadata.Finder
	if cfg.IMDbLookup {
		finder = metadata.NewIMDbClient()
	}
	merger := catalog.NewMerger(store, finder)

	var fetcher scraper.Fetcher
	if *useBrowser || cfg.UseBrowser {
		fetcher = scraper.NewBrowserFetcher(cfg.ProxyURL)
	} else {
		fetcher, err = scraper.NewSessionFetcher(cfg.ProxyURL)
		if err != nil {
			log.Fatalf("Failed to create fetcher: %v", err)
		}
	}
	defer fetcher.Close()

	crawler := scraper.New(profile, fetcher, torrent.NewExtractor(fetcher), merger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *keyword != "":
		err = crawler.CrawlSearch(ctx, *keyword)
	case *all:
		err = crawler.RunSweep(ctx, *startPage, *pages)
	default:
		err = crawler.CrawlCategory(ctx, *language, *videoType, *startPage, *pages)
	}
	if err != nil {
		log.Fatalf("Crawl failed: %v", err)
	}

	log.Println("Crawl finished")
}
