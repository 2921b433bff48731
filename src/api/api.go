// File: src/api/api.go

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/validai/src/api/webserver"
	"github.com/stake-plus/validai/src/config"
	"github.com/stake-plus/validai/src/data"
	"github.com/stake-plus/validai/src/logging"
	"github.com/stake-plus/validai/src/news"
	"github.com/stake-plus/validai/src/scraper"
	"github.com/stake-plus/validai/src/verification"

	_ "github.com/stake-plus/validai/src/ai/providers"
)

func main() {
	config.LoadDotEnv(".env")

	// Database settings override the environment when MYSQL_DSN is set.
	var stored func(string) string
	var history data.Store = data.NewMemoryStore()
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		db, err := data.ConnectMySQL(dsn, os.Getenv("DEBUG") == "true")
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		if err := data.LoadSettings(db); err != nil {
			log.Printf("Failed to load settings: %v", err)
		} else {
			stored = data.GetSetting
		}
		gs, err := data.NewGormStore(db)
		if err != nil {
			log.Fatalf("mysql: migrate history: %v", err)
		}
		history = gs
	} else {
		log.Printf("MYSQL_DSN not set; history is kept in memory")
	}

	cfg := config.Load(config.NewLoader(stored, nil))
	gin.SetMode(webserver.Mode(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events data.Publisher
	if cfg.RedisURL != "" {
		rdb, err := data.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: %v; verification events disabled", err)
		} else {
			defer rdb.Close()
			events = data.NewEventPublisher(rdb)
		}
	}

	pages := scraper.New(scraper.Config{
		FirecrawlAPIKey:  cfg.FirecrawlAPIKey,
		FirecrawlBaseURL: cfg.FirecrawlBaseURL,
		Timeout:          cfg.ScrapingTimeout,
		MaxRetries:       cfg.APIMaxRetries,

		AllowPrivateNetworks: cfg.ScrapeAllowPrivate,
	})
	verifier := verification.NewFromSettings(cfg, pages,
		verification.WithRecorder(data.NewHistoryRecorder(history, events)))
	if !verifier.ReasoningReady() {
		log.Printf("Warning: reasoning provider %q has no credential; verifications will fail until one is configured", cfg.AIProvider)
	}

	router := webserver.New(webserver.Deps{
		Settings: cfg,
		Verifier: verifier,
		History:  history,
		News:     news.New(cfg.NewsFeeds, cfg.ScrapingTimeout),
	})
	httpSrv := webserver.NewServer(cfg, router)

	go func() {
		var err error
		if cfg.TLSEnabled() {
			certs, cerr := webserver.NewCertReloader(cfg.SSLCert, cfg.SSLKey)
			if cerr != nil {
				log.Printf("Failed to load TLS certificate: %v. Falling back to HTTP", cerr)
				err = httpSrv.ListenAndServe()
			} else {
				go certs.Watch(ctx, 5*time.Minute)
				httpSrv.TLSConfig = certs.TLSConfig()
				log.Printf("Starting HTTPS server on port %s", cfg.Port)
				err = httpSrv.ListenAndServeTLS("", "")
			}
		} else {
			log.Printf("Starting HTTP server on port %s", cfg.Port)
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("%s %s listening on %s (env=%s, provider=%s, key=%s, firecrawl=%v)",
		config.ServiceName, config.ServiceVersion, cfg.Port, cfg.Environment,
		cfg.AIProvider, logging.Redact(cfg.ProviderKey()), cfg.ScrapingConfigured())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
