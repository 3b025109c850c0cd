package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/npezzotti/go-multilingo/internal/api"
	"github.com/npezzotti/go-multilingo/internal/config"
	"github.com/npezzotti/go-multilingo/internal/database"
	"github.com/npezzotti/go-multilingo/internal/server"
	"github.com/npezzotti/go-multilingo/internal/stats"
	"github.com/npezzotti/go-multilingo/internal/transcribe"
	"github.com/npezzotti/go-multilingo/internal/translate"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
	migrateUp      bool
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.BoolVar(&migrateUp, "migrate", false, "run database migrations on startup")
	flag.Parse()

	logger := log.New(os.Stderr, "[multilingo] ", log.LstdFlags)

	cfg, err := config.Load(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	if migrateUp {
		if err := database.Migrate(cfg.DatabaseDSN); err != nil {
			logger.Fatal("migrate:", err)
		}
	}

	dbConn, err := database.NewPgMultilingoRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	engine := transcribe.NewHTTPEngine(cfg.TranscriberURL, cfg.TranscribeModel, cfg.TranscribeTimeout, logger)

	translator := translate.NewCachingTranslator(
		translate.NewHTTPTranslator(cfg.TranslatorURL, cfg.TranslatorKey, cfg.TranslateTimeout, logger))
	translator.Hit = func() {
		statsUpdater.Incr(stats.TranslationHits)
	}

	pipeline := server.NewPipeline(engine, translator, dbConn, logger, statsUpdater,
		cfg.TranscribeTimeout, cfg.TranslateTimeout)

	roomServer, err := server.NewRoomServer(logger, dbConn, statsUpdater, pipeline)
	if err != nil {
		logger.Fatal("new room server:", err)
	}

	srv, err := api.NewMultilingoApp(mux, logger, roomServer, dbConn, statsUpdater, cfg)
	if err != nil {
		logger.Fatal("new app:", err)
	}

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go roomServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down room server...")
	if err := roomServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("room server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
