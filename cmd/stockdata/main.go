package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockdata/internal/client/yahoo"
	"stockdata/internal/config"
	cronrunner "stockdata/internal/cron"
	"stockdata/internal/db"
	"stockdata/internal/handler"
	"stockdata/internal/logger"
	gormrepository "stockdata/internal/repository/gorm"
	"stockdata/internal/scraper"
	"stockdata/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, rest := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "migrate":
		err = runMigrate(rest)
	case "scrape":
		err = runScrape(rest)
	case "load-tickers":
		err = runLoadTickers(rest)
	case "sync-prices":
		err = runSyncPrices(rest)
	case "serve":
		err = runServe(rest)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: stockdata <command> [flags]

commands:
  migrate       create or update the database schema
  scrape        download the screener ticker export
  load-tickers  load the ticker export into the database
  sync-prices   incrementally sync historical prices
  serve         run the HTTP API with scheduled syncs`)
}

type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func bootstrap(cfgPath, dbPath string) (*app, error) {
	if cfgPath == "" {
		cfgPath = os.Getenv("STOCKDATA_CONFIG")
	}
	explicit := cfgPath != ""
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if _, err := os.Stat(cfgPath); err != nil {
		// Only the implicit default path may be silently absent; a path the
		// operator named must exist.
		if explicit {
			return nil, fmt.Errorf("config file %s: %w", cfgPath, err)
		}
		envOnly = true
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &app{cfg: cfg, logger: log}, nil
}

func (a *app) openStore() (*db.DB, *gormrepository.Store, error) {
	conn, err := db.Open(a.cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", a.cfg.DB.Path, err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		db.Close(conn)
		return nil, nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return conn, gormrepository.New(conn.Gorm), nil
}

func (a *app) priceSyncService(store *gormrepository.Store) *service.PriceSyncService {
	httpClient := &http.Client{Timeout: a.cfg.Yahoo.Timeout}
	return &service.PriceSyncService{
		Repo:   store,
		Quotes: yahoo.NewClient(httpClient, a.cfg.Yahoo.BaseURL, a.cfg.Yahoo.MaxRetries),
		Logger: a.logger,
	}
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db-path", "", "override database path")
	fs.Parse(args)

	a, err := bootstrap(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	conn, _, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close(conn)

	a.logger.Info("schema ready", zap.String("path", a.cfg.DB.Path))
	return nil
}

func runScrape(args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	a, err := bootstrap(*cfgPath, "")
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	screener := &scraper.Screener{
		URL:       a.cfg.Screener.URL,
		OutputDir: a.cfg.Screener.OutputDir,
		Headless:  a.cfg.Screener.Headless,
		Timeout:   a.cfg.Screener.Timeout,
		Logger:    a.logger,
	}
	path, err := screener.Download()
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	a.logger.Info("scrape complete", zap.String("path", path))
	return nil
}

func runLoadTickers(args []string) error {
	fs := flag.NewFlagSet("load-tickers", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db-path", "", "override database path")
	csvPath := fs.String("csv", "", "override ticker export path")
	fs.Parse(args)

	a, err := bootstrap(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	conn, store, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close(conn)

	path := *csvPath
	if path == "" {
		path = a.cfg.TickerLoad.CSVPath
	}

	loader := &service.TickerLoadService{Repo: store, Logger: a.logger}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := loader.LoadFile(ctx, path); err != nil {
		return fmt.Errorf("load tickers: %w", err)
	}
	return nil
}

func runSyncPrices(args []string) error {
	fs := flag.NewFlagSet("sync-prices", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db-path", "", "override database path")
	chunkSize := fs.Int("chunk-size", 0, "tickers per chunk (default from config)")
	tickers := fs.String("tickers", "", "comma-separated symbols to sync (default all)")
	dryRun := fs.Bool("dry-run", false, "report what would be inserted without writing")
	confirm := fs.Bool("confirm", false, "prompt between chunks (y/n/q)")
	resume := fs.Bool("resume", false, "resume from the last chunk checkpoint")
	fs.Parse(args)

	a, err := bootstrap(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	conn, store, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close(conn)

	opts := service.SyncOptions{
		ChunkSize: a.cfg.PriceSync.ChunkSize,
		Pause:     a.cfg.PriceSync.Pause,
		Resume:    a.cfg.PriceSync.Resume || *resume,
		DryRun:    *dryRun,
	}
	if *chunkSize > 0 {
		opts.ChunkSize = *chunkSize
	}
	opts.Symbols = append(splitSymbols(*tickers), fs.Args()...)
	if *confirm {
		opts.Confirm = stdinConfirm()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := a.priceSyncService(store).Sync(ctx, opts)
	if err != nil {
		return fmt.Errorf("sync prices: %w", err)
	}

	fmt.Printf("processed %d tickers: %d succeeded, %d failed, %d rows added",
		result.Processed, result.Succeeded, result.Failed, result.RowsAdded)
	if result.DryRun {
		fmt.Printf(" (dry run, %d rows would be added)", result.WouldAdd)
	}
	fmt.Println()
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db-path", "", "override database path")
	fs.Parse(args)

	a, err := bootstrap(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	conn, store, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close(conn)

	syncService := a.priceSyncService(store)

	if strings.EqualFold(a.cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: conn.Gorm}
	healthHandler.Register(engine)
	tickerHandler := &handler.TickerHandler{Repo: store, Logger: a.logger}
	tickerHandler.Register(engine)
	syncHandler := &handler.SyncHandler{Service: syncService, Repo: store, Logger: a.logger}
	syncHandler.Register(engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := cronrunner.New(a.logger, ctx)
	if a.cfg.Cron.Enabled {
		_, err := runner.Add(a.cfg.Cron.PriceSync, func(ctx context.Context) {
			result, err := syncService.Sync(ctx, service.SyncOptions{
				ChunkSize: a.cfg.PriceSync.ChunkSize,
				Pause:     a.cfg.PriceSync.Pause,
				Resume:    a.cfg.PriceSync.Resume,
			})
			if err != nil {
				a.logger.Warn("cron price sync failed", zap.Error(err))
				return
			}
			a.logger.Info("cron price sync ok",
				zap.Int("processed", result.Processed),
				zap.Int("rows_added", result.RowsAdded),
				zap.Int("failed", result.Failed),
			)
		})
		if err != nil {
			a.logger.Warn("cron register price sync failed", zap.Error(err))
		}
	}
	runner.Start()
	defer runner.Stop()

	srv := &http.Server{
		Addr:    a.cfg.Server.HTTPAddr,
		Handler: engine,
	}

	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// stdinConfirm prompts the operator between chunks: y continues, q aborts,
// anything else skips the chunk.
func stdinConfirm() func(next, total int) service.Decision {
	reader := bufio.NewReader(os.Stdin)
	return func(next, total int) service.Decision {
		fmt.Printf("Ready to process chunk %d/%d? (y/n/q): ", next, total)
		line, err := reader.ReadString('\n')
		if err != nil {
			return service.DecisionAbort
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return service.DecisionContinue
		case "q", "quit":
			return service.DecisionAbort
		default:
			return service.DecisionSkip
		}
	}
}

func splitSymbols(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
