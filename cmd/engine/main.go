package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"leadscout-engine/internal/config"
	"leadscout-engine/internal/crawl"
	"leadscout-engine/internal/crawl/doda"
	"leadscout-engine/internal/crawl/mynavi"
	"leadscout-engine/internal/crawl/rikunabi"
	"leadscout-engine/internal/crawl/types"
	"leadscout-engine/internal/domain"
	"leadscout-engine/internal/events"
	"leadscout-engine/internal/httpapi"
	"leadscout-engine/internal/monitoring"
	"leadscout-engine/internal/scheduler"
	"leadscout-engine/internal/store"
)

const defaultPort = 38501

func buildStrategies(cfg config.Config, g types.Gate) map[domain.Source]types.Strategy {
	return map[domain.Source]types.Strategy{
		domain.SourceRikunabi: rikunabi.New(rikunabi.Config{BaseURL: cfg.Site(domain.SourceRikunabi).SearchURL}, g),
		domain.SourceMynavi:   mynavi.New(mynavi.Config{BaseURL: cfg.Site(domain.SourceMynavi).SearchURL}, g),
		domain.SourceDoda:     doda.New(doda.Config{BaseURL: cfg.Site(domain.SourceDoda).SearchURL}, g),
	}
}

func main() {
	log, err := newLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	// Engine data dir: use env if provided (the desktop shell passes one),
	// else local folder.
	dataDir := os.Getenv("LEADSCOUT_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal("data dir", zap.Error(err))
	}

	// One engine per data dir. A second instance would fight over the
	// sqlite file and the port.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatal("lock", zap.Error(err))
	}
	if !locked {
		log.Fatal("another engine instance holds the data dir", zap.String("dir", dataDir))
	}
	defer lock.Unlock() //nolint:errcheck

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatal("config bootstrap failed", zap.Error(err))
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		return config.Load(userCfgPath)
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatal("config load failed", zap.String("path", userCfgPath), zap.Error(err))
	}
	cfgVal.Store(cfg)

	dbPath := filepath.Join(dataDir, "leadscout.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer db.Pool.Close()

	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	hub := events.NewHub()
	metrics := monitoring.NewMetrics()
	orch := crawl.NewOrchestrator(db, hub, log, metrics)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Leads not seen across several runs go inactive.
	if cfg.Sweep.IntervalHours > 0 {
		interval := time.Duration(cfg.Sweep.IntervalHours) * time.Hour
		go scheduler.Every(bgCtx, interval, "stale_sweep", log, func(ctx context.Context) error {
			c := cfgVal.Load().(config.Config)
			cutoff := time.Now().UTC().AddDate(0, 0, -c.Sweep.StaleAfterDays)
			n, err := store.MarkStale(ctx, db.Pool, cutoff)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info("stale sweep", zap.Int64("deactivated", n))
			}
			return nil
		})
	}

	if cfg.Crawl.AutoIntervalHours > 0 {
		interval := time.Duration(cfg.Crawl.AutoIntervalHours * float64(time.Hour))
		go scheduler.Every(bgCtx, interval, "auto_crawl", log, func(ctx context.Context) error {
			c := cfgVal.Load().(config.Config)
			_, err := orch.Start(c, buildStrategies)
			if errors.Is(err, crawl.ErrAlreadyRunning) {
				return nil
			}
			return err
		})
	}

	deps := httpapi.Deps{
		DB:          db,
		Hub:         hub,
		Log:         log,
		Orch:        orch,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		Strategies:  buildStrategies,
	}
	mux := httpapi.NewMux(deps)

	port := cfg.App.Port
	if port <= 0 {
		port = defaultPort
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}

	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
	}

	// /shutdown needs the server and a token, so it mounts here instead of
	// in the router.
	token, err := randomToken(16)
	if err != nil {
		log.Fatal("token", zap.Error(err))
	}
	mux.HandleFunc("/shutdown", shutdownHandler(&token, srv))

	srv.Handler = httpapi.Chain(mux,
		httpapi.RequestID,
		httpapi.AccessLog(log),
		httpapi.Recover(log),
		httpapi.Cors,
	)

	log.Info("engine listening",
		zap.String("addr", "http://"+addr),
		zap.String("db", dbPath),
		zap.String("config", userCfgPath),
		zap.String("shutdown_token", token),
	)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("signal received, shutting down")
		orch.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("serve", zap.Error(err))
	}
	log.Info("engine stopped")
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("LEADSCOUT_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
