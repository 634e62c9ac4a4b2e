// Command featuresync verifies vehicle feature checkboxes against window
// sticker content for the configured dealerships.
//
// Usage:
//
//	featuresync -config featuresync.yaml             # run all dealerships
//	featuresync -config featuresync.yaml -dealer d1  # run one dealership
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dealerops/featuresync/authmail"
	"github.com/dealerops/featuresync/batch"
	"github.com/dealerops/featuresync/checkbox"
	"github.com/dealerops/featuresync/config"
	"github.com/dealerops/featuresync/driver"
	"github.com/dealerops/featuresync/inventory"
	"github.com/dealerops/featuresync/mapstore"
	"github.com/dealerops/featuresync/session"
	"github.com/dealerops/featuresync/status"
	"github.com/dealerops/featuresync/sticker"
)

func main() {
	configPath := flag.String("config", "featuresync.yaml", "path to configuration file")
	dealer := flag.String("dealer", "", "run only this dealership id")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dealer); err != nil {
		logger.Error("featuresync: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dealer string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	profiles := cfg.Dealerships
	if dealer != "" {
		profiles = nil
		for _, p := range cfg.Dealerships {
			if p.ID == dealer {
				profiles = append(profiles, p)
			}
		}
		if len(profiles) == 0 {
			return fmt.Errorf("dealership %q not in config", dealer)
		}
	}

	dict, err := config.LoadDictionary(cfg.DictionaryFile)
	if err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}

	// Fold learned alias suggestions in before any batch starts; the
	// dictionary is frozen from here on.
	if cfg.CorrectionsDB != "" {
		store, err := mapstore.Open(cfg.CorrectionsDB)
		if err != nil {
			return fmt.Errorf("open corrections store: %w", err)
		}
		defer store.Close()
		added, err := store.ApplySuggestions(ctx, dict)
		if err != nil {
			logger.Warn("featuresync: applying correction suggestions", "error", err)
		} else if added > 0 {
			logger.Info("featuresync: learned aliases applied", "count", added)
		}
	}

	browser := driver.NewBrowser(driver.BrowserConfig{
		RemoteURL:       cfg.Browser.Remote,
		Headless:        cfg.Browser.Headless,
		RecycleInterval: cfg.Browser.RecycleInterval,
		Logger:          logger,
	})
	if err := browser.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer browser.Close()

	codes, err := authmail.New(cfg.AuthEmail, logger)
	if err != nil {
		return err
	}

	newDriver := func(ctx context.Context) (driver.Driver, error) {
		return driver.NewRodDriver(ctx, browser, &cfg.PageModel, logger)
	}

	sessions := session.NewManager(newDriver, codes, session.Config{
		LoginAttempts: cfg.Processing.LoginAttempts,
		IdleTimeout:   cfg.Processing.SessionIdleTimeout,
		PollInterval:  cfg.AuthEmail.PollInterval,
		CodeDeadline:  cfg.AuthEmail.Deadline,
	}, logger)

	discovery := inventory.NewDiscovery(inventory.Config{Logger: logger})
	extractor := sticker.NewExtractor(sticker.Config{Logger: logger})
	updater := checkbox.NewUpdater(checkbox.Config{Logger: logger})

	statusSrv := status.NewServer(logger)
	if cfg.StatusAddr != "" {
		httpSrv := &http.Server{Addr: cfg.StatusAddr, Handler: statusSrv.Router()}
		go func() {
			logger.Info("featuresync: status listening", "addr", cfg.StatusAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("featuresync: status server", "error", err)
			}
		}()
		defer httpSrv.Close()
	}

	orch := batch.New(sessions, discovery, extractor, updater, dict, batch.SlogSink{Logger: logger}, batch.Config{
		MaxAgeDays:      cfg.Processing.MaxAgeDays,
		VehicleAttempts: cfg.Processing.VehicleAttempts,
		OnUpdate:        statusSrv.Record,
		Logger:          logger,
	})

	runs := orch.RunAll(ctx, profiles)

	aborted := 0
	for _, r := range runs {
		if r != nil && r.Status == batch.StatusAborted {
			aborted++
		}
	}
	if aborted > 0 {
		return fmt.Errorf("%d of %d dealership runs aborted", aborted, len(runs))
	}
	return nil
}
