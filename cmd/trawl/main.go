package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trawlkit/trawl/api"
	"github.com/trawlkit/trawl/api/handler"
	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/debugsink"
	"github.com/trawlkit/trawl/detail"
	"github.com/trawlkit/trawl/engine"
	"github.com/trawlkit/trawl/models"
	"github.com/trawlkit/trawl/publish"
	"github.com/trawlkit/trawl/store"
	"github.com/trawlkit/trawl/surface"
	"github.com/trawlkit/trawl/traverse"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load()
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("trawl starting",
		"profiles", cfg.ProfilesPath,
		"dataDir", cfg.Store.DataDir,
		"daemon", cfg.Daemon.Enabled,
		"detail", cfg.Detail.Enabled,
	)

	// ── 3. Load the site-profile catalogue ──────────────────────────
	profiles, err := config.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		slog.Error("failed to load profiles", "error", err)
		os.Exit(1)
	}
	slog.Info("profiles loaded", "count", len(profiles))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Initialise stores ────────────────────────────────────────
	catalogue := store.NewCatalogue(cfg.Store.DataDir)
	var pg *store.PGStore
	if cfg.Store.PostgresDSN != "" {
		pg, err = store.NewPGStore(ctx, cfg.Store.PostgresDSN, cfg.Store.PostgresSchema)
		if err != nil {
			slog.Warn("postgres mirror unavailable, continuing with files only", "error", err)
			pg = nil
		}
	}

	// ── 5. Launch the browser ───────────────────────────────────────
	browser, err := surface.NewBrowser(cfg.Browser)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}

	// ── 6. Detail enrichment engines ────────────────────────────────
	var enricher *detail.Enricher
	if cfg.Detail.Enabled {
		engines := []engine.Engine{engine.NewBrowserEngine(browser)}
		if cfg.Engine.EnableMultiEngine {
			engines = []engine.Engine{engine.NewHTTPEngine(), engine.NewBrowserEngine(browser)}
		}
		memory := engine.NewDomainMemory(24 * time.Hour)
		dispatcher := engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, memory)
		enricher = detail.NewEnricher(cfg.Detail, dispatcher)
		slog.Info("detail enrichment enabled",
			"engines", len(engines),
			"workers", cfg.Detail.Workers,
		)
	}

	// ── 7. Status API ───────────────────────────────────────────────
	tracker := handler.NewTracker()
	var srv *http.Server
	if cfg.API.Enabled {
		router := api.NewRouter(browser, tracker, catalogue, cfg, time.Now())
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		srv = &http.Server{Addr: addr, Handler: router}
		go func() {
			slog.Info("status API listening", "addr", addr)
			if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				slog.Error("status API error", "error", serveErr)
			}
		}()
	}

	// ── 8. Run (once, or on a randomized interval in daemon mode) ───
	run := runner{
		cfg:       cfg,
		profiles:  profiles,
		browser:   browser,
		catalogue: catalogue,
		pg:        pg,
		enricher:  enricher,
		tracker:   tracker,
	}

	exitCode := 0
	for {
		if runErr := run.all(ctx); runErr != nil {
			exitCode = 1
		}
		if !cfg.Daemon.Enabled || ctx.Err() != nil {
			break
		}
		pause := randomInterval(cfg.Daemon.IntervalMin, cfg.Daemon.IntervalMax)
		slog.Info("daemon sleeping until next run", "pause", pause.Round(time.Second))
		select {
		case <-ctx.Done():
		case <-time.After(pause):
			// In daemon mode a failed run does not stop the service;
			// the next interval gets a fresh chance.
			exitCode = 0
			continue
		}
		break
	}

	// ── 9. Graceful shutdown ────────────────────────────────────────
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Warn("status API forced shutdown", "error", shutdownErr)
		}
		cancel()
	}
	browser.Close()
	if pg != nil {
		pg.Close()
	}
	slog.Info("trawl stopped", "exitCode", exitCode)
	os.Exit(exitCode)
}

// runner holds everything one full pass over the profiles needs.
type runner struct {
	cfg       *config.Config
	profiles  []config.SiteProfile
	browser   *surface.Browser
	catalogue *store.Catalogue
	pg        *store.PGStore
	enricher  *detail.Enricher
	tracker   *handler.Tracker
}

// all runs every profile sequentially. A profile failure is logged and
// the remaining profiles still run; the first failure decides the
// return value so the process can exit non-zero.
func (r runner) all(ctx context.Context) error {
	var firstErr error
	for i := range r.profiles {
		p := &r.profiles[i]
		if err := r.profile(ctx, p); err != nil {
			if ctx.Err() != nil {
				return err
			}
			slog.Error("profile run failed",
				"profile", p.Name,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// profile runs one profile end to end: traverse, enrich, publish.
func (r runner) profile(ctx context.Context, p *config.SiteProfile) error {
	runID := time.Now().UTC().Format("20060102-150405") + "-" + p.Name
	started := time.Now()

	sess, err := r.browser.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	r.tracker.StartRun(p.Name)
	defer r.tracker.Idle()

	sink := debugsink.New(r.cfg.Debug, runID)
	tr := traverse.New(r.cfg.Traversal, sink)
	tr.SetProgress(r.tracker.Progress)

	res, err := tr.Run(ctx, sess, p)
	if err != nil {
		return err
	}

	if r.enricher != nil {
		r.enricher.Enrich(ctx, res.Items)
	}

	r.tracker.Publishing()
	primary := r.catalogue.ProfileStore(p.Name)
	var guard *publish.Guard
	if r.pg != nil {
		guard = publish.NewGuard(primary, r.pg)
	} else {
		guard = publish.NewGuard(primary)
	}

	sum := models.RunSummary{
		RunID:         runID,
		Source:        p.Name,
		Timestamp:     time.Now().UTC(),
		TotalItems:    len(res.Items),
		PagesScraped:  res.PageCount,
		QueryUsed:     res.Query,
		StoppedReason: res.StoppedReason,
		DurationMs:    time.Since(started).Milliseconds(),
	}
	return guard.Publish(ctx, res.Items, sum)
}

// randomInterval picks a uniform duration in [min, max].
func randomInterval(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Float64()*float64(max-min))
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
