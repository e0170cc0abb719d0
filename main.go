package main

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/joho/godotenv/autoload"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/app"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/auth"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/catalog"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/gate"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/proposal"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/refill"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scheduler"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/config"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/container"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/database"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/events"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/health"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/monitoring"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	logger, err := app.NewLogger(cfg, "")
	if err != nil {
		fatal(err)
	}
	defer logger.Close()
	monitoring.EnableProfiling(cfg.ProfilingEnabled)
	logger.Info("starting director", logging.Any("config", cfg.Summary()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run history and event persistence are optional.
	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(ctx, cfg)
		if err != nil {
			logger.Error("database unavailable, run history disabled", err)
			db = nil
		} else {
			defer db.Close()
		}
	}
	store, closeStore := openEventStore(ctx, cfg, db, logger)
	defer closeStore()

	c := container.New()
	if err := app.Register(c, cfg, logger); err != nil {
		logger.Fatal("register providers", err)
	}
	providers := []interface{}{
		func() events.Store { return store },
		func(cfg *config.Config, st *catalog.Store, log *logging.Logger) *scheduler.Scheduler {
			var runs domain.RunRepository = domain.NopRunRepository{}
			if db != nil {
				runs = db
			}
			opts := scheduler.Options{
				Catalog: st,
				Runner: &scheduler.ExecRunner{
					Bin:     cfg.Pipeline.GenerateBin,
					Args:    []string{"--catalog", cfg.Pipeline.CatalogPath, "--library", cfg.Pipeline.LibraryDir},
					Timeout: cfg.Pipeline.JobTimeout,
					Log:     log,
				},
				LibraryDir: cfg.Pipeline.LibraryDir,
				Cooldown:   cfg.Pipeline.Cooldown,
				Runs:       runs,
				Gallery:    &scheduler.Gallery{LibraryDir: cfg.Pipeline.LibraryDir, DocsDir: cfg.Pipeline.DocsDir},
			}
			if cfg.Pipeline.Publish {
				opts.Publisher = &scheduler.GitPublisher{
					RepoDir: cfg.Pipeline.RepoDir,
					DocsDir: cfg.Pipeline.DocsDir,
					Remote:  cfg.Pipeline.GitRemote,
					Branch:  cfg.Pipeline.GitBranch,
					Log:     log,
				}
			}
			return scheduler.New(opts, log)
		},
		func(p *proposal.OpenAIProposer, ms app.MapSource, loop *refill.Loop, st *catalog.Store, s *scheduler.Scheduler, log *logging.Logger) *gate.Pipeline {
			return &gate.Pipeline{Proposer: p, Locator: ms, Refill: loop, Catalog: st, Scheduler: s, Log: log}
		},
		func(cfg *config.Config, p *gate.Pipeline, store events.Store, log *logging.Logger) *gate.Gate {
			return gate.New(p, gate.Options{Store: store, Timeout: cfg.Pipeline.RunTimeout}, log)
		},
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			logger.Fatal("register providers", err)
		}
	}

	var g *gate.Gate
	if err := c.Resolve(&g); err != nil {
		logger.Fatal("build gate", err)
	}

	hm := health.NewManager(version, constants.HealthTimeoutDefault, logger)
	hm.Register(health.CredentialChecker{ComponentName: "openai", Present: cfg.OpenAIAPIKey != ""})
	hm.Register(health.FileChecker{ComponentName: "catalog", Path: cfg.Pipeline.CatalogPath})
	if db != nil {
		hm.Register(health.PingChecker{ComponentName: "database", Ping: db.Ping})
	}
	hm.Register(health.FuncChecker{ComponentName: "gate", Fn: func(context.Context) health.ComponentHealth {
		h := health.ComponentHealth{Status: health.StatusHealthy, Metadata: map[string]interface{}{"busy": g.Busy()}}
		if cur := g.Current(); cur != nil {
			h.Metadata["run_id"] = cur.RunID
		}
		return h
	}})

	remote, err := template.ParseFS(Templates(), "remote.html.tmpl")
	if err != nil {
		logger.Fatal("parse templates", err)
	}

	router := mux.NewRouter()
	if cfg.MetricsEnabled {
		router.Use(monitoring.Middleware(metrics.Default, "/run"))
	}
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(Static()))))
	hm.RegisterRoutes(router, cfg.HealthCheckPath)

	// Everything else is the trigger surface.
	remoteRoutes := router.PathPrefix("/").Subrouter()
	if cfg.OperatorsPath != "" {
		ops, err := auth.LoadOperators(cfg.OperatorsPath, logger)
		if err != nil {
			logger.Fatal("load operators", err)
		}
		remoteRoutes.Use(auth.Require(ops, func(w http.ResponseWriter, ip string) {
			logger.Warn("trigger denied", logging.String("ip", ip))
			http.Error(w, "この端末からは実行できません ("+ip+")", http.StatusForbidden)
		}))
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)
		go func() {
			for range reload {
				if err := ops.Reload(); err != nil {
					logger.Error("reload operators", err)
				}
			}
		}()
	}
	remoteRoutes.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := map[string]interface{}{"Busy": g.Busy(), "GalleryURL": cfg.GalleryURL}
		if err := remote.Execute(w, data); err != nil {
			logger.Error("render remote page", err)
		}
	}).Methods(http.MethodGet)
	gate.NewHandler(g, store, logger).Register(remoteRoutes)

	// No write timeout: /run streams for the whole pipeline.
	server := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: constants.HealthTimeoutDefault}

	var adminServer *http.Server
	if cfg.MetricsEnabled || cfg.ProfilingEnabled {
		adminServer = &http.Server{Addr: ":" + cfg.AdminPort, Handler: monitoring.AdminRouter(metrics.Default, cfg.MetricsPath, cfg.ProfilingEnabled)}
		go func() {
			logger.Info("admin server listening", logging.String("port", cfg.AdminPort))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server", err)
			}
		}()
	}

	go func() {
		logger.Info("server listening", logging.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if g.Busy() {
		logger.Warn("a run is still in progress and will be interrupted", logging.String("run_id", runID(g)))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeoutDefault)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown", err)
		}
	}
	logger.Info("shutdown complete")
}

// openEventStore picks pgx when EVENTS_DSN is set, the MySQL run database
// when available, and memory otherwise.
func openEventStore(ctx context.Context, cfg *config.Config, db *database.DB, logger *logging.Logger) (events.Store, func()) {
	if strings.HasPrefix(cfg.EventsDSN, "postgres") {
		pg, err := events.OpenPGStore(ctx, cfg.EventsDSN, cfg.DBMaxOpenConns)
		if err == nil {
			logger.Info("event store: postgres")
			return pg, pg.Close
		}
		logger.Error("postgres event store unavailable", err)
	}
	if db != nil {
		logger.Info("event store: mysql")
		return events.NewSQLStore(db), func() {}
	}
	logger.Info("event store: memory")
	return events.NewMemoryStore(), func() {}
}

func runID(g *gate.Gate) string {
	if cur := g.Current(); cur != nil {
		return cur.RunID
	}
	return ""
}

func fatal(err error) {
	os.Stderr.WriteString("director: " + err.Error() + "\n")
	os.Exit(1)
}
