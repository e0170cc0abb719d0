// Command batch generates pending catalog records one at a time, rebuilds
// the gallery and optionally publishes it.
//
//	batch --count 3 --push
//	batch 004 007
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/app"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/catalog"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scheduler"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/config"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/database"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// pagesRecorder keeps the URL returned by the wrapped publisher.
type pagesRecorder struct {
	scheduler.Publisher
	url string
}

func (p *pagesRecorder) Publish(ctx context.Context, ids []string) (string, error) {
	url, err := p.Publisher.Publish(ctx, ids)
	p.url = url
	return url, err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		die("load config: %v", err)
	}

	count := flag.Int("count", 0, "generate the next N pending areas")
	push := flag.Bool("push", cfg.Pipeline.Publish, "commit and push the gallery after the batch")
	catalogPath := flag.String("catalog", cfg.Pipeline.CatalogPath, "catalog file")
	libraryDir := flag.String("library", cfg.Pipeline.LibraryDir, "library directory")
	docsDir := flag.String("docs", cfg.Pipeline.DocsDir, "gallery output directory")
	flag.Parse()

	cfg.Pipeline.CatalogPath = *catalogPath
	cfg.Pipeline.LibraryDir = *libraryDir
	cfg.Pipeline.DocsDir = *docsDir
	if err := cfg.ValidatePipeline(); err != nil {
		die("%v", err)
	}

	logger, err := app.NewLogger(cfg, "stderr")
	if err != nil {
		die("logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runs domain.RunRepository = domain.NopRunRepository{}
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg)
		if err != nil {
			logger.Warn("run history disabled", logging.Error(err))
		} else {
			defer db.Close()
			runs = db
		}
	}

	store := catalog.NewStore(cfg.Pipeline.CatalogPath, logger)
	opts := scheduler.Options{
		Catalog: store,
		Runner: &scheduler.ExecRunner{
			Bin:     cfg.Pipeline.GenerateBin,
			Args:    []string{"--catalog", cfg.Pipeline.CatalogPath, "--library", cfg.Pipeline.LibraryDir},
			Timeout: cfg.Pipeline.JobTimeout,
			Log:     logger,
		},
		LibraryDir: cfg.Pipeline.LibraryDir,
		Cooldown:   cfg.Pipeline.Cooldown,
		Runs:       runs,
		Gallery:    &scheduler.Gallery{LibraryDir: cfg.Pipeline.LibraryDir, DocsDir: cfg.Pipeline.DocsDir},
	}
	var pages *pagesRecorder
	if *push {
		pages = &pagesRecorder{Publisher: &scheduler.GitPublisher{
			RepoDir: cfg.Pipeline.RepoDir,
			DocsDir: cfg.Pipeline.DocsDir,
			Remote:  cfg.Pipeline.GitRemote,
			Branch:  cfg.Pipeline.GitBranch,
			Log:     logger,
		}}
		opts.Publisher = pages
	}
	sched := scheduler.New(opts, logger)

	ids := flag.Args()
	if *count > 0 {
		pending, err := sched.SelectPending(*count)
		if err != nil {
			die("read catalog: %v", err)
		}
		if len(pending) == 0 {
			fmt.Println(okStyle.Render("all areas are generated; add new ones to " + cfg.Pipeline.CatalogPath))
			return
		}
		ids = ids[:0]
		for _, a := range pending {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  • [%s] %s (%s)", a.ID, a.Area, a.Folder)))
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "usage: batch --count N [--push] | batch <id>...")
		stop()
		logger.Close()
		os.Exit(2)
	}

	report := sched.Run(ctx, ids)
	url := ""
	if pages != nil {
		url = pages.url
	}
	fmt.Println(renderReport(report, url))
}

func die(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "batch: "+format+"\n", args...)
	os.Exit(1)
}
