// Command generate renders one catalog record into slides and a caption.
// It prints a JSON job result on stdout and exits 1 when the job failed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/app"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/generate"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/config"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/container"
)

func main() {
	catalogPath := flag.String("catalog", "", "catalog file (default CATALOG_PATH)")
	libraryDir := flag.String("library", "", "output library directory (default LIBRARY_DIR)")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: generate [--catalog file] [--library dir] <area-id>")
		os.Exit(2)
	}
	areaID := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fail(areaID, err)
	}
	if *catalogPath != "" {
		cfg.Pipeline.CatalogPath = *catalogPath
	}
	if *libraryDir != "" {
		cfg.Pipeline.LibraryDir = *libraryDir
	}
	if err := cfg.ValidatePipeline(); err != nil {
		fail(areaID, err)
	}

	// stdout carries the job result only
	logger, err := app.NewLogger(cfg, "stderr")
	if err != nil {
		fail(areaID, err)
	}

	c := container.New()
	if err := app.Register(c, cfg, logger); err != nil {
		fail(areaID, err)
	}
	var job *generate.Job
	if err := c.Resolve(&job); err != nil {
		fail(areaID, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	res := job.Run(ctx, areaID)
	emit(res)
	stop()
	logger.Close()
	if !res.OK {
		os.Exit(1)
	}
}

func emit(res models.JobResult) {
	_ = json.NewEncoder(os.Stdout).Encode(res)
}

func fail(areaID string, err error) {
	emit(models.JobResult{AreaID: areaID, Error: err.Error()})
	os.Exit(1)
}
