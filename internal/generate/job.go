package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/prompts"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/rating"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/render"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// RatingResolver confirms a venue's live rating.
type RatingResolver interface {
	Resolve(ctx context.Context, name, query, area string) (rating.Confirmed, error)
}

// ImageSaver fetches one search image to dest, falling back to a
// placeholder.
type ImageSaver interface {
	Save(ctx context.Context, query, dest string) (placeholder bool, err error)
}

const (
	imagesDir    = "images"
	landmarkFile = "photo_landmark.png"
	captionFile  = "caption.txt"
)

// Job produces the slides and caption for one catalog record.
type Job struct {
	Catalog    domain.CatalogRepository
	Resolver   RatingResolver
	Images     ImageSaver
	Renderer   render.Renderer
	Prompts    *prompts.Manager
	LibraryDir string
	Log        *logging.Logger
}

// Run generates areaID. Any spot without a confident live rating fails the
// whole job before anything is rendered.
func (j *Job) Run(ctx context.Context, areaID string) models.JobResult {
	start := time.Now()
	log := j.Log
	if log == nil {
		log = logging.Nop()
	}
	clog := log.WithComponent("generate").Ctx(logging.WithAreaID(ctx, areaID))

	res := models.JobResult{AreaID: areaID}
	fail := func(err error) models.JobResult {
		res.OK = false
		res.Error = err.Error()
		res.ElapsedMS = time.Since(start).Milliseconds()
		clog.Error("generation failed", err)
		return res
	}

	area, err := j.Catalog.Find(areaID)
	if err != nil {
		return fail(err)
	}
	if len(area.Spots) == 0 {
		return fail(errs.NewValidation("generate.Run", "area has no spots", nil))
	}
	clog.Info("generation started", logging.String("area", area.Area), logging.Int("spots", len(area.Spots)))

	spots, resolved, err := j.resolveAll(ctx, area)
	res.Spots = resolved
	if err != nil {
		return fail(err)
	}

	dir := filepath.Join(j.LibraryDir, area.Folder)
	deck, err := j.collectImages(ctx, area, spots, dir)
	if err != nil {
		return fail(err)
	}

	slides, err := j.Renderer.Render(ctx, deck, dir)
	if err != nil {
		return fail(err)
	}
	if err := j.writeCaption(area, spots, dir); err != nil {
		return fail(err)
	}

	res.OK = true
	res.Slides = len(slides)
	res.ElapsedMS = time.Since(start).Milliseconds()
	clog.Info("generation finished", logging.Int("slides", res.Slides), logging.Int64("elapsed_ms", res.ElapsedMS))
	return res
}

// resolveAll replaces every hint with a confirmed live value.
func (j *Job) resolveAll(ctx context.Context, area models.AreaRecord) ([]models.Candidate, []models.ResolvedSpot, error) {
	spots := make([]models.Candidate, len(area.Spots))
	var resolved []models.ResolvedSpot
	for i, s := range area.Spots {
		c, err := j.Resolver.Resolve(ctx, s.Name, s.Query(area.Area), area.Area)
		if err != nil {
			if errors.Is(err, rating.ErrNoConfidentSource) {
				return nil, resolved, err
			}
			return nil, resolved, fmt.Errorf("resolve %s: %w", s.Name, err)
		}
		s.Rating = c.Rating
		s.Reviews = c.Reviews
		spots[i] = s
		resolved = append(resolved, models.ResolvedSpot{Name: s.Name, Rating: c.Rating, Reviews: c.Reviews, Source: c.Source})
	}
	return spots, resolved, nil
}

func (j *Job) collectImages(ctx context.Context, area models.AreaRecord, spots []models.Candidate, dir string) (render.Deck, error) {
	imgDir := filepath.Join(dir, imagesDir)
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return render.Deck{}, errs.NewValidation("generate.collectImages", "create image dir", err)
	}

	deck := render.Deck{
		Title:         area.Title,
		Area:          area.Area,
		CategoryFocus: area.CategoryFocus,
		Landmark:      area.Landmark,
		LandmarkImage: filepath.Join(imgDir, landmarkFile),
	}
	if _, err := j.Images.Save(ctx, LandmarkQuery(area), deck.LandmarkImage); err != nil {
		return render.Deck{}, err
	}

	for i, s := range spots {
		dest := filepath.Join(imgDir, fmt.Sprintf("photo_spot%d.png", i+1))
		if _, err := j.Images.Save(ctx, SpotImageQuery(s), dest); err != nil {
			return render.Deck{}, err
		}
		deck.Spots = append(deck.Spots, render.Spot{
			Name:     s.Name,
			Category: s.Category,
			Price:    s.Price,
			Rating:   s.Rating,
			Reviews:  s.Reviews,
			Merits:   s.Merits,
			Demerit:  s.Demerit,
			Secret:   s.Secret,
			Image:    dest,
		})
	}
	return deck, nil
}

func (j *Job) writeCaption(area models.AreaRecord, spots []models.Candidate, dir string) error {
	text, err := j.Prompts.Render(prompts.Caption, map[string]any{
		"Area":    area.Area,
		"AreaTag": strings.Join(strings.Fields(area.Area), ""),
		"Spots":   spots,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, captionFile), []byte(text+"\n"), 0o644); err != nil {
		return errs.NewValidation("generate.writeCaption", "write caption", err)
	}
	return nil
}

// LandmarkQuery is the image search for the area's landmark.
func LandmarkQuery(area models.AreaRecord) string {
	q := area.LandmarkSearch
	if q == "" {
		q = area.Landmark
	}
	return q + " 景色 高画質"
}

// SpotImageQuery is the image search for one venue.
func SpotImageQuery(c models.Candidate) string {
	suffix := "料理"
	if strings.Contains(c.Category, "カフェ") || strings.Contains(c.Category, "スイーツ") {
		suffix = "メニュー"
	}
	search := c.Search
	if search == "" {
		search = c.Name
	}
	return fmt.Sprintf("%s %s 映え", search, suffix)
}
