// Package render turns a verified area into numbered slide images.
//
// The PNG renderer paints each slide's background photo onto a fixed canvas
// and writes the slide texts to slides.json beside the images; typesetting
// belongs to whatever consumes that file.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
)

// Slide kinds in deck order.
const (
	KindCover    = "cover"
	KindLandmark = "landmark"
	KindSpot     = "spot"
	KindSummary  = "summary"
	KindOutro    = "outro"
)

// Canvas size of a portrait short-video slide.
const (
	Width  = 1080
	Height = 1350
)

// Spot is one venue as shown on its slide.
type Spot struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    string   `json:"price"`
	Rating   float64  `json:"rating"`
	Reviews  int      `json:"reviews"`
	Merits   []string `json:"merits"`
	Demerit  string   `json:"demerit"`
	Secret   string   `json:"secret"`
	Image    string   `json:"image"`
}

// Deck is everything needed to render one area.
type Deck struct {
	Title         string `json:"title"`
	Area          string `json:"area"`
	CategoryFocus string `json:"category_focus"`
	Landmark      string `json:"landmark"`
	LandmarkImage string `json:"landmark_image"`
	Spots         []Spot `json:"spots"`
}

// Slide is one rendered page.
type Slide struct {
	Index   int    `json:"index"`
	File    string `json:"file"`
	Kind    string `json:"kind"`
	Heading string `json:"heading"`
	Spot    *Spot  `json:"spot,omitempty"`
	Image   string `json:"image,omitempty"`
}

// Renderer writes a deck's slides into dir and returns them in order.
type Renderer interface {
	Render(ctx context.Context, deck Deck, dir string) ([]Slide, error)
}

// Plan lays the deck out: cover, landmark, one slide per spot, summary and
// outro.
func Plan(deck Deck) []Slide {
	slides := make([]Slide, 0, len(deck.Spots)+constants.FixedSlides)
	add := func(s Slide) {
		s.Index = len(slides) + 1
		s.File = SlideName(s.Index)
		slides = append(slides, s)
	}
	add(Slide{Kind: KindCover, Heading: deck.Title, Image: deck.LandmarkImage})
	add(Slide{Kind: KindLandmark, Heading: fmt.Sprintf("📍 %sエリア", deck.Area), Image: deck.LandmarkImage})
	for i := range deck.Spots {
		sp := deck.Spots[i]
		add(Slide{Kind: KindSpot, Heading: fmt.Sprintf("%d. %s", i+1, sp.Name), Spot: &sp, Image: sp.Image})
	}
	add(Slide{Kind: KindSummary, Heading: fmt.Sprintf("%sの穴場%d選", deck.Area, len(deck.Spots))})
	add(Slide{Kind: KindOutro, Heading: "保存して週末に行ってみて！"})
	return slides
}

// SlideName is the file name of the 1-based slide i.
func SlideName(i int) string { return fmt.Sprintf("slide_%02d.png", i) }

// PNGRenderer paints photos onto a dark canvas.
type PNGRenderer struct {
	Background color.Color
}

func (r PNGRenderer) Render(ctx context.Context, deck Deck, dir string) ([]Slide, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.NewValidation("render.Render", "create output dir", err)
	}
	bg := r.Background
	if bg == nil {
		bg = color.RGBA{R: 0x0a, G: 0x0a, B: 0x0f, A: 0xff}
	}

	slides := Plan(deck)
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
		draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
		if s.Image != "" {
			if photo, err := loadImage(s.Image); err == nil {
				drawCover(canvas, photo)
			}
		}
		if err := writePNG(filepath.Join(dir, s.File), canvas); err != nil {
			return nil, err
		}
	}

	raw, err := json.MarshalIndent(struct {
		Deck   Deck    `json:"deck"`
		Slides []Slide `json:"slides"`
	}{deck, slides}, "", "  ")
	if err != nil {
		return nil, errs.NewValidation("render.Render", "encode slides.json", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "slides.json"), raw, 0o644); err != nil {
		return nil, errs.NewValidation("render.Render", "write slides.json", err)
	}
	return slides, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// drawCover scales src to fill the upper two thirds of dst, cropping the
// overflow. Nearest neighbour is enough for a background.
func drawCover(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}
	area := image.Rect(0, 0, Width, Height*2/3)
	scale := max(float64(area.Dx())/float64(sb.Dx()), float64(area.Dy())/float64(sb.Dy()))
	offX := (float64(sb.Dx())*scale - float64(area.Dx())) / 2
	offY := (float64(sb.Dy())*scale - float64(area.Dy())) / 2
	for y := area.Min.Y; y < area.Max.Y; y++ {
		sy := sb.Min.Y + int((float64(y)+offY)/scale)
		for x := area.Min.X; x < area.Max.X; x++ {
			sx := sb.Min.X + int((float64(x)+offX)/scale)
			dst.Set(x, y, src.At(min(sx, sb.Max.X-1), min(sy, sb.Max.Y-1)))
		}
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.NewValidation("render.writePNG", "create "+filepath.Base(path), err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errs.NewValidation("render.writePNG", "encode "+filepath.Base(path), err)
	}
	return f.Close()
}
