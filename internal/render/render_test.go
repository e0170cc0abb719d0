package render

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestPlanAddsFixedSlides(t *testing.T) {
	deck := Deck{Title: "吉祥寺の穴場3選", Area: "吉祥寺", Spots: []Spot{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	slides := Plan(deck)
	if len(slides) != 7 {
		t.Fatalf("slides = %d, want spots+4", len(slides))
	}
	kinds := []string{KindCover, KindLandmark, KindSpot, KindSpot, KindSpot, KindSummary, KindOutro}
	for i, s := range slides {
		if s.Kind != kinds[i] || s.Index != i+1 || s.File != SlideName(i+1) {
			t.Errorf("slide %d = %+v", i, s)
		}
	}
	if slides[3].Spot == nil || slides[3].Spot.Name != "b" {
		t.Errorf("spot slide carries %+v", slides[3].Spot)
	}
}

func TestSlideName(t *testing.T) {
	if got := SlideName(9); got != "slide_09.png" {
		t.Errorf("SlideName(9) = %s", got)
	}
	if got := SlideName(10); got != "slide_10.png" {
		t.Errorf("SlideName(10) = %s", got)
	}
}

func TestPNGRendererWritesDeck(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "photo.png")
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(photo)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	deck := Deck{Title: "t", Area: "a", LandmarkImage: photo, Spots: []Spot{{Name: "x", Image: photo}, {Name: "y", Image: filepath.Join(dir, "missing.png")}}}
	out := filepath.Join(dir, "out")
	slides, err := PNGRenderer{}.Render(context.Background(), deck, out)
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 6 {
		t.Fatalf("rendered %d slides", len(slides))
	}
	for _, s := range slides {
		if _, err := os.Stat(filepath.Join(out, s.File)); err != nil {
			t.Errorf("%s not written", s.File)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "slides.json")); err != nil {
		t.Error("slides.json not written")
	}

	r, err := os.Open(filepath.Join(out, "slide_01.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	cfg, err := png.DecodeConfig(r)
	if err != nil || cfg.Width != Width || cfg.Height != Height {
		t.Errorf("slide size = %dx%d (%v)", cfg.Width, cfg.Height, err)
	}
}

func TestPNGRendererStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (PNGRenderer{}).Render(ctx, Deck{}, t.TempDir()); err == nil {
		t.Error("expected context error")
	}
}
