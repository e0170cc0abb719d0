package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/catalog"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/prompts"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/rating"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/render"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scraper"
)

type stubResolver struct {
	byName map[string]rating.Confirmed
	calls  []string
}

func (r *stubResolver) Resolve(_ context.Context, name, query, area string) (rating.Confirmed, error) {
	r.calls = append(r.calls, query)
	c, ok := r.byName[name]
	if !ok {
		return rating.Confirmed{}, fmt.Errorf("%s: %w", name, rating.ErrNoConfidentSource)
	}
	return c, nil
}

type placeholderImages struct{ queries []string }

func (p *placeholderImages) Save(_ context.Context, query, dest string) (bool, error) {
	p.queries = append(p.queries, query)
	return true, scraper.WritePlaceholder(dest)
}

func newJob(t *testing.T, res *stubResolver, imgs *placeholderImages) (*Job, string) {
	t.Helper()
	dir := t.TempDir()
	store := catalog.NewStore(filepath.Join(dir, "batch_areas.json"), nil)
	_, err := store.Append(models.AreaRecord{
		Area:           "吉祥寺",
		Title:          "吉祥寺の穴場3選",
		Folder:         "000_kichijoji",
		LandmarkSearch: "井の頭公園 池",
		Spots: []models.Candidate{
			{Name: "珈琲 蔵", Category: "喫茶カフェ", Search: "珈琲蔵 吉祥寺", Rating: 4.9, Reviews: 3000},
			{Name: "SATOU", Category: "精肉", Price: "〜¥1,000"},
			{Name: "小ざさ", Category: "和菓子スイーツ"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	pm, err := prompts.NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	lib := filepath.Join(dir, "library")
	return &Job{Catalog: store, Resolver: res, Images: imgs, Renderer: render.PNGRenderer{}, Prompts: pm, LibraryDir: lib}, lib
}

func TestJobRun(t *testing.T) {
	res := &stubResolver{byName: map[string]rating.Confirmed{
		"珈琲 蔵": {Rating: 4.5, Reviews: 42, Source: models.SourceAggregator},
		"SATOU": {Rating: 3.8, Reviews: 1200, Source: models.SourceMap},
		"小ざさ":   {Rating: 4.1, Reviews: 310, Source: models.SourceMap},
	}}
	imgs := &placeholderImages{}
	job, lib := newJob(t, res, imgs)

	out := job.Run(context.Background(), "001")
	if !out.OK || out.Error != "" {
		t.Fatalf("result = %+v", out)
	}
	if out.Slides != 7 || len(out.Spots) != 3 {
		t.Errorf("slides = %d spots = %d", out.Slides, len(out.Spots))
	}
	if out.Spots[0].Source != models.SourceAggregator || out.Spots[0].Reviews != 42 {
		t.Errorf("resolved = %+v", out.Spots[0])
	}
	if res.calls[0] != "珈琲 蔵 吉祥寺" {
		t.Errorf("resolver query = %q", res.calls[0])
	}

	wantQueries := []string{"井の頭公園 池 景色 高画質", "珈琲蔵 吉祥寺 メニュー 映え", "SATOU 料理 映え", "小ざさ メニュー 映え"}
	if strings.Join(imgs.queries, "|") != strings.Join(wantQueries, "|") {
		t.Errorf("image queries = %q", imgs.queries)
	}

	folder := filepath.Join(lib, "001_kichijoji")
	for _, f := range []string{"slide_01.png", "slide_07.png", "caption.txt", "images/photo_landmark.png", "images/photo_spot3.png"} {
		if _, err := os.Stat(filepath.Join(folder, f)); err != nil {
			t.Errorf("%s missing", f)
		}
	}
	caption, _ := os.ReadFile(filepath.Join(folder, "caption.txt"))
	if !strings.Contains(string(caption), "⭐ 4.5（42件のクチコミ）") || strings.Contains(string(caption), "3000") {
		t.Errorf("caption must use live values only:\n%s", caption)
	}
}

func TestJobFailsWithoutConfidentRating(t *testing.T) {
	res := &stubResolver{byName: map[string]rating.Confirmed{"珈琲 蔵": {Rating: 4.5, Reviews: 42}}}
	imgs := &placeholderImages{}
	job, lib := newJob(t, res, imgs)

	out := job.Run(context.Background(), "001")
	if out.OK || !strings.Contains(out.Error, "SATOU") {
		t.Fatalf("result = %+v", out)
	}
	if len(res.calls) != 2 {
		t.Errorf("resolution should stop at the first failure, calls = %v", res.calls)
	}
	if len(imgs.queries) != 0 {
		t.Error("nothing may be fetched after a failed resolution")
	}
	if _, err := os.Stat(filepath.Join(lib, "001_kichijoji", "slide_01.png")); !errors.Is(err, os.ErrNotExist) {
		t.Error("no slides may be rendered with an unconfirmed rating")
	}
}

func TestJobUnknownArea(t *testing.T) {
	job, _ := newJob(t, &stubResolver{}, &placeholderImages{})
	out := job.Run(context.Background(), "404")
	if out.OK || !strings.Contains(out.Error, "area not found") {
		t.Errorf("result = %+v", out)
	}
}

func TestSpotImageQuery(t *testing.T) {
	tests := []struct {
		c    models.Candidate
		want string
	}{
		{models.Candidate{Name: "a", Search: "a 吉祥寺", Category: "隠れ家カフェ"}, "a 吉祥寺 メニュー 映え"},
		{models.Candidate{Name: "b", Category: "焼肉"}, "b 料理 映え"},
		{models.Candidate{Name: "c", Search: "c", Category: "スイーツ"}, "c メニュー 映え"},
	}
	for _, tt := range tests {
		if got := SpotImageQuery(tt.c); got != tt.want {
			t.Errorf("SpotImageQuery(%+v) = %q, want %q", tt.c, got, tt.want)
		}
	}
}
