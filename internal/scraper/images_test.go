package scraper

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

func TestImageCandidates(t *testing.T) {
	html := `<body>
<a class="iusc" m='{"murl":"https://img.example.com/full.jpg","turl":"https://tse.example.com/th"}'></a>
<img src="data:image/gif;base64,R0lGOD">
<img data-src="https://img.example.com/lazy.jpg" src="https://img.example.com/lazy.jpg">
<img src="/relative.png">
</body>`
	got := ImageCandidates(html, 5)
	want := []string{"https://img.example.com/full.jpg", "https://img.example.com/lazy.jpg"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestImageFetcherSave(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpeg)
		default:
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		}
	}))
	defer srv.Close()

	dir := t.TempDir()

	t.Run("first usable image", func(t *testing.T) {
		pages := pageFunc(func(context.Context, string) (Snapshot, error) {
			return Snapshot{HTML: `<img src="` + srv.URL + `/not-image"><img src="` + srv.URL + `/ok.jpg">`}, nil
		})
		f := NewImageFetcher(pages, "https://search.example/?q=", "", 0, 0, logging.Nop())
		dest := filepath.Join(dir, "images", "photo_spot1.png")
		placeholder, err := f.Save(context.Background(), "珈琲 蔵 メニュー 映え", dest)
		if err != nil || placeholder {
			t.Fatalf("Save = %v, %v", placeholder, err)
		}
		data, _ := os.ReadFile(dest)
		if !bytes.Equal(data, jpeg) {
			t.Errorf("saved %v", data)
		}
	})

	t.Run("placeholder when nothing found", func(t *testing.T) {
		pages := pageFunc(func(context.Context, string) (Snapshot, error) { return Snapshot{HTML: "<body></body>"}, nil })
		f := NewImageFetcher(pages, "https://search.example/?q=", "", 0, 0, nil)
		dest := filepath.Join(dir, "images", "photo_landmark.png")
		placeholder, err := f.Save(context.Background(), "井の頭公園 景色 高画質", dest)
		if err != nil || !placeholder {
			t.Fatalf("Save = %v, %v", placeholder, err)
		}
		data, _ := os.ReadFile(dest)
		if !bytes.HasPrefix(data, []byte("\x89PNG")) {
			t.Errorf("placeholder is not a PNG: %v", data[:4])
		}
	})
}
