package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGalleryBuild(t *testing.T) {
	lib, docs := t.TempDir(), filepath.Join(t.TempDir(), "docs")
	touch(t, filepath.Join(lib, "002_asakusa_retro", "slide_02.png"))
	touch(t, filepath.Join(lib, "002_asakusa_retro", "slide_01.png"))
	touch(t, filepath.Join(lib, "002_asakusa_retro", "caption.txt"))
	touch(t, filepath.Join(lib, "002_asakusa_retro", "images", "photo_spot1.png"))
	touch(t, filepath.Join(lib, "001_kichijoji", "slide_01.png"))
	touch(t, filepath.Join(lib, "drafts", "slide_01.png"))

	entries, err := (&Gallery{LibraryDir: lib, DocsDir: docs}).Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Folder != "001_kichijoji" {
		t.Fatalf("entries = %+v", entries)
	}
	e := entries[1]
	if e.Name != "asakusa retro" || !e.Caption || strings.Join(e.Slides, ",") != "slide_01.png,slide_02.png" {
		t.Errorf("entry = %+v", e)
	}

	for _, f := range []string{"index.html", "viewer.html", "manifest.json", "002_asakusa_retro/caption.txt", "002_asakusa_retro/slide_02.png"} {
		if _, err := os.Stat(filepath.Join(docs, f)); err != nil {
			t.Errorf("%s missing: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(docs, "002_asakusa_retro", "images")); !os.IsNotExist(err) {
		t.Error("source images should not be published")
	}

	raw, _ := os.ReadFile(filepath.Join(docs, "manifest.json"))
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil || len(m.Areas) != 2 {
		t.Errorf("manifest = %s (%v)", raw, err)
	}
	index, _ := os.ReadFile(filepath.Join(docs, "index.html"))
	if !strings.Contains(string(index), "viewer.html?area=001_kichijoji") || !strings.Contains(string(index), "2枚のスライド") {
		t.Errorf("index.html does not list the areas:\n%s", index)
	}
}

func TestGalleryEmptyLibrary(t *testing.T) {
	docs := t.TempDir()
	entries, err := (&Gallery{LibraryDir: filepath.Join(t.TempDir(), "missing"), DocsDir: docs}).Build()
	if err != nil || len(entries) != 0 {
		t.Fatalf("Build = %v, %v", entries, err)
	}
	if _, err := os.Stat(filepath.Join(docs, "index.html")); err != nil {
		t.Error("index.html should still be written")
	}
}

func TestPagesURL(t *testing.T) {
	tests := map[string]string{
		"https://github.com/taiyoimmt-ops/tiktok-growth-director.git": "https://taiyoimmt-ops.github.io/tiktok-growth-director/",
		"git@github.com:taiyoimmt-ops/slides.git":                     "https://taiyoimmt-ops.github.io/slides/",
		"https://github.com/u/r":                                      "https://u.github.io/r/",
		"https://gitlab.com/u/r.git":                                  "",
	}
	for remote, want := range tests {
		if got := PagesURL(remote); got != want {
			t.Errorf("PagesURL(%q) = %q, want %q", remote, got, want)
		}
	}
}

func TestGitPublisher(t *testing.T) {
	var calls []string
	p := &GitPublisher{
		RepoDir: "/repo",
		run: func(_ context.Context, dir string, args ...string) ([]byte, error) {
			if dir != "/repo" {
				t.Errorf("dir = %q", dir)
			}
			calls = append(calls, strings.Join(args, " "))
			if args[0] == "remote" {
				return []byte("git@github.com:me/lib.git\n"), nil
			}
			return nil, nil
		},
		now: func() time.Time { return time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC) },
	}
	url, err := p.Publish(context.Background(), []string{"012", "013"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"add docs/", "commit -m batch: 012, 013 (2026-10-16)", "push origin main", "remote get-url origin"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %q", calls)
	}
	if url != "https://me.github.io/lib/" {
		t.Errorf("url = %q", url)
	}

	calls = nil
	p.run = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		calls = append(calls, args[0])
		if args[0] == "commit" {
			return []byte("nothing to commit"), errors.New("exit status 1")
		}
		return nil, nil
	}
	if _, err := p.Publish(context.Background(), []string{"012"}); err == nil || !strings.Contains(err.Error(), "nothing to commit") {
		t.Errorf("err = %v", err)
	}
	if strings.Join(calls, ",") != "add,commit" {
		t.Errorf("push attempted after a failed commit: %v", calls)
	}
}
