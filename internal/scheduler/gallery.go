package scheduler

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
)

//go:embed templates/*.html.tmpl
var galleryFS embed.FS

var (
	galleryTmpl  = template.Must(template.ParseFS(galleryFS, "templates/*.html.tmpl"))
	reAreaFolder = regexp.MustCompile(`^\d{3}_`)
)

const (
	manifestName = "manifest.json"
	captionName  = "caption.txt"
)

// GalleryEntry describes one generated area in the published gallery.
type GalleryEntry struct {
	Folder  string   `json:"folder"`
	Name    string   `json:"name"`
	Slides  []string `json:"slides"`
	Caption bool     `json:"caption"`
}

// Manifest is written next to the pages for the viewer.
type Manifest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Areas       []GalleryEntry `json:"areas"`
}

// Gallery mirrors every NNN_ library folder into the docs directory and
// writes the static index and viewer pages.
type Gallery struct {
	LibraryDir string
	DocsDir    string
}

// Build copies slides and captions and rewrites the pages. Entries come
// back sorted by folder.
func (g *Gallery) Build() ([]GalleryEntry, error) {
	if err := os.MkdirAll(g.DocsDir, 0o755); err != nil {
		return nil, errs.NewValidation("gallery.Build", "create docs dir", err)
	}
	dirs, err := os.ReadDir(g.LibraryDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, errs.NewValidation("gallery.Build", "read library", err)
	}

	entries := []GalleryEntry{}
	for _, d := range dirs {
		if !d.IsDir() || !reAreaFolder.MatchString(d.Name()) {
			continue
		}
		e, err := g.mirror(d.Name())
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Folder < entries[j].Folder })

	m := Manifest{GeneratedAt: time.Now().UTC(), Areas: entries}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errs.NewValidation("gallery.Build", "encode manifest", err)
	}
	if err := os.WriteFile(filepath.Join(g.DocsDir, manifestName), raw, 0o644); err != nil {
		return nil, errs.NewValidation("gallery.Build", "write manifest", err)
	}
	if err := g.page("index.html", map[string]any{"Areas": entries}); err != nil {
		return nil, err
	}
	if err := g.page("viewer.html", map[string]any{"Manifest": manifestName}); err != nil {
		return nil, err
	}
	return entries, nil
}

func (g *Gallery) mirror(folder string) (GalleryEntry, error) {
	src := filepath.Join(g.LibraryDir, folder)
	dst := filepath.Join(g.DocsDir, folder)
	e := GalleryEntry{
		Folder: folder,
		Name:   strings.ReplaceAll(reAreaFolder.ReplaceAllString(folder, ""), "_", " "),
		Slides: []string{},
	}

	files, err := os.ReadDir(src)
	if err != nil {
		return e, errs.NewValidation("gallery.mirror", "read "+folder, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return e, errs.NewValidation("gallery.mirror", "create "+folder, err)
	}
	for _, f := range files {
		name := f.Name()
		switch {
		case f.IsDir():
			continue
		case reSlide.MatchString(name):
			e.Slides = append(e.Slides, name)
		case name == captionName:
			e.Caption = true
		default:
			continue
		}
		if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return e, errs.NewValidation("gallery.mirror", "copy "+name, err)
		}
	}
	sort.Strings(e.Slides)
	return e, nil
}

func (g *Gallery) page(name string, data any) error {
	var buf bytes.Buffer
	if err := galleryTmpl.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return errs.NewValidation("gallery.page", "render "+name, err)
	}
	if err := os.WriteFile(filepath.Join(g.DocsDir, name), buf.Bytes(), 0o644); err != nil {
		return errs.NewValidation("gallery.page", "write "+name, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
