package prompts

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
)

const ext = ".txt.tmpl"

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"truncate": func(s string, n int) string {
		if utf8.RuneCountInString(s) <= n {
			return s
		}
		return string([]rune(s)[:n]) + "…"
	},
	"join": strings.Join,
}

// Manager compiles prompt and caption templates once and renders them by
// name. Files in an override directory replace embedded ones with the same
// name, so wording can be tuned without a rebuild.
type Manager struct {
	mu   sync.RWMutex
	tpls map[string]*template.Template
}

// NewManager loads the embedded templates, then overrideDir if set.
func NewManager(overrideDir string) (*Manager, error) {
	m := &Manager{tpls: make(map[string]*template.Template)}
	if err := m.load(FS()); err != nil {
		return nil, errs.NewBiz("prompts.NewManager", "failed to load prompts", err)
	}
	if overrideDir != "" {
		if _, err := os.Stat(overrideDir); err != nil {
			return nil, errs.NewValidation("prompts.NewManager", "prompt dir not readable", err)
		}
		if err := m.load(os.DirFS(overrideDir)); err != nil {
			return nil, errs.NewBiz("prompts.NewManager", "failed to load prompt overrides", err)
		}
	}
	return m, nil
}

func (m *Manager) load(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ext) {
			return nil
		}
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read template %s: %w", p, err)
		}
		name := strings.TrimSuffix(path.Base(p), ext)
		tpl, err := template.New(name).Funcs(funcs).Parse(string(b))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", p, err)
		}
		m.mu.Lock()
		m.tpls[name] = tpl
		m.mu.Unlock()
		return nil
	})
}

// Names lists the loaded templates.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.tpls))
	for n := range m.tpls {
		out = append(out, n)
	}
	return out
}

// Render executes a named template with data.
func (m *Manager) Render(name string, data any) (string, error) {
	m.mu.RLock()
	tpl, ok := m.tpls[name]
	m.mu.RUnlock()
	if !ok {
		return "", errs.NewValidation("prompts.Render", fmt.Sprintf("template not found: %s", name), nil)
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", errs.NewBiz("prompts.Render", fmt.Sprintf("execute template %s", name), err)
	}
	return strings.TrimSpace(sb.String()), nil
}
