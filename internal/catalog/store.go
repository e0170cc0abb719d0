package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// ErrAreaNotFound is returned by Find for an unknown id.
var ErrAreaNotFound = errs.NewBiz("catalog.Find", "area not found", nil)

var rePlaceholderPrefix = regexp.MustCompile(`^000_`)

// Store is the JSON file backed catalog. It assumes a single writer.
type Store struct {
	path string
	log  *logging.ComponentLogger
}

var _ domain.CatalogRepository = (*Store)(nil)

func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{path: path, log: logger.WithComponent("catalog")}
}

// Path returns the catalog file location.
func (s *Store) Path() string { return s.path }

// Load reads the whole catalog. A missing file is an empty catalog.
func (s *Store) Load() (*models.Catalog, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &models.Catalog{Areas: []models.AreaRecord{}}, nil
	}
	if err != nil {
		return nil, errs.NewValidation("catalog.Load", "read "+s.path, err)
	}
	var c models.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errs.NewValidation("catalog.Load", "parse "+s.path, err)
	}
	if c.Areas == nil {
		c.Areas = []models.AreaRecord{}
	}
	return &c, nil
}

// Find returns the record with id, or ErrAreaNotFound.
func (s *Store) Find(id string) (models.AreaRecord, error) {
	c, err := s.Load()
	if err != nil {
		return models.AreaRecord{}, err
	}
	a, ok := c.Find(id)
	if !ok {
		return models.AreaRecord{}, fmt.Errorf("%s: %w", id, ErrAreaNotFound)
	}
	return a, nil
}

// Append assigns the next id and folder to area, adds it at the end and
// rewrites the file. The stored record is returned.
func (s *Store) Append(area models.AreaRecord) (models.AreaRecord, error) {
	c, err := s.Load()
	if err != nil {
		return models.AreaRecord{}, err
	}
	id, err := NextID(c.Areas)
	if err != nil {
		return models.AreaRecord{}, err
	}
	area.ID = id
	area.Folder = AssignFolder(area.Folder, id)
	c.Areas = append(c.Areas, area)

	if err := s.write(c); err != nil {
		return models.AreaRecord{}, err
	}
	s.log.Info("area appended", logging.String("id", id), logging.String("area", area.Area), logging.String("folder", area.Folder), logging.Int("spots", len(area.Spots)))
	return area, nil
}

// write replaces the file through a temp file rename so readers never see
// a torn document.
func (s *Store) write(c *models.Catalog) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return errs.NewValidation("catalog.write", "encode", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.NewValidation("catalog.write", "mkdir "+dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return errs.NewValidation("catalog.write", "temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errs.NewValidation("catalog.write", "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.NewValidation("catalog.write", "close temp file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errs.NewValidation("catalog.write", "rename", err)
	}
	return nil
}

// NextID is the last record's id plus one, zero padded. An empty catalog
// starts at 001.
func NextID(areas []models.AreaRecord) (string, error) {
	last := 0
	if n := len(areas); n > 0 {
		v, err := strconv.Atoi(strings.TrimSpace(areas[n-1].ID))
		if err != nil {
			return "", errs.NewValidation("catalog.NextID", fmt.Sprintf("last id %q is not numeric", areas[n-1].ID), err)
		}
		last = v
	}
	return fmt.Sprintf("%0*d", constants.CatalogIDWidth, last+1), nil
}

// AssignFolder replaces the 000_ placeholder prefix with id. Folders without
// the placeholder are kept as given.
func AssignFolder(folder, id string) string {
	if folder == "" {
		return id + "_area"
	}
	return rePlaceholderPrefix.ReplaceAllString(folder, id+"_")
}
