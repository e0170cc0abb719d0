package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
)

// overlayFile is the YAML shape accepted by PIPELINE_CONFIG:
//
//	pipeline:
//	  radius_km: 10
//	  settle_delay: 2s
type overlayFile struct {
	Pipeline *Pipeline `yaml:"pipeline"`
}

// applyOverlay merges keys present in the file over the env-derived values.
// Unknown keys are rejected so typos surface at startup.
func (c *Config) applyOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errs.NewValidation("config.applyOverlay", "cannot read "+path, err)
	}
	doc := overlayFile{Pipeline: &c.Pipeline}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return errs.NewValidation("config.applyOverlay", "invalid YAML in "+path, err)
	}
	return nil
}
