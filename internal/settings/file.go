package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	dErrors "vericore/pkg/domain-errors"
	"vericore/pkg/platform/strings"
)

// fileFormat is the YAML layout of a settings file. Every section is optional;
// a missing section keeps its default.
type fileFormat struct {
	Catalog    *models.Catalog      `yaml:"catalog"`
	Settings   *models.Settings     `yaml:"settings"`
	Thresholds *decision.Thresholds `yaml:"thresholds"`
}

// LoadFile reads a settings file. An empty path yields Defaults.
func LoadFile(path string) (Snapshot, error) {
	if path == "" {
		return Defaults(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read settings file %s: %w", path, err)
	}
	snap, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return Snapshot{}, fmt.Errorf("settings file %s: %w", path, err)
	}
	return snap, nil
}

// Parse decodes a settings document over Defaults and validates the result.
// Keys missing from a section keep their default value.
func Parse(r io.Reader) (Snapshot, error) {
	snap := Defaults()
	f := fileFormat{
		Catalog:    &snap.Catalog,
		Settings:   &snap.Settings,
		Thresholds: &snap.Thresholds,
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid settings yaml")
	}
	if f.Catalog != nil {
		snap.Catalog = cleanCatalog(*f.Catalog)
	}
	if f.Settings != nil {
		snap.Settings = *f.Settings
	}
	if f.Thresholds != nil {
		snap.Thresholds = *f.Thresholds
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Encode writes snap in the file layout, so an exported file loads back unchanged.
func Encode(w io.Writer, snap Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fileFormat{
		Catalog:    &snap.Catalog,
		Settings:   &snap.Settings,
		Thresholds: &snap.Thresholds,
	}); err != nil {
		return err
	}
	return enc.Close()
}

func cleanCatalog(c models.Catalog) models.Catalog {
	out := models.Catalog{Documents: make([]models.DocumentType, 0, len(c.Documents))}
	for _, d := range c.Documents {
		d.ExpectedFields = strings.DedupeFold(d.ExpectedFields)
		out.Documents = append(out.Documents, d)
	}
	return out
}
