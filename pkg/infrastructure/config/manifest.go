package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Manifest describes one import: the order, its tools and their BOM files
type Manifest struct {
	SONumber string         `yaml:"so_number" validate:"required"`
	Catalog  string         `yaml:"catalog"`
	Sheet    string         `yaml:"sheet"`
	Tools    []ToolManifest `yaml:"tools" validate:"required,min=1,unique=Label,dive"`
}

// ToolManifest maps one BOM instance to the tool it produces
type ToolManifest struct {
	Label      string `yaml:"label" validate:"required"`
	ToolNumber string `yaml:"tool_number" validate:"required"`
	ToolModel  string `yaml:"tool_model"`
	BOM        string `yaml:"bom" validate:"required"`
}

var validate = validator.New()

// LoadManifest reads and validates a manifest. Relative file paths are
// resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	m.Catalog = resolve(base, m.Catalog)
	for i := range m.Tools {
		m.Tools[i].BOM = resolve(base, m.Tools[i].BOM)
	}
	return m, nil
}

// ParseManifest decodes and validates manifest YAML. Unknown keys are rejected.
func ParseManifest(raw []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("invalid manifest: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
