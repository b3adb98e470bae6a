package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ToolSpec is one catalog entry: the name, description and JSON schema
// advertised to the model
type ToolSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
}

// ParametersJSON returns the parameter schema as JSON
func (t ToolSpec) ParametersJSON() (json.RawMessage, error) {
	if t.Parameters == nil {
		return json.RawMessage(`{"type":"object","properties":{}}`), nil
	}
	data, err := json.Marshal(t.Parameters)
	if err != nil {
		return nil, fmt.Errorf("tool %s: encode parameters: %w", t.Name, err)
	}
	return data, nil
}

type toolCatalogFile struct {
	Tools []ToolSpec `yaml:"tools"`
}

// LoadToolCatalog reads the catalog at path, or the built-in catalog when path is empty
func LoadToolCatalog(path string) ([]ToolSpec, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tool catalog: %w", err)
		}
	}
	return ParseToolCatalog(data)
}

// ParseToolCatalog decodes a YAML catalog document
func ParseToolCatalog(data []byte) ([]ToolSpec, error) {
	var file toolCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Tools))
	for i, t := range file.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("parse tool catalog: tools[%d] has no name", i)
		}
		if _, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("parse tool catalog: duplicate tool %q", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return file.Tools, nil
}
