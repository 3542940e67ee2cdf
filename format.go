// File: confgen/format.go
package confgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// detectFileFormat determines format from file extension.
func detectFileFormat(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing. JSON is
// checked first because YAML is a superset of it.
func detectFormatFromContent(data []byte) string {
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return "json"
	}

	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}

	var tomlTest any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}

	return ""
}

// parseDocument decodes TOML, YAML or JSON file data into a nested map.
// The format is detected from the path extension first, then from content.
func parseDocument(path string, data []byte) (map[string]any, error) {
	format := detectFileFormat(path)
	if format == "" {
		format = detectFormatFromContent(data)
	}

	doc := make(map[string]any)
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML file '%s': %w", path, err)
		}
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber() // Preserve number precision
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON file '%s': %w", path, err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML file '%s': %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unable to determine format for file '%s'", path)
	}

	for k, v := range doc {
		doc[k] = normalizeValue(v)
	}
	return doc, nil
}
