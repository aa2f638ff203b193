package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrCatalogNotFound = errors.New("catalog file not found")

// document is the wrapped on-disk form: {"rooms": [...]}.
type document struct {
	Rooms []Room `json:"rooms" yaml:"rooms"`
}

// Load reads and validates a catalog file. The format is chosen by extension:
// .yaml/.yml is YAML, anything else is JSON. Both a bare list of rooms and an
// object with a "rooms" key are accepted.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	rooms, err := Parse(data, formatFor(path))
	if err != nil {
		return nil, err
	}
	return New(rooms)
}

// Format names a catalog encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes rooms without validating them.
func Parse(data []byte, format Format) ([]Room, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty catalog", ErrInvalidConfig)
	}

	switch format {
	case FormatYAML:
		var rooms []Room
		if err := yaml.Unmarshal(trimmed, &rooms); err == nil {
			return rooms, nil
		}
		var doc document
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
		return doc.Rooms, nil

	default:
		if trimmed[0] == '[' {
			var rooms []Room
			if err := json.Unmarshal(trimmed, &rooms); err != nil {
				return nil, fmt.Errorf("failed to parse catalog: %w", err)
			}
			return rooms, nil
		}
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
		return doc.Rooms, nil
	}
}

// LoadOrMinimal loads the catalog at path and falls back to Minimal on any
// failure. The second return value is false when the fallback was used.
func LoadOrMinimal(path string, logger *zap.Logger) (*Catalog, bool) {
	c, err := Load(path)
	if err != nil {
		logger.Warn("room catalog unavailable, using built-in minimal catalog",
			zap.String("path", path), zap.Error(err))
		return Minimal(), false
	}

	logger.Info("room catalog loaded", zap.String("path", path), zap.Int("rooms", c.Len()))
	return c, true
}
