package ingest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"cargoledger/internal/domain/manifest"
)

type shapeProfile struct {
	IdentifierColumn string            `toml:"identifier_column"`
	GroupColumn      string            `toml:"group_column"`
	ReleaseColumn    string            `toml:"release_column"`
	TrackedColumns   []string          `toml:"tracked_columns"`
	DateColumns      []string          `toml:"date_columns"`
	Columns          []string          `toml:"columns"`
	Aliases          map[string]string `toml:"aliases"`
}

type manifestProfile struct {
	Version int                     `toml:"version"`
	Shapes  map[string]shapeProfile `toml:"shapes"`
}

// LoadShapes reads a TOML manifest profile and overlays it on the default
// shapes. An empty path returns the defaults.
func LoadShapes(path string) (manifest.Shapes, error) {
	shapes := manifest.DefaultShapes()
	path = strings.TrimSpace(path)
	if path == "" {
		return shapes, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseShapes(raw)
}

func ParseShapes(raw []byte) (manifest.Shapes, error) {
	var profile manifestProfile
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return nil, err
	}
	if profile.Version != 1 {
		return nil, errors.New("unsupported manifest profile version: expected version = 1")
	}

	shapes := manifest.DefaultShapes()
	for name, override := range profile.Shapes {
		kind, err := manifest.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("shapes.%s: %w", name, err)
		}
		shape := shapes[kind]
		applyShapeProfile(&shape, override)
		if err := shape.Validate(); err != nil {
			return nil, fmt.Errorf("shapes.%s: %w", name, err)
		}
		shapes[kind] = shape
	}
	return shapes, nil
}

func applyShapeProfile(shape *manifest.Shape, p shapeProfile) {
	set := func(dst *string, v string) {
		if v = canonical(v); v != "" {
			*dst = v
		}
	}
	set(&shape.IdentifierColumn, p.IdentifierColumn)
	set(&shape.GroupColumn, p.GroupColumn)
	set(&shape.ReleaseColumn, p.ReleaseColumn)

	if len(p.Columns) > 0 {
		shape.Columns = canonicalAll(p.Columns)
	}
	if len(p.TrackedColumns) > 0 {
		shape.TrackedColumns = canonicalAll(p.TrackedColumns)
	}
	if len(p.DateColumns) > 0 {
		shape.DateColumns = canonicalAll(p.DateColumns)
	}
	for alias, column := range p.Aliases {
		shape.Aliases[canonical(alias)] = canonical(column)
	}
}

func canonical(v string) string {
	return strings.ToUpper(strings.Join(strings.Fields(v), " "))
}

func canonicalAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if c := canonical(v); c != "" {
			out = append(out, c)
		}
	}
	return out
}
