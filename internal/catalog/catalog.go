// Package catalog reads duty catalog files used to seed the duty list.
//
// A catalog is YAML or TOML, chosen by file extension:
//
//	# duties.yaml
//	duties:
//	  - name: Deep Cleaning
//	    description: Kitchen and bathrooms
//	    estimated_hours: 3
//	    priority: high
//
//	# duties.toml
//	[[duties]]
//	name = "Deep Cleaning"
//	description = "Kitchen and bathrooms"
//	estimated_hours = 3
//	priority = "HIGH"
//
// Priority is case-insensitive and defaults to MEDIUM.
package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/service"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a catalog encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// File is the on-disk shape of a catalog.
type File struct {
	Duties []Entry `yaml:"duties" toml:"duties"`
}

// Entry is one duty in a catalog file.
type Entry struct {
	Name           string `yaml:"name" toml:"name"`
	Description    string `yaml:"description" toml:"description"`
	EstimatedHours int    `yaml:"estimated_hours" toml:"estimated_hours"`
	Priority       string `yaml:"priority" toml:"priority"`
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported catalog extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Load reads and parses the catalog at path.
func Load(path string) ([]service.CreateDutyRequest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	reqs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reqs, nil
}

// Parse decodes catalog data and converts it to duty creation requests.
func Parse(data []byte, format Format) ([]service.CreateDutyRequest, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse TOML catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}

	reqs := make([]service.CreateDutyRequest, 0, len(f.Duties))
	for i, e := range f.Duties {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("duty %d: name is required", i+1)
		}
		priority := models.PriorityMedium
		if e.Priority != "" {
			p, err := models.ParsePriority(e.Priority)
			if err != nil {
				return nil, fmt.Errorf("duty %q: %w", e.Name, err)
			}
			priority = p
		}
		reqs = append(reqs, service.CreateDutyRequest{
			Name:           strings.TrimSpace(e.Name),
			Description:    e.Description,
			EstimatedHours: e.EstimatedHours,
			Priority:       priority,
		})
	}
	return reqs, nil
}

// Encode renders duties as a catalog, the inverse of Parse.
func Encode(duties []models.Duty, format Format) ([]byte, error) {
	f := File{Duties: make([]Entry, len(duties))}
	for i, d := range duties {
		f.Duties[i] = Entry{
			Name:           d.Name,
			Description:    d.Description,
			EstimatedHours: d.EstimatedHours,
			Priority:       string(d.Priority),
		}
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(f)
	case FormatTOML:
		return toml.Marshal(f)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
}
