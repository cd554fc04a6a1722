// Package config parses the YAML project descriptor into an ordered
// ProjectConfig. The routes mapping preserves declaration order, which a
// plain Go map cannot guarantee, so RouteTable carries its own
// order-preserving YAML decoder modeled on the same "document node walk"
// technique the teacher's config/codec package uses to decode into
// map[string]any while staying format-agnostic.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RouteEntry is one method/handler pair declared under a path pattern.
type RouteEntry struct {
	Method  HTTPMethod `yaml:"method" validate:"required"`
	Handler string     `yaml:"handler" validate:"required"`
}

// RouteDecl is a single path pattern and its method entries, in the order
// they were declared in the YAML document.
type RouteDecl struct {
	Path    string
	Entries []RouteEntry `validate:"dive"`
}

// RouteTable is the ordered mapping of path-pattern to RouteEntry list
// spec.md §3 calls for. Its YAML decoding walks the mapping node's
// Content pairwise instead of decoding into a Go map, which is the only
// way to keep registration order in gopkg.in/yaml.v3.
type RouteTable []RouteDecl

// UnmarshalYAML preserves document order by iterating the raw mapping
// node's key/value pairs rather than decoding into map[string]any.
func (rt *RouteTable) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("routes: expected a mapping, got %v", value.Kind)
	}

	decls := make(RouteTable, 0, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]

		var entries []RouteEntry
		if err := valNode.Decode(&entries); err != nil {
			return fmt.Errorf("routes[%s]: %w", keyNode.Value, err)
		}
		if len(entries) == 0 {
			return fmt.Errorf("routes[%s]: at least one method entry is required", keyNode.Value)
		}
		decls = append(decls, RouteDecl{Path: keyNode.Value, Entries: entries})
	}

	*rt = decls
	return nil
}

// ProjectConfig is the decoded project descriptor: a name and an ordered
// route table.
type ProjectConfig struct {
	Name   string     `yaml:"name" validate:"required"`
	Routes RouteTable `yaml:"routes" validate:"required,dive"`
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes a YAML document into a ProjectConfig, then runs struct
// validation and the duplicate-method and leading-slash checks spec.md §4.B
// and §4.H require at load time rather than at request time.
func Parse(data []byte) (*ProjectConfig, error) {
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing project config: %w", err)
	}

	if err := structValidator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating project config: %w", err)
	}

	if err := cfg.validateRoutes(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load reads and parses a YAML project descriptor from disk.
func Load(filename string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading project config: %w", err)
	}
	return Parse(data)
}

func (c *ProjectConfig) validateRoutes() error {
	if len(c.Routes) == 0 {
		return fmt.Errorf("project config: at least one route is required")
	}

	for _, decl := range c.Routes {
		if !strings.HasPrefix(decl.Path, "/") {
			return fmt.Errorf("route %q: path pattern must start with %q", decl.Path, "/")
		}

		seen := make(map[HTTPMethod]bool, len(decl.Entries))
		for _, entry := range decl.Entries {
			if seen[entry.Method] {
				return fmt.Errorf("route %q: duplicate method %s", decl.Path, entry.Method)
			}
			seen[entry.Method] = true
		}
	}

	return nil
}
