package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Override adjusts a named handler from handlers.yaml without touching code:
// operators can disable a handler or tighten its gates per deployment.
type Override struct {
	Name           string   `yaml:"name"`
	Disabled       bool     `yaml:"disabled,omitempty"`
	RequireMention *bool    `yaml:"require_mention,omitempty"`
	RequireAdmin   *bool    `yaml:"require_admin,omitempty"`
	Channels       []string `yaml:"channels,omitempty"`
}

// overridesFile is the top-level structure of handlers.yaml.
type overridesFile struct {
	Handlers []Override `yaml:"handlers"`
}

// LoadOverrides reads and parses a handlers.yaml file. A missing file means
// no overrides.
func LoadOverrides(path string) ([]Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read handlers.yaml: %w", err)
	}

	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse handlers.yaml: %w", err)
	}
	return f.Handlers, nil
}

// ApplyOverrides returns a copy of specs with the overrides applied. Disabled
// handlers are dropped; overrides naming unknown handlers are ignored.
func ApplyOverrides(specs []HandlerSpec, overrides []Override) []HandlerSpec {
	if len(overrides) == 0 {
		return specs
	}

	byName := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		byName[o.Name] = o
	}

	out := make([]HandlerSpec, 0, len(specs))
	for _, spec := range specs {
		o, ok := byName[spec.Name]
		if !ok {
			out = append(out, spec)
			continue
		}
		if o.Disabled {
			continue
		}
		if o.RequireMention != nil {
			spec.RequireMention = *o.RequireMention
		}
		if o.RequireAdmin != nil {
			spec.RequireAdmin = *o.RequireAdmin
		}
		if len(o.Channels) > 0 {
			spec.Channels = append([]string(nil), o.Channels...)
		}
		out = append(out, spec)
	}
	return out
}
