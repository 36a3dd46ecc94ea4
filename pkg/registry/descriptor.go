// Package registry loads endpoint descriptors from a directory tree into an
// immutable snapshot, republishing a fresh snapshot via atomic
// pointer swap whenever the tree changes on disk.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/melosso/portway/pkg/endpoint"
)

// rawDescriptor is the YAML shape of one endpoint file, decoded loosely via
// a map before being routed to a Kind-specific mapstructure decode so
// unrecognised fields survive into endpoint.Definition.Extra.
type rawDescriptor struct {
	Name           string   `yaml:"name" validate:"required"`
	Namespace      string   `yaml:"namespace"`
	Kind           string   `yaml:"kind" validate:"required,oneof=sql proxy composite file static"`
	AllowedMethods []string `yaml:"allowedMethods"`
	IsPrivate      bool     `yaml:"isPrivate"`

	SQL       map[string]any `yaml:"sql"`
	Proxy     map[string]any `yaml:"proxy"`
	Composite map[string]any `yaml:"composite"`
	File      map[string]any `yaml:"file"`
	Static    map[string]any `yaml:"static"`

	Extra map[string]any `yaml:",inline"`
}

var validate = validator.New()

// loadFile decodes one descriptor file into an endpoint.Definition.
func loadFile(path, namespaceFromPath string) (*endpoint.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var raw rawDescriptor
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validate.Struct(&raw); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	def := &endpoint.Definition{
		Name:      raw.Name,
		Namespace: raw.Namespace,
		Kind:      endpoint.Kind(raw.Kind),
		IsPrivate: raw.IsPrivate,
		Extra:     raw.Extra,
	}
	if def.Namespace == "" {
		def.Namespace = namespaceFromPath
	}
	for _, m := range raw.AllowedMethods {
		def.AllowedMethods = append(def.AllowedMethods, endpoint.Method(strings.ToUpper(m)))
	}

	switch def.Kind {
	case endpoint.KindSQL:
		var spec endpoint.SQLSpec
		if err := decodeSection(raw.SQL, &spec); err != nil {
			return nil, fmt.Errorf("%s: sql section: %w", path, err)
		}
		def.SQL = &spec
	case endpoint.KindProxy:
		var spec endpoint.ProxySpec
		if err := decodeSection(raw.Proxy, &spec); err != nil {
			return nil, fmt.Errorf("%s: proxy section: %w", path, err)
		}
		def.Proxy = &spec
	case endpoint.KindComposite:
		var spec endpoint.CompositeSpec
		if err := decodeSection(raw.Composite, &spec); err != nil {
			return nil, fmt.Errorf("%s: composite section: %w", path, err)
		}
		def.Composite = &spec
	case endpoint.KindFile:
		var spec endpoint.FileSpec
		if err := decodeSection(raw.File, &spec); err != nil {
			return nil, fmt.Errorf("%s: file section: %w", path, err)
		}
		def.File = &spec
	case endpoint.KindStatic:
		var spec endpoint.StaticSpec
		if err := decodeSection(raw.Static, &spec); err != nil {
			return nil, fmt.Errorf("%s: static section: %w", path, err)
		}
		if spec.Path != "" {
			payload, err := os.ReadFile(resolveRelative(path, spec.Path))
			if err != nil {
				return nil, fmt.Errorf("%s: load static payload: %w", path, err)
			}
			spec.Payload = payload
		}
		def.Static = &spec
	default:
		return nil, fmt.Errorf("%s: unknown kind %q", path, raw.Kind)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

func decodeSection(section map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if err != nil {
		return err
	}
	return dec.Decode(section)
}

func resolveRelative(descriptorPath, target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(filepath.Dir(descriptorPath), target)
}
