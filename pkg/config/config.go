// Package config loads the declarations and control groups a run consumes.
//
// A document has two optional top-level lists, "resources" and
// "control_groups". It may be written in YAML, JSON, JSON with comments or
// TOML; the format is picked from the file extension. Every document is
// checked against DocumentSchema before it is decoded, so unknown keys and
// misplaced fields are reported with their location instead of being
// silently dropped.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is an input document encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatTOML  Format = "toml"
)

// Document is a validated, decoded input document.
type Document struct {
	Resources     []domain.Resource     `json:"resources"`
	ControlGroups []domain.ControlGroup `json:"control_groups"`
}

// AssertionCount returns the number of assertions across all control groups.
func (d *Document) AssertionCount() int {
	n := 0
	for _, g := range d.ControlGroups {
		n += g.AssertionCount()
	}
	return n
}

// Merge appends other to d, keeping order. Resource identities are not
// collapsed here; the converger does that at run time.
func (d *Document) Merge(other *Document) {
	if other == nil {
		return
	}
	d.Resources = append(d.Resources, other.Resources...)
	d.ControlGroups = append(d.ControlGroups, other.ControlGroups...)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonc":
		return FormatJSONC, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

// Load reads and parses a single document file.
// All failures are *domain.ConfigParseError.
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, &domain.ConfigParseError{Path: path, Cause: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigParseError{Path: path, Cause: err}
	}
	doc, err := Parse(data, format)
	if err != nil {
		var cpe *domain.ConfigParseError
		if errors.As(err, &cpe) {
			cpe.Path = path
			return nil, cpe
		}
		return nil, &domain.ConfigParseError{Path: path, Cause: err}
	}
	return doc, nil
}

// Parse decodes raw bytes in the given format.
func Parse(data []byte, format Format) (*Document, error) {
	raw, err := unmarshalRaw(data, format)
	if err != nil {
		return nil, &domain.ConfigParseError{Cause: err}
	}
	return Decode(raw)
}

func unmarshalRaw(data []byte, format Format) (map[string]any, error) {
	raw := map[string]any{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}
	case FormatJSON, FormatJSONC:
		if format == FormatJSONC {
			data = jsonc.ToJSON(data)
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			return raw, nil
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	if raw == nil {
		// An empty YAML document decodes to nil.
		raw = map[string]any{}
	}
	return raw, nil
}

// Decode validates a raw document against DocumentSchema and converts it into
// domain values.
func Decode(raw map[string]any) (*Document, error) {
	if err := schema.Validate(DocumentSchema, raw); err != nil {
		return nil, schemaError(err)
	}

	var spec documentSpec
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &spec,
	})
	if err != nil {
		return nil, &domain.ConfigParseError{Cause: err}
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, &domain.ConfigParseError{Cause: err}
	}
	return spec.toDocument()
}

func schemaError(err error) error {
	errs := schema.ValidationErrors(err)
	if len(errs) == 0 {
		return &domain.ConfigParseError{Cause: err}
	}
	first := errs[0]
	if len(errs) == 1 {
		return &domain.ConfigParseError{Field: first.Key, Cause: errors.New(first.Reason)}
	}
	return &domain.ConfigParseError{Field: first.Key, Cause: err}
}

type documentSpec struct {
	Resources     []resourceSpec     `mapstructure:"resources"`
	ControlGroups []controlGroupSpec `mapstructure:"control_groups"`
}

type resourceSpec struct {
	Kind    string   `mapstructure:"kind"`
	Name    string   `mapstructure:"name"`
	Actions []string `mapstructure:"actions"`
	Path    string   `mapstructure:"path"`
	Content *string  `mapstructure:"content"`
	Owner   *string  `mapstructure:"owner"`
	User    *string  `mapstructure:"user"`
	Group   *string  `mapstructure:"group"`
}

type controlGroupSpec struct {
	Name     string        `mapstructure:"name"`
	Controls []controlSpec `mapstructure:"controls"`
}

type controlSpec struct {
	Name       string          `mapstructure:"name"`
	Assertions []assertionSpec `mapstructure:"assertions"`
}

type assertionSpec struct {
	Kind    string `mapstructure:"kind"`
	Service string `mapstructure:"service"`
	Path    string `mapstructure:"path"`
	User    string `mapstructure:"user"`
	Negate  bool   `mapstructure:"negate"`
}

func (s documentSpec) toDocument() (*Document, error) {
	doc := &Document{
		Resources:     make([]domain.Resource, 0, len(s.Resources)),
		ControlGroups: make([]domain.ControlGroup, 0, len(s.ControlGroups)),
	}

	for i, rs := range s.Resources {
		field := fmt.Sprintf("resources[%d]", i)
		r, err := rs.toResource(field)
		if err != nil {
			return nil, err
		}
		doc.Resources = append(doc.Resources, r)
	}

	for _, gs := range s.ControlGroups {
		group := domain.ControlGroup{Name: gs.Name, Controls: make([]domain.Control, 0, len(gs.Controls))}
		for _, cs := range gs.Controls {
			control := domain.Control{Name: cs.Name, Assertions: make([]domain.Assertion, 0, len(cs.Assertions))}
			for _, as := range cs.Assertions {
				control.Assertions = append(control.Assertions, as.toAssertion())
			}
			group.Controls = append(group.Controls, control)
		}
		doc.ControlGroups = append(doc.ControlGroups, group)
	}
	return doc, nil
}

func (rs resourceSpec) toResource(field string) (domain.Resource, error) {
	switch domain.ResourceKind(rs.Kind) {
	case domain.KindPackage:
		return domain.Package{Name: rs.Name}, nil

	case domain.KindService:
		actions, err := parseActions(rs.Actions)
		if err != nil {
			return nil, &domain.ConfigParseError{Field: field + ".actions", Cause: err}
		}
		return domain.Service{Name: rs.Name, Actions: actions}, nil

	case domain.KindFile:
		if rs.Owner != nil && rs.User != nil {
			return nil, &domain.ConfigParseError{Field: field, Cause: errors.New("owner and user are aliases, set only one")}
		}
		owner := rs.Owner
		if owner == nil {
			owner = rs.User
		}
		return domain.File{Path: rs.Path, Content: rs.Content, Owner: owner, Group: rs.Group}, nil
	}
	return nil, &domain.ConfigParseError{Field: field + ".kind", Cause: fmt.Errorf("unknown resource kind %q", rs.Kind)}
}

// parseActions drops duplicates and rejects contradictory pairs.
func parseActions(raw []string) ([]domain.ServiceAction, error) {
	actions := make([]domain.ServiceAction, 0, len(raw))
	for _, r := range raw {
		a, err := domain.ParseServiceAction(r)
		if err != nil {
			return nil, err
		}
		if slices.Contains(actions, a) {
			continue
		}
		if slices.Contains(actions, a.Opposite()) {
			return nil, fmt.Errorf("conflicting actions %q and %q", a.Opposite(), a)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func (as assertionSpec) toAssertion() domain.Assertion {
	var a domain.Assertion
	switch domain.AssertionKind(as.Kind) {
	case domain.AssertServiceRunning:
		a = domain.ServiceRunning(as.Service)
	case domain.AssertServiceEnabled:
		a = domain.ServiceEnabled(as.Service)
	case domain.AssertFileOwnedBy:
		a = domain.FileOwnedBy(as.Path, as.User, false)
	}
	a.Negated = as.Negate
	return a
}
