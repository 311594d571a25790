package loader

import (
	"fmt"
	"time"

	"go.yaml.in/yaml/v3"
)

// Pipeline kinds.
const (
	KindBasic      = "basic"
	KindCollection = "collection"
)

// Document is the top level of a definition file.
type Document struct {
	Pipelines []PipelineDef `yaml:"pipelines" validate:"dive"`
}

// PipelineDef declares one pipeline.
type PipelineDef struct {
	Name        string `yaml:"name" json:"name" validate:"required,identifier"`
	Type        string `yaml:"type" json:"type" validate:"omitempty,oneof=basic collection"`
	EntityType  string `yaml:"entity_type" json:"entity_type" validate:"required,identifier"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// IncludeFiltered applies to collection pipelines; nil means true.
	IncludeFiltered *bool          `yaml:"include_filtered,omitempty" json:"include_filtered,omitempty"`
	Processors      []ProcessorDef `yaml:"processors" json:"processors" validate:"dive"`
	ErrorHandlers   []HandlerDef   `yaml:"error_handlers,omitempty" json:"error_handlers,omitempty" validate:"dive"`

	// File is the path the definition was loaded from, if any.
	File string `yaml:"-" json:"file,omitempty"`
}

// Kind returns the pipeline kind, defaulting to basic.
func (d PipelineDef) Kind() string {
	if d.Type == "" {
		return KindBasic
	}
	return d.Type
}

// Filtered reports the effective include_filtered setting.
func (d PipelineDef) Filtered() bool {
	return d.IncludeFiltered == nil || *d.IncludeFiltered
}

// ProcessorDef declares a child: either a catalog processor type or a
// reference to another pipeline by name.
type ProcessorDef struct {
	Name      string   `yaml:"name,omitempty" json:"name,omitempty" validate:"required_without=Reference,omitempty,identifier"`
	Type      string   `yaml:"type,omitempty" json:"type,omitempty" validate:"required_without=Reference,excluded_with=Reference,omitempty,identifier"`
	Reference string   `yaml:"reference,omitempty" json:"reference,omitempty" validate:"omitempty,identifier"`
	Condition string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	Settings  Settings `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Label names the child in messages and graphs.
func (d ProcessorDef) Label() string {
	if d.Reference != "" && d.Name == "" {
		return d.Reference
	}
	return d.Name
}

// HandlerDef declares an exception handler.
type HandlerDef struct {
	Name      string   `yaml:"name,omitempty" json:"name,omitempty" validate:"omitempty,identifier"`
	Type      string   `yaml:"type" json:"type" validate:"required,identifier"`
	Condition string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	Settings  Settings `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Label names the handler, defaulting to its type.
func (d HandlerDef) Label() string {
	if d.Name == "" {
		return d.Type
	}
	return d.Name
}

// Settings holds the free-form settings block of a processor or handler.
type Settings map[string]any

// Decode copies the settings into out, a pointer to a struct with yaml tags.
func (s Settings) Decode(out any) error {
	if len(s) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(map[string]any(s))
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

// String returns the setting as a string, or def when absent.
func (s Settings) String(key, def string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Bool returns the setting as a bool, or def when absent or not a bool.
func (s Settings) Bool(key string, def bool) bool {
	if b, ok := s[key].(bool); ok {
		return b
	}
	return def
}

// Time parses the setting as an RFC 3339 timestamp, a date, or a legacy
// MM-DD-YYYY date. yaml decodes unquoted timestamps itself; both forms
// are accepted.
func (s Settings) Time(key string) (time.Time, bool, error) {
	switch v := s[key].(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v, true, nil
	case string:
		for _, layout := range []string{time.RFC3339, time.DateOnly, "01-02-2006"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("setting %q: %q is not a date", key, v)
	default:
		return time.Time{}, false, fmt.Errorf("setting %q: unexpected %T", key, v)
	}
}
