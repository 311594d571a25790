// Package validation checks pipeline definitions and request bodies.
//
// Struct tag validation uses go-playground/validator with field names taken
// from the yaml tag (falling back to json), so errors point at the keys a
// user actually wrote. The custom "identifier" tag accepts pipeline and
// catalog type names.
//
//	type ProcessorDef struct {
//	    Name string `yaml:"name" validate:"required,identifier"`
//	}
//	err := validation.Validate(def)
//
// Programmatic validation collects field errors across checks that struct
// tags cannot express:
//
//	v := validation.New()
//	v.Required("name", name).Unique("pipelines", names)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
