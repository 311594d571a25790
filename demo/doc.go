// Package demo is a small entity set for trying pipelines out: an Entity
// with a lifecycle state, processors that filter, name and age-check it,
// and an exception handler that logs and downgrades errors.
//
// RegisterCatalog makes all of them available to definition files under
// the demo.* type names; pipectl registers it by default.
package demo
