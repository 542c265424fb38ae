// Package openapi scaffolds <field> host markup from the request body of an
// OpenAPI operation. Schema constraints become rule attributes (required,
// maxlength-rule, minlength-rule, pattern-rule) with matching validator
// messages, and the template is picked from the property's type.
//
// kin-openapi stays behind this package: callers deal in Sources, raw
// documents and the Field description.
package openapi
