// Package normalize applies per-facet label transforms to raw tag labels
// before uniqueness checks, slug derivation, and persistence.
package normalize

import (
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"

	"github.com/minerva-intel/minerva/pkg/identifier"
)

// Transform names accepted as a facet's TagNormalization setting.
const (
	TransformCamelCase  = "camelcase"
	TransformCapitalize = "capitalize"
	TransformDowncase   = "downcase"
	TransformHandleize  = "handleize"
	TransformUpcase     = "upcase"
)

// Apply runs the named transform over a raw label. An empty or unrecognized
// transform name is treated as identity; unknown names are accepted and
// ignored rather than rejected, matching how facets have historically been
// configured.
func Apply(label, transform string) string {
	switch transform {
	case TransformCamelCase:
		return strcase.ToCamel(label)
	case TransformCapitalize:
		return capitalize(label)
	case TransformDowncase:
		return strings.ToLower(label)
	case TransformHandleize:
		return identifier.Slugify(label)
	case TransformUpcase:
		return strings.ToUpper(label)
	default:
		return label
	}
}

// Known reports whether name is a recognized transform. Facet validation
// deliberately does not call this; it exists for operator tooling that wants
// to warn about misspelled configuration.
func Known(name string) bool {
	switch name {
	case "", TransformCamelCase, TransformCapitalize, TransformDowncase,
		TransformHandleize, TransformUpcase:
		return true
	}
	return false
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
