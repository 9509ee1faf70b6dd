package compiler

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/roach88/fanout/internal/table"
)

// Validation error codes (E100-E199)
const (
	ErrHostNameEmpty    = "E101" // host name is required
	ErrInvalidAttrName  = "E102" // attribute name is not an identifier
	ErrDuplicateName    = "E103" // attribute or host declared twice
	ErrSortKeyNotArray  = "E104" // sort key must name an array
	ErrUnknownGroupKind = "E105" // group names an undeclared host
	ErrNestingCycle     = "E106" // host contains itself through its groups
	ErrHostNoAttributes = "E107" // host declares nothing to fan out
	ErrMetaShadowsAttr  = "E108" // metadata key reuses an array or group name
)

// ValidationError represents a host declaration validation error.
type ValidationError struct {
	Host    string `json:"host,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Host, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var attrNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a set of host declarations and returns every problem found
// (it does not fail fast). Problems are ordered by host declaration order.
func Validate(decls []table.Decl) []ValidationError {
	var errs []ValidationError
	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		if d.Name == "" {
			errs = append(errs, ValidationError{Field: "name", Message: "host name is required", Code: ErrHostNameEmpty})
			continue
		}
		if declared[d.Name] {
			errs = append(errs, ValidationError{Host: d.Name, Field: "name", Message: "host declared twice", Code: ErrDuplicateName})
			continue
		}
		declared[d.Name] = true
	}

	for _, d := range decls {
		if d.Name == "" {
			continue
		}
		errs = append(errs, validateDecl(d, declared)...)
	}

	for _, c := range AnalyzeNesting(decls) {
		errs = append(errs, ValidationError{
			Host:    c.Path[0],
			Field:   "groups",
			Message: c.Message,
			Code:    ErrNestingCycle,
		})
	}
	return errs
}

func validateDecl(d table.Decl, declared map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Host: d.Name, Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if len(d.Arrays) == 0 && len(d.Groups) == 0 {
		add("arrays", ErrHostNoAttributes, "host declares no arrays or groups")
	}

	seen := make(map[string]bool)
	check := func(field, name string) {
		if !attrNamePattern.MatchString(name) {
			add(field, ErrInvalidAttrName, "%q is not a valid attribute name", name)
			return
		}
		if seen[name] {
			add(field, ErrDuplicateName, "%q declared twice", name)
			return
		}
		seen[name] = true
	}
	for _, name := range d.Arrays {
		check("arrays", name)
	}
	for _, g := range d.Groups {
		check("groups", g.Name)
		if !declared[g.Kind] {
			add("groups."+g.Name, ErrUnknownGroupKind, "unknown host %q", g.Kind)
		}
	}

	keys := make([]string, 0, len(d.Meta))
	for k := range d.Meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if seen[k] {
			add("meta."+k, ErrMetaShadowsAttr, "metadata key %q reuses an attribute name", k)
			continue
		}
		check("meta", k)
	}

	if d.SortKey != "" && !slices.Contains(d.Arrays, d.SortKey) {
		add("sort_key", ErrSortKeyNotArray, "sort key %q is not a declared array", d.SortKey)
	}
	return errs
}
