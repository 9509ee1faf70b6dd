package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fanout/internal/table"
)

// CompileHost parses a CUE host declaration into a table.Decl.
// Uses the CUE Go API directly.
//
// The CUE value should be the host struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`host: Particles: { arrays: ["p1", "p2"] }`)
//	decl, err := CompileHost(v.LookupPath(cue.ParsePath("host.Particles")))
//
// Recognized fields:
//
//	arrays:   [...string]         numeric columns, in fan-out order
//	groups:   {[name]: kind}      nested hosts, in declaration order
//	sort_key: string              column Qsort orders by
//	meta:     {[key]: string}     metadata keys with their defaults
func CompileHost(v cue.Value) (*table.Decl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decl := &table.Decl{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		decl.Name = labels[len(labels)-1].String()
	}

	if err := checkFields(v); err != nil {
		return nil, err
	}

	var err error
	decl.Arrays, err = parseArrays(v)
	if err != nil {
		return nil, err
	}
	decl.Groups, err = parseGroups(v)
	if err != nil {
		return nil, err
	}
	decl.Meta, err = parseMeta(v)
	if err != nil {
		return nil, err
	}

	if sk := v.LookupPath(cue.ParsePath("sort_key")); sk.Exists() {
		s, err := sk.String()
		if err != nil {
			return nil, &CompileError{Field: "sort_key", Message: "sort_key must be a string", Pos: sk.Pos()}
		}
		decl.SortKey = s
	}

	return decl, nil
}

var hostFields = map[string]bool{
	"arrays":   true,
	"groups":   true,
	"sort_key": true,
	"meta":     true,
}

// checkFields rejects unknown fields so typos do not silently drop
// attributes.
func checkFields(v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if !hostFields[iter.Label()] {
			return &CompileError{
				Field:   iter.Label(),
				Message: "unknown host field",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

func parseArrays(v cue.Value) ([]string, error) {
	arraysVal := v.LookupPath(cue.ParsePath("arrays"))
	if !arraysVal.Exists() {
		return nil, nil
	}
	iter, err := arraysVal.List()
	if err != nil {
		return nil, &CompileError{Field: "arrays", Message: "arrays must be a list of names", Pos: arraysVal.Pos()}
	}

	var arrays []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "arrays",
				Message: fmt.Sprintf("arrays[%s] must be a string", iter.Selector()),
				Pos:     iter.Value().Pos(),
			}
		}
		arrays = append(arrays, name)
	}
	return arrays, nil
}

func parseGroups(v cue.Value) ([]table.GroupDecl, error) {
	groupsVal := v.LookupPath(cue.ParsePath("groups"))
	if !groupsVal.Exists() {
		return nil, nil
	}
	iter, err := groupsVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: "groups", Message: "groups must map names to kinds", Pos: groupsVal.Pos()}
	}

	var groups []table.GroupDecl
	for iter.Next() {
		kind, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "groups." + iter.Label(),
				Message: "group kind must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		groups = append(groups, table.GroupDecl{Name: iter.Label(), Kind: kind})
	}
	return groups, nil
}

func parseMeta(v cue.Value) (map[string]string, error) {
	metaVal := v.LookupPath(cue.ParsePath("meta"))
	if !metaVal.Exists() {
		return nil, nil
	}
	iter, err := metaVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: "meta", Message: "meta must map keys to strings", Pos: metaVal.Pos()}
	}

	meta := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "meta." + iter.Label(),
				Message: "metadata default must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		meta[iter.Label()] = s
	}
	return meta, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
