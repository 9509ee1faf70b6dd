package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/fanout/internal/table"
)

// LoadFiles compiles each CUE file in a shared context and unifies the
// results into one value.
func LoadFiles(paths ...string) (cue.Value, error) {
	ctx := cuecontext.New()
	var v cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read spec: %w", err)
		}
		fv := ctx.CompileBytes(data, cue.Filename(path))
		if err := fv.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		if i == 0 {
			v = fv
			continue
		}
		v = v.Unify(fv)
	}
	if len(paths) == 0 {
		v = ctx.CompileString("{}")
	}
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// LoadDir loads every .cue file in dir as a single CUE instance and returns
// the built value together with the number of files found.
func LoadDir(dir string) (cue.Value, int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return cue.Value{}, 0, fmt.Errorf("specs directory: %w", err)
	}
	if !info.IsDir() {
		return cue.Value{}, 0, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, 0, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return cue.Value{}, 0, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, 0, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, 0, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, 0, formatCUEError(err)
	}
	return v, len(files), nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// CompileHosts compiles every declaration under the top-level host field,
// in declaration order. A value without a host field yields no decls.
func CompileHosts(v cue.Value) ([]table.Decl, error) {
	hostsVal := v.LookupPath(cue.ParsePath("host"))
	if !hostsVal.Exists() {
		return nil, nil
	}
	iter, err := hostsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []table.Decl
	for iter.Next() {
		decl, err := CompileHost(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("host.%s: %w", iter.Label(), err)
		}
		decls = append(decls, *decl)
	}
	return decls, nil
}

// ValidationErrors is returned by BuildRegistry when declarations fail
// validation.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// BuildRegistry validates decls and builds the kind registry from them.
func BuildRegistry(decls []table.Decl) (*table.Registry, error) {
	if errs := Validate(decls); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return table.NewRegistry(decls)
}

// LoadRegistry loads the given spec files and builds a registry from the
// hosts they declare.
func LoadRegistry(paths ...string) (*table.Registry, error) {
	v, err := LoadFiles(paths...)
	if err != nil {
		return nil, err
	}
	decls, err := CompileHosts(v)
	if err != nil {
		return nil, err
	}
	return BuildRegistry(decls)
}
