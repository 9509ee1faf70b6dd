package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fanout/internal/canon"
	"github.com/roach88/fanout/internal/compiler"
	"github.com/roach88/fanout/internal/table"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// HostSummary is the JSON form of one compiled host kind.
type HostSummary struct {
	Name    string            `json:"name"`
	Arrays  []string          `json:"arrays"`
	Groups  map[string]string `json:"groups,omitempty"`
	SortKey string            `json:"sort_key,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// CompilationResult holds the compiled host kinds.
type CompilationResult struct {
	Hosts []HostSummary `json:"hosts"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE host declarations to canonical JSON",
		Long: `Compile CUE host declarations and write them as canonical JSON.

The compiler parses CUE files, validates every host kind, and prints a
summary. With --output the declarations are also written as canonical
JSON, suitable for hashing and diffing.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, err := LoadSpecs(specsDir)
	if err != nil {
		loadErr := err.(*LoadError)
		return outputCompileError(formatter, loadErr.Code, loadErr.Message)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	for _, d := range loadResult.Decls {
		formatter.VerboseLog("Compiling host: %s", d.Name)
	}

	if errs := compiler.Validate(loadResult.Decls); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	result := &CompilationResult{Hosts: make([]HostSummary, len(loadResult.Decls))}
	for i, d := range loadResult.Decls {
		result.Hosts[i] = summarize(d)
	}

	if opts.Output != "" {
		if err := writeDeclsToFile(loadResult.Decls, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func summarize(d table.Decl) HostSummary {
	s := HostSummary{
		Name:    d.Name,
		Arrays:  slices.Clone(d.Arrays),
		SortKey: d.SortKey,
		Meta:    d.Meta,
	}
	if s.Arrays == nil {
		s.Arrays = []string{}
	}
	if len(d.Groups) > 0 {
		s.Groups = make(map[string]string, len(d.Groups))
		for _, g := range d.Groups {
			s.Groups[g.Name] = g.Kind
		}
	}
	return s
}

// declMap is the canonical JSON form of a declaration. Groups are kept as a
// list so their fan-out order survives key sorting.
func declMap(d table.Decl) map[string]any {
	arrays := d.Arrays
	if arrays == nil {
		arrays = []string{}
	}
	groups := make([]any, len(d.Groups))
	for i, g := range d.Groups {
		groups[i] = map[string]any{"name": g.Name, "kind": g.Kind}
	}
	meta := make(map[string]any, len(d.Meta))
	for k, v := range d.Meta {
		meta[k] = v
	}
	m := map[string]any{
		"name":   d.Name,
		"arrays": arrays,
		"groups": groups,
		"meta":   meta,
	}
	if d.SortKey != "" {
		m["sort_key"] = d.SortKey
	}
	return m
}

func writeDeclsToFile(decls []table.Decl, path string) error {
	hosts := make([]any, len(decls))
	for i, d := range decls {
		hosts[i] = declMap(d)
	}
	data, err := canon.Marshal(map[string]any{"hosts": hosts})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d host kind(s)\n\n", len(result.Hosts))
	for _, h := range result.Hosts {
		line := fmt.Sprintf("  %s: %d array(s), %d group(s)", h.Name, len(h.Arrays), len(h.Groups))
		if h.SortKey != "" {
			line += ", sorted by " + h.SortKey
		}
		fmt.Fprintln(w, line)
		if formatter.Verbose && len(h.Arrays) > 0 {
			fmt.Fprintf(w, "    arrays: %s\n", strings.Join(h.Arrays, ", "))
		}
	}
	fmt.Fprintln(w)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical declarations to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
