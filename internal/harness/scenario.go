package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fanout/internal/ndarray"
)

// Scenario defines a fan-out scenario: a host built from a CUE-declared kind
// and a sequence of array operations with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE files declaring the host kinds.
	Specs []string `yaml:"specs"`

	// Host is the initial host, bound as "host".
	Host HostData `yaml:"host"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the whole run once all steps are done.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is an optional fixed run id for deterministic step ids.
	// If empty, each run gets a fresh UUIDv7.
	RunID string `yaml:"run_id,omitempty"`
}

// HostData describes a host instance: its kind, column data, nested groups
// and metadata.
type HostData struct {
	// Kind names a declared host kind. Optional for groups, where it defaults
	// to the kind the parent declares for the group.
	Kind   string              `yaml:"kind,omitempty"`
	Arrays map[string]Column   `yaml:"arrays,omitempty"`
	Groups map[string]HostData `yaml:"groups,omitempty"`
	Meta   map[string]string   `yaml:"meta,omitempty"`
}

// Column is array data written either as a flat list or as a list of rows.
type Column struct {
	Values []float64
	Rows   [][]float64
}

// UnmarshalYAML accepts [1, 2, 3] or [[1, 2], [3, 4]].
func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: array data must be a list", node.Line)
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		return node.Decode(&c.Rows)
	}
	if err := node.Decode(&c.Values); err != nil {
		return err
	}
	if c.Values == nil {
		c.Values = []float64{}
	}
	return nil
}

// Array builds an owning array from the column data.
func (c Column) Array() (*ndarray.Array, error) {
	if c.Rows != nil {
		return ndarray.FromRows(c.Rows)
	}
	return ndarray.FromSlice(c.Values), nil
}

// Flat returns the values in row-major order.
func (c Column) Flat() []float64 {
	if c.Rows == nil {
		return c.Values
	}
	var out []float64
	for _, row := range c.Rows {
		out = append(out, row...)
	}
	return out
}

// Step is one operation of a scenario.
type Step struct {
	// Op is the operation to run; see the Op* constants.
	Op string `yaml:"op"`

	// On names the binding the op runs on. Defaults to "host".
	On string `yaml:"on,omitempty"`

	// As binds the returned host under a new name.
	As string `yaml:"as,omitempty"`

	// Inplace selects the write mode for this step: "", "accessor" or "store".
	Inplace string `yaml:"inplace,omitempty"`

	Mask    []bool            `yaml:"mask,omitempty"`
	Indices []int             `yaml:"indices,omitempty"`
	Slice   *SliceArg         `yaml:"slice,omitempty"`
	Index   []int             `yaml:"index,omitempty"`
	Key     string            `yaml:"key,omitempty"`
	Column  string            `yaml:"column,omitempty"`
	Min     *float64          `yaml:"min,omitempty"`
	Max     *float64          `yaml:"max,omitempty"`
	Values  map[string]Column `yaml:"values,omitempty"`
	Value   *float64          `yaml:"value,omitempty"`

	// Meta holds metadata values for set_attributes, next to Values.
	Meta map[string]string `yaml:"meta,omitempty"`

	// Expect is checked after the step runs.
	Expect *Expect `yaml:"expect,omitempty"`
}

// SliceArg is a row slice; unset bounds are open.
type SliceArg struct {
	Start *int `yaml:"start,omitempty"`
	Stop  *int `yaml:"stop,omitempty"`
	Step  *int `yaml:"step,omitempty"`
}

// Slice converts the argument to an ndarray.Slice.
func (s SliceArg) Slice() ndarray.Slice {
	out := ndarray.All()
	if s.Start != nil {
		out.Start = *s.Start
	}
	if s.Stop != nil {
		out.Stop = *s.Stop
	}
	if s.Step != nil {
		out.Step = *s.Step
	}
	return out
}

// Expect lists what must hold after a step. Only the fields that are set are
// checked.
type Expect struct {
	// Error is the expected error code. When set, the step must fail.
	Error string `yaml:"error,omitempty"`

	// SameAs and DistinctFrom compare the returned host with a binding by
	// identity.
	SameAs       string `yaml:"same_as,omitempty"`
	DistinctFrom string `yaml:"distinct_from,omitempty"`

	// Arrays maps column paths ("p1", "members.p1") to expected values.
	Arrays map[string]Column `yaml:"arrays,omitempty"`

	// Record is the expected result of at. Nested records are maps.
	Record map[string]any `yaml:"record,omitempty"`

	Meta    map[string]string `yaml:"meta,omitempty"`
	Version *int              `yaml:"version,omitempty"`
	Len     *int              `yaml:"len,omitempty"`

	// InplaceAfter is whether the binding the step ran on still has an
	// in-place mode pending.
	InplaceAfter *bool `yaml:"inplace_after,omitempty"`

	// SharesBuffer names a binding every column of the result must share
	// storage with; DetachedFrom one no column may share storage with.
	SharesBuffer string `yaml:"shares_buffer,omitempty"`
	DetachedFrom string `yaml:"detached_from,omitempty"`

	// OwnsData is whether every column of the result owns its storage.
	OwnsData *bool `yaml:"owns_data,omitempty"`
}

// Assertion is checked against the whole run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op, On and Outcome select steps (trace_contains, trace_count).
	Op      string `yaml:"op,omitempty"`
	On      string `yaml:"on,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of matching steps (trace_count).
	Count int `yaml:"count,omitempty"`

	// Binding and Arrays describe a final binding state (final_state).
	Binding string            `yaml:"binding,omitempty"`
	Arrays  map[string]Column `yaml:"arrays,omitempty"`
}

// Ops understood by the harness.
const (
	OpWhere         = "where"
	OpIndexBy       = "index_by"
	OpSliceBy       = "slice_by"
	OpAt            = "at"
	OpCopy          = "copy"
	OpSever         = "sever"
	OpQsort         = "qsort"
	OpQsortOn       = "qsort_on"
	OpClipOn        = "clip_on"
	OpSetAttributes = "set_attributes"
	OpSetItem       = "set_item"
	OpInspect       = "inspect"
)

var knownOps = []string{
	OpWhere, OpIndexBy, OpSliceBy, OpAt, OpCopy, OpSever, OpQsort,
	OpQsortOn, OpClipOn, OpSetAttributes, OpSetItem, OpInspect,
}

// Inplace values.
const (
	InplaceAccessor = "accessor"
	InplaceStore    = "store"
)

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// DefaultBinding is the name the initial host is bound to.
const DefaultBinding = "host"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Spec paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML, resolving relative spec paths against
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}
	if s.Host.Kind == "" {
		return fmt.Errorf("host.kind is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		step := step
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		a := a
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	if st.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", index)
	}
	if !slices.Contains(knownOps, st.Op) {
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	switch st.Inplace {
	case "", InplaceAccessor, InplaceStore:
	default:
		return fmt.Errorf("steps[%d]: inplace must be %q or %q, got %q", index, InplaceAccessor, InplaceStore, st.Inplace)
	}

	switch st.Op {
	case OpWhere:
		if st.Mask == nil {
			return fmt.Errorf("steps[%d]: mask is required for where", index)
		}
	case OpIndexBy:
		if st.Indices == nil {
			return fmt.Errorf("steps[%d]: indices is required for index_by", index)
		}
	case OpSliceBy:
		if st.Slice == nil {
			return fmt.Errorf("steps[%d]: slice is required for slice_by", index)
		}
	case OpAt:
		if len(st.Index) == 0 {
			return fmt.Errorf("steps[%d]: index is required for at", index)
		}
	case OpQsortOn:
		if st.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for qsort_on", index)
		}
	case OpClipOn:
		if st.Column == "" {
			return fmt.Errorf("steps[%d]: column is required for clip_on", index)
		}
	case OpSetAttributes:
		if len(st.Values) == 0 && len(st.Meta) == 0 {
			return fmt.Errorf("steps[%d]: values or meta is required for set_attributes", index)
		}
		for name := range st.Meta {
			if _, dup := st.Values[name]; dup {
				return fmt.Errorf("steps[%d]: %q is set in both values and meta", index, name)
			}
		}
	case OpSetItem:
		if st.Column == "" || len(st.Index) == 0 || st.Value == nil {
			return fmt.Errorf("steps[%d]: column, index and value are required for set_item", index)
		}
	}

	if st.Expect != nil && st.Expect.Record != nil && st.Op != OpAt {
		return fmt.Errorf("steps[%d].expect: record only applies to at", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Binding == "" {
			return fmt.Errorf("assertions[%d]: binding is required for final_state", index)
		}
		if len(a.Arrays) == 0 {
			return fmt.Errorf("assertions[%d]: arrays is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
