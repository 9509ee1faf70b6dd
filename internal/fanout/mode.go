package fanout

import "fmt"

// Mode selects where the results of a fan-out pass go.
type Mode int

const (
	// NotInplace hands results to the clone factory.
	NotInplace Mode = iota

	// InplaceViaAccessor writes results through the attribute setters.
	InplaceViaAccessor

	// InplaceViaStore copies results into the existing array storage.
	InplaceViaStore
)

func (m Mode) valid() bool {
	return m >= NotInplace && m <= InplaceViaStore
}

func (m Mode) String() string {
	switch m {
	case NotInplace:
		return "not_inplace"
	case InplaceViaAccessor:
		return "inplace_via_accessor"
	case InplaceViaStore:
		return "inplace_via_store"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Host is implemented by any type that embeds State.
type Host interface {
	FanoutState() *State
}

// State is the per-instance bookkeeping of a host: the one-shot write mode,
// the tagged-attribute cache and the setter cache. Embed it in host structs;
// the zero value is ready to use.
type State struct {
	mode    Mode
	tagged  []string
	cached  bool
	setters map[string]any
}

// FanoutState returns s, making embedders satisfy Host.
func (s *State) FanoutState() *State {
	return s
}

// reset returns s to its zero value. Clones start from here so they do not
// share caches or a pending mode with their source.
func (s *State) reset() {
	*s = State{}
}
