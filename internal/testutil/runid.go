package testutil

// FixedRunIDs returns the same run id for every run, so traces of a
// scenario are byte-identical across executions and can be golden-tested.
// It is stateless and safe for concurrent use.
type FixedRunIDs struct {
	id string
}

// NewFixedRunIDs returns a generator for id. An empty id becomes
// "test-run-default".
func NewFixedRunIDs(id string) *FixedRunIDs {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDs{id: id}
}

// NewRunID returns the fixed id.
func (g *FixedRunIDs) NewRunID() string {
	return g.id
}
