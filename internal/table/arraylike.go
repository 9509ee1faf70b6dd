package table

import (
	"github.com/roach88/fanout/internal/ndarray"
)

// The methods below make *Table a fanout.ArrayLike, which is what lets a
// table be a group of another table. Each delegates to the table's own
// proxy, so a pending mode on the table applies here too.

// Len returns the row count shared by the table's tagged attributes.
func (t *Table) Len() int {
	return t.Fanout().Len()
}

// IndexBy selects rows by position.
func (t *Table) IndexBy(indices []int) (*Table, error) {
	return t.Fanout().IndexBy(indices)
}

// Where keeps the rows whose mask entry is true.
func (t *Table) Where(mask []bool) (*Table, error) {
	return t.Fanout().Where(mask)
}

// SliceBy selects a range of rows.
func (t *Table) SliceBy(s ndarray.Slice) (*Table, error) {
	return t.Fanout().SliceBy(s)
}

// At returns the row at indices as a fanout.Record.
func (t *Table) At(indices ...int) (any, error) {
	return t.Fanout().At(indices...)
}

// Copy returns a table holding deep copies of the tagged attributes.
func (t *Table) Copy() (*Table, error) {
	return t.Fanout().Copy()
}

// Sever detaches every tagged attribute from shared storage and returns t.
func (t *Table) Sever() *Table {
	return t.Fanout().Sever()
}

// AssignFrom copies src's tagged attributes into t's existing storage.
func (t *Table) AssignFrom(src *Table) error {
	return t.Fanout().AssignFrom(src)
}

// CanAssign reports whether AssignFrom(src) would be accepted by every
// tagged attribute, nested tables included.
func (t *Table) CanAssign(src *Table) error {
	return t.Fanout().CanAssign(src)
}
