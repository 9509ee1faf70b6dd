// Package table provides hosts whose shape is declared in data.
//
// A Decl names a kind's array columns, its nested groups (columns holding
// another kind's table, index-compatible with the parent) and its metadata
// keys. A Registry turns decls into Kinds, each with its own fanout.Schema,
// and every *Table built from a Kind supports the fan-out operations through
// Fanout. Tables also implement fanout.ArrayLike, so a group column is fanned
// out recursively like any other array.
package table
