// Package ndarray provides the numeric array type that fanout hosts hold.
//
// An Array is a row-major float64 array of one or more dimensions. Arrays
// either own their buffer or are views onto another array's buffer:
//
//   - IndexBy, Where, SliceBy and partial At produce views. Writing through a
//     view is visible through the parent and vice versa.
//   - Copy produces an independent owner.
//   - Sever turns a view into an owner in place, detaching it from its parent.
//   - AssignFrom resizes an owner's buffer to another array's shape and copies
//     its contents, keeping the buffer identity that other views refer to.
//
// Row-selecting operations act along axis 0, so a 2-D array behaves as a
// column of rows.
package ndarray
