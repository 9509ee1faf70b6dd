// Package fanout lets a host type that holds several array attributes behave,
// for a fixed set of array operations, like a single array.
//
// A host registers its attributes once in a Schema. Attributes tagged with
// TagArray take part in fan-out: an operation such as Where, IndexBy or
// SliceBy is applied to every tagged attribute in lock-step, and the results
// are either assembled into a new host by the schema's clone factory or
// written back into the existing host.
//
// # Write modes
//
// Every host carries a State (embed it) holding a one-shot write mode:
//
//   - NotInplace (default): results go to the clone factory; the host is untouched.
//   - InplaceViaAccessor: results are written with the attribute setters, so
//     any side effects the setters carry run.
//   - InplaceViaStore: results are severed from their source storage, then
//     copied into the host's existing arrays with AssignFrom, keeping the
//     storage identity other references hold.
//
// The mode applies to the next fan-out pass only:
//
//	p := schema.Bind(host)
//	same, err := p.Inplace().Where(mask) // same == host
//	other, err := p.Where(mask)          // new host, mode was consumed
//
// A pass whose transform fails commits nothing and leaves the mode set, so the
// caller can retry. ApplyMode threads an explicit mode instead of the stored one.
//
// # Nesting
//
// Attributes are registered through ArrayLike[T]. *ndarray.Array implements it,
// and so can any host by delegating to its Proxy, which lets hosts hold other
// hosts and fan out through them recursively.
//
// # Concurrency
//
// A host instance is single-writer. Callers sharing one across goroutines
// must serialize access themselves. Schemas are safe for concurrent use.
package fanout
