// Package pointstore adapts vector collections to the narrow Store interface
// used by the document layer.
//
// Three backends are provided:
//
//   - ProbingStore wraps a collection handle whose method set is only known at
//     run time. Capabilities (GetAllPoints, ScrollPoints, DeletePoints, ...) are
//     discovered with type assertions and tried in a fixed priority order.
//   - ChromemStore uses an embedded chromem-go database.
//   - QdrantStore talks to a Qdrant server over gRPC.
//
// MemoryCollection is an in-process handle served through ProbingStore. It is
// the "memory" provider and the fixture most tests build on.
//
// # Enumeration policy
//
// Collections that expose enumeration methods which all fail are handled per
// EnumerationPolicy: PolicyLenient returns an empty list, PolicyStrict returns
// the error. A collection with no enumeration method at all always yields
// ErrNoEnumerator.
package pointstore
