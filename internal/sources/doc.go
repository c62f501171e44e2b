// Package sources provides read-only access to the gateway configuration a
// release is built from.
//
// The configuration itself is owned by the CRUD layer, which is outside of this
// server. The package defines the Source interface describing what a release
// needs from that layer, plus two implementations:
//   - StaticSource: serves an in-memory Snapshot, mostly useful for tests
//   - FileSource: loads a Snapshot from a YAML or JSON document on disk
package sources
