// Package docstore implements the hierarchical document store and its
// metadata layer.
//
// Every document lives at <root>/<namespace>/<folder>/<name> next to two
// sidecar files: <name>-METADATA.JSON (the MetadataRecord) and
// <name>-COMMITMENT.JSON (the canonical commitment artifact). The store keeps
// the sidecars consistent with the real filesystem layout across rename,
// move and delete, and confines every path argument strictly inside its
// namespace root.
//
// Documents are immutable once written: there is no in-place edit path, only
// delete-then-recreate. Mutations on the same namespace are serialized by an
// in-process per-namespace mutex; cross-process exclusion is the caller's
// concern.
package docstore
