// Package model defines stable boundary types for the notarization service.
//
// MetadataRecord and ValidationEntry define the on-disk sidecar format and
// are the only types intended for direct JSON serialization by consumers.
package model
