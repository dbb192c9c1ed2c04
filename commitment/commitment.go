// Package commitment builds the canonical payload that anchors a document
// fingerprint on a ledger, plus the public URLs pointing back at it.
package commitment

import (
	"encoding/json"
	"net/url"
	"strings"

	"sigillo.dev/sigillo/hashutil"
	"sigillo.dev/sigillo/model"
)

// Payload is the canonical commitment content. Field order is fixed and the
// serialization is compact, so re-serializing the same inputs is
// byte-identical.
type Payload struct {
	Fingerprint string `json:"fingerprint"`
	Namespace   string `json:"namespace"`
	Path        string `json:"relative_path"`
	File        string `json:"file_name"`
}

// Canonical returns the exact bytes that get hashed and persisted.
func (p Payload) Canonical() ([]byte, error) {
	return json.Marshal(p)
}

// Commitment is a built payload together with its digests and derived URLs.
type Commitment struct {
	Payload   Payload
	Canonical []byte
	HashHex   string
	HashB64   string
	CID       string
	Len       int

	CommitmentURL string
	ContentURL    string
}

// DigestLength is the raw digest size in bytes.
const DigestLength = hashutil.DigestLength

// Builder derives commitments and their public URLs. PublicBaseURL is the
// externally reachable address of this service, without a trailing slash.
type Builder struct {
	PublicBaseURL string
}

// Build computes the commitment for a record. Pure: no side effects.
func (b *Builder) Build(rec *model.MetadataRecord) (*Commitment, error) {
	if rec.Fingerprint == "" {
		return nil, model.Errorf(model.ErrInvalidInput, "record has no fingerprint")
	}
	p := Payload{
		Fingerprint: rec.Fingerprint,
		Namespace:   rec.Namespace,
		Path:        rec.RelPath(),
		File:        rec.FileName,
	}
	raw, err := p.Canonical()
	if err != nil {
		return nil, err
	}
	sum := hashutil.Fingerprint(raw)
	sumB64, err := hashutil.FingerprintB64(sum)
	if err != nil {
		return nil, err
	}
	return &Commitment{
		Payload:       p,
		Canonical:     raw,
		HashHex:       sum,
		HashB64:       sumB64,
		CID:           hashutil.CIDv1RawSHA256String(raw),
		Len:           len(raw),
		CommitmentURL: b.urlFor(rec, "commitment"),
		ContentURL:    b.urlFor(rec, "download"),
	}, nil
}

// urlFor joins the public base with the storage route for rec, escaping each
// path segment individually so slashes keep their routing meaning.
func (b *Builder) urlFor(rec *model.MetadataRecord, kind string) string {
	base := strings.TrimRight(b.PublicBaseURL, "/")
	parts := []string{base, "storage", url.PathEscape(rec.Namespace), kind}
	for _, seg := range strings.Split(rec.RelPath(), "/") {
		if seg == "" {
			continue
		}
		parts = append(parts, url.PathEscape(seg))
	}
	return strings.Join(parts, "/")
}
