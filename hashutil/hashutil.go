// Package hashutil provides the content-addressing primitives shared by the
// document store and the commitment builder: SHA-256 fingerprints and CIDv1
// identifiers (raw multicodec, sha2-256 multihash).
package hashutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DigestLength is the length in bytes of a raw fingerprint digest.
const DigestLength = sha256.Size

// Fingerprint returns the lowercase hex SHA-256 digest of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintB64 converts a hex fingerprint into the base64 encoding of the
// raw digest bytes.
func FingerprintB64(hexDigest string) (string, error) {
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", fmt.Errorf("hashutil: invalid hex digest: %w", err)
	}
	if len(raw) != DigestLength {
		return "", fmt.Errorf("hashutil: digest must be %d bytes, got %d", DigestLength, len(raw))
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// CIDv1RawSHA256 returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// CIDv1RawSHA256String returns the string form of CIDv1RawSHA256.
func CIDv1RawSHA256String(data []byte) string {
	id, err := CIDv1RawSHA256(data)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1
		// length, this should be unreachable.
		return ""
	}
	return id.String()
}
