package hashutil

import (
	"strings"
	"testing"
)

func TestFingerprint_StableAndKnown(t *testing.T) {
	// sha256("hello world")
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	data := []byte("hello world")
	if got := Fingerprint(data); got != want {
		t.Fatalf("Fingerprint: got %s want %s", got, want)
	}
	if Fingerprint(data) != Fingerprint(data) {
		t.Fatalf("Fingerprint not stable across calls")
	}
}

func TestFingerprintB64(t *testing.T) {
	hexDigest := Fingerprint([]byte("x"))
	b64, err := FingerprintB64(hexDigest)
	if err != nil {
		t.Fatalf("FingerprintB64: %v", err)
	}
	if b64 == "" || b64 == hexDigest {
		t.Fatalf("unexpected encoding: %q", b64)
	}
	if _, err := FingerprintB64("zz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
	if _, err := FingerprintB64("abcd"); err == nil {
		t.Fatalf("expected error for short digest")
	}
}

func TestCIDv1RawSHA256(t *testing.T) {
	data := []byte("content")
	id, err := CIDv1RawSHA256(data)
	if err != nil {
		t.Fatalf("CIDv1RawSHA256: %v", err)
	}
	if !id.Defined() {
		t.Fatalf("undefined CID")
	}
	s := CIDv1RawSHA256String(data)
	if s != id.String() {
		t.Fatalf("string form mismatch: %s vs %s", s, id)
	}
	// CIDv1 raw/sha2-256 in base32 always starts with this prefix.
	if !strings.HasPrefix(s, "bafkrei") {
		t.Fatalf("unexpected CID prefix: %s", s)
	}
	if CIDv1RawSHA256String([]byte("other")) == s {
		t.Fatalf("distinct content produced identical CID")
	}
}
