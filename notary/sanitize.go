package notary

import (
	"strings"
	"unicode"
)

const (
	maxUnitNameLen  = 8
	maxAssetNameLen = 32
)

// SanitizeUnitName uppercases s, replaces everything outside [A-Z0-9_] with
// an underscore and truncates to the ledger's 8-character unit-name limit.
func SanitizeUnitName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxUnitNameLen {
			break
		}
	}
	return b.String()
}

// SanitizeAssetName keeps printable characters and truncates to the ledger's
// 32-character asset-name limit.
func SanitizeAssetName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= maxAssetNameLen {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// fileStem strips the final extension from a file name.
func fileStem(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
