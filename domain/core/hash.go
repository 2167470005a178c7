package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	// SpecKey fingerprints a model specification (canonical formula).
	SpecKey Hash
	// DataFingerprint fingerprints the content of a feature table.
	DataFingerprint Hash
)

// Constructors
func NewSpecKey(data []byte) SpecKey                 { return SpecKey(NewHash(data)) }
func NewDataFingerprint(data []byte) DataFingerprint { return DataFingerprint(NewHash(data)) }

// String conversions
func (h SpecKey) String() string         { return Hash(h).String() }
func (h DataFingerprint) String() string { return Hash(h).String() }

// CacheKey combines a spec key and a data fingerprint into one stable
// cache-entry key. A fit is only reusable when both match.
func CacheKey(spec SpecKey, data DataFingerprint) Hash {
	return NewHash([]byte(spec.String() + ":" + data.String()))
}

// ComputeColumnsFingerprint hashes named float columns in key order so the
// fingerprint is independent of map iteration order.
func ComputeColumnsFingerprint(columns map[string][]float64) DataFingerprint {
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		for _, v := range columns[key] {
			data.WriteString(fmt.Sprintf("%x;", v))
		}
	}
	return NewDataFingerprint([]byte(data.String()))
}
