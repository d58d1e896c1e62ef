// Package hash computes canonical content hashes over structured records.
//
// Both marketplace parties derive identifiers for shared records (listings,
// orders) independently and must arrive at the same digest bit-for-bit. A
// Config pins down which fields participate and in what order, and carries a
// version so either side can detect an incompatible selection instead of
// silently diverging.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Config is a versioned field selection. Fields lists the record fields that
// feed the digest, in the order they are mixed in. The version string itself
// participates in the digest, so bumping it changes every hash.
type Config struct {
	Version string
	Fields  []string
}

// OrderV1 is the field selection for order records. It must stay stable
// across releases; a change here is a protocol break for every peer.
func OrderV1() Config {
	return Config{
		Version: "order/v1",
		Fields:  []string{"address", "buyer", "seller", "orderItems", "status", "generatedAt"},
	}
}

// Func is a canonical hash function. The default is Canonical; tests and
// alternative digest schemes can swap it out.
type Func func(values map[string]any, cfg Config) (string, error)

// Canonical hashes the configured fields of a record with SHA-256 and
// returns the hex digest.
//
// Each selected value is serialized with encoding/json, which is
// deterministic for structs (declaration order) and maps (sorted keys).
// Fields present in values but absent from cfg never influence the digest;
// a field named by cfg but missing from values is an error rather than a
// silent empty contribution.
func Canonical(values map[string]any, cfg Config) (string, error) {
	h := sha256.New()
	h.Write([]byte(cfg.Version))
	h.Write([]byte{0})

	for _, name := range cfg.Fields {
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("hash: field %q missing from record", name)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("hash: serialize field %q: %w", name, err)
		}
		h.Write([]byte(name))
		h.Write([]byte{'='})
		h.Write(b)
		h.Write([]byte{'\n'})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
