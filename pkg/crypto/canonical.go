package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// CanonicalMarshal serializes v into RFC 8785 (JCS) canonical JSON: sorted
// object keys, no HTML escaping, no insignificant whitespace, no trailing
// newline. Hashing and signing always operate on this form so the same
// logical value produces identical bytes regardless of struct field order
// or map iteration order.
func CanonicalMarshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical encoding failed: %w", err)
	}

	transformed, err := jcs.Transform(bytes.TrimRight(buf.Bytes(), "\n"))
	if err != nil {
		return nil, fmt.Errorf("JCS canonicalization failed: %w", err)
	}
	return transformed, nil
}
