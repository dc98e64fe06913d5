// Package canonical implements the single fixed JSON encoding every
// derived write in this system must use: UTF-8, sorted keys, minimal
// separators. Any deviation changes the content hash and breaks replay
// equivalence (spec.md §6, §9).
package canonical

import (
	"bytes"
	"encoding/json"
)

// Marshal encodes v using sorted object keys and minimal separators
// ("," and ":", no indentation, no HTML-escaping surprises beyond the
// stdlib defaults). It round-trips through a generic representation so
// that struct field order never leaks into the wire form — only the
// declared JSON keys matter, and Go's map[string]interface{} encoder
// already emits keys in sorted order.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; strip it so the
	// canonical form is exactly the bytes that get hashed/compared.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MustMarshal is Marshal but panics on error. Only safe for values whose
// JSON-encodability is guaranteed by the caller's own types.
func MustMarshal(v interface{}) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Equal reports whether two values have identical canonical encodings.
// Marshal errors make values compare unequal rather than panicking, since
// callers use this for best-effort delta detection.
func Equal(a, b interface{}) bool {
	ab, aerr := Marshal(a)
	bb, berr := Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
