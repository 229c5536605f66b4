package chainmodel

import (
	"fmt"
	"strings"
)

// Flag is a boolean that marshals to JSON as 0 or 1 instead of true/false,
// matching the wire schema's is_coinbase/is_orphan/unspent encoding
// (mirrored from the original source's `1 if x else 0` convention).
type Flag bool

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "1", "true":
		*f = true
	case "0", "false":
		*f = false
	default:
		return fmt.Errorf("chainmodel: invalid flag value %q", data)
	}
	return nil
}
