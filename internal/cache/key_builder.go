package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// BuildKey builds a Key from the logical operation name, the user input, and
// any per-call options.
//
// The input is normalized (trimmed, inner whitespace collapsed) and the
// options are serialized to canonical JSON (struct field order is stable),
// so semantically identical calls always hash to the same key.
func BuildKey(op string, input string, opts any) (Key, error) {
	normalized := "input:" + normalizeInput(input)

	if opts != nil {
		body, err := json.Marshal(opts)
		if err != nil {
			return Key{}, err
		}
		normalized += "|opts:" + string(body)
	}

	sum := sha256.Sum256([]byte(normalized))

	return Key{
		Op:   op,
		Hash: hex.EncodeToString(sum[:]),
	}, nil
}

// normalizeInput collapses runs of whitespace and trims the ends, leaving
// case intact ("X" and "x" can mean different things to the remote).
func normalizeInput(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
