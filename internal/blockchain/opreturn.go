package blockchain

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// opReturnOpcode starts a null-data output script.
const opReturnOpcode = 0x6a

// DecodeOpReturn extracts the embedded payload from a null-data output
// script, returning ok=false when the script is not an OP_RETURN or carries
// no data. Single-byte push opcodes and OP_PUSHDATA1 are handled; larger
// pushes do not occur in standard null-data outputs.
func DecodeOpReturn(script string) (string, bool) {
	raw, err := hex.DecodeString(strings.TrimSpace(script))
	if err != nil || len(raw) < 2 || raw[0] != opReturnOpcode {
		return "", false
	}

	data := raw[1:]
	switch {
	case data[0] == 0x4c: // OP_PUSHDATA1
		if len(data) < 2 {
			return "", false
		}
		size := int(data[1])
		data = data[2:]
		if len(data) < size {
			return "", false
		}
		data = data[:size]
	case data[0] <= 0x4b:
		size := int(data[0])
		data = data[1:]
		if len(data) < size {
			return "", false
		}
		data = data[:size]
	default:
		return "", false
	}

	if len(data) == 0 || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}
