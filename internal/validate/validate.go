// Package validate enforces the engine's string contract: keys and values
// must be valid, normalized UTF-8. Canonicalizing to NFC before a string
// reaches the codec means two byte-distinct-but-canonically-equal keys
// (e.g. "é" as one code point vs. "e"+combining-acute) are treated as the
// same key, matching how a map of strings is normally expected to behave.
package validate

import (
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"kvengine/internal/errs"
)

// String validates that s is well-formed UTF-8 and returns its NFC form.
// op is the caller's operation name, used to label any returned error.
func String(op, s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", errs.New(errs.Codec, op, "value is not valid UTF-8")
	}
	return norm.NFC.String(s), nil
}

// Key validates and normalizes a key.
func Key(op, key string) (string, error) {
	return String(op, key)
}

// Value validates and normalizes a value.
func Value(op, value string) (string, error) {
	return String(op, value)
}
