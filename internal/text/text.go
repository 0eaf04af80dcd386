// Package text provides rune-offset edit helpers for cell content. Offsets
// count runes, not bytes, so positions coming from a presentation layer stay
// valid for any UTF-8 content.
package text

import (
	"errors"
	"fmt"
)

// ErrOffsetOutOfRange is returned when an offset does not fall inside the
// target string. The caller's content is left untouched.
var ErrOffsetOutOfRange = errors.New("offset out of range")

// Insert places ins into s at rune offset pos.
func Insert(s string, pos int, ins string) (string, error) {
	runes := []rune(s)
	if pos < 0 || pos > len(runes) {
		return s, fmt.Errorf("%w: insert at %d, length %d", ErrOffsetOutOfRange, pos, len(runes))
	}
	return string(runes[:pos]) + ins + string(runes[pos:]), nil
}

// Delete removes the rune span [from, to) of s and returns the remaining
// string together with the removed span.
func Delete(s string, from, to int) (remaining, removed string, err error) {
	runes := []rune(s)
	if from < 0 || to < from || to > len(runes) {
		return s, "", fmt.Errorf("%w: delete [%d,%d), length %d", ErrOffsetOutOfRange, from, to, len(runes))
	}
	removed = string(runes[from:to])
	remaining = string(runes[:from]) + string(runes[to:])
	return remaining, removed, nil
}

// Split divides s at rune offset pos.
func Split(s string, pos int) (head, tail string, err error) {
	runes := []rune(s)
	if pos < 0 || pos > len(runes) {
		return "", "", fmt.Errorf("%w: split at %d, length %d", ErrOffsetOutOfRange, pos, len(runes))
	}
	return string(runes[:pos]), string(runes[pos:]), nil
}

// Length returns the rune length of s.
func Length(s string) int {
	return len([]rune(s))
}
