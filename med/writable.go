package med

import (
	"strings"
	"unicode/utf8"
)

// Too-long string policies.
const (
	TooLongStrError    = 0 // refuse to write
	TooLongStrZip      = 1 // shorten around "..." and warn
	TooLongStrTruncate = 2 // keep the prefix
)

// Default connectivity policy: merge cells with the same node set.
const DefaultZipConnPolicy = 2

// Writable holds the policies applied when an entity is written. The zero
// value has too-long string policy 0 and connectivity policy 2.
type Writable struct {
	tooLongStr int
	zipConn    int
	zipConnSet bool
}

func (w *Writable) TooLongStrPolicy() int {
	return w.tooLongStr
}

// SetTooLongStrPolicy accepts 0, 1 or 2.
func (w *Writable) SetTooLongStrPolicy(policy int) error {
	if policy != TooLongStrError && policy != TooLongStrZip && policy != TooLongStrTruncate {
		return newError(InvalidArgument,
			"invalid too long string policy %d: should be in 0, 1 or 2", policy)
	}
	w.tooLongStr = policy
	return nil
}

func (w *Writable) ZipConnPolicy() int {
	if !w.zipConnSet {
		return DefaultZipConnPolicy
	}
	return w.zipConn
}

// SetZipConnPolicy stores policy as is. The writer interprets it.
func (w *Writable) SetZipConnPolicy(policy int) {
	w.zipConn = policy
	w.zipConnSet = true
}

// CopyOptionsFrom overwrites both policies with those of other.
func (w *Writable) CopyOptionsFrom(other *Writable) {
	w.tooLongStr = other.TooLongStrPolicy()
	w.SetZipConnPolicy(other.ZipConnPolicy())
}

// FitString returns s shortened to at most size bytes according to the
// too-long string policy.
func (w *Writable) FitString(s string, size int) (string, error) {
	if len(s) <= size {
		return s, nil
	}
	switch w.tooLongStr {
	case TooLongStrZip:
		zipped := zipString(s, size)
		logger.Warnf("string %q is too long for MED file (> %d): zipping to %q", s, size, zipped)
		return zipped, nil
	case TooLongStrTruncate:
		return prefix(s, size), nil
	}
	return "", newError(InvalidArgument,
		"string %q has been detected to be too long for MED file (> %d)", s, size)
}

// zipString first drops surrounding blanks and collapses runs of a
// repeated character, then keeps the head and tail around "...".
func zipString(s string, size int) string {
	s = strings.TrimSpace(s)
	if len(s) <= size {
		return s
	}
	s = collapseRuns(s)
	if len(s) <= size {
		return s
	}
	const dots = "..."
	if size <= len(dots) {
		return prefix(s, size)
	}
	head := (size - len(dots) + 1) / 2
	tail := size - len(dots) - head
	return prefix(s, head) + dots + suffix(s, tail)
}

// prefix returns the longest prefix of s of at most n bytes that does not
// split a rune.
func prefix(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// suffix is prefix for the end of s.
func suffix(s string, n int) string {
	if n >= len(s) {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// collapseRuns replaces three or more equal consecutive characters by one.
func collapseRuns(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= 3 {
			sb.WriteRune(runes[i])
		} else {
			sb.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return sb.String()
}
