// Package oid implements the object identifier model of the bridge: a
// numeric component sequence with component-wise ordering and the
// per-character metric-name encoding under a base subtree.
package oid

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is an ordered sequence of non-negative integer components.
type OID []uint32

// Parse converts a dotted string (with or without a leading dot) into an
// OID. Empty components, negative numbers and non-numeric components are
// rejected.
func Parse(text string) (OID, error) {
	trimmed := strings.TrimPrefix(text, ".")
	if trimmed == "" {
		return nil, fmt.Errorf("empty OID %q", text)
	}

	parts := strings.Split(trimmed, ".")
	o := make(OID, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid OID component %q in %q: %w", part, text, err)
		}
		o = append(o, uint32(n))
	}
	return o, nil
}

// MustParse is Parse for compile-time constants; it panics on error.
func MustParse(text string) OID {
	o, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return o
}

// String renders the OID in dotted form with a leading dot.
func (o OID) String() string {
	var b strings.Builder
	for _, c := range o {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	return b.String()
}

// Clone returns an independent copy.
func (o OID) Clone() OID {
	dup := make(OID, len(o))
	copy(dup, o)
	return dup
}

// Append returns a new OID extending o with the given components. The
// receiver is never modified.
func (o OID) Append(components ...uint32) OID {
	out := make(OID, 0, len(o)+len(components))
	out = append(out, o...)
	out = append(out, components...)
	return out
}

// HasPrefix reports whether prefix is a (possibly equal) leading
// subsequence of o.
func (o OID) HasPrefix(prefix OID) bool {
	if len(prefix) > len(o) {
		return false
	}
	for i, c := range prefix {
		if o[i] != c {
			return false
		}
	}
	return true
}

// Compare orders OIDs component-wise numerically. A shorter OID that is a
// prefix of a longer one sorts first. Returns -1, 0 or 1. Note this is
// deliberately not string ordering: .2.9 sorts before .2.10.
func Compare(a, b OID) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Encode maps a metric name to its OID under base by appending one
// component per character, the character's ordinal value. The mapping is
// injective for distinct names under a fixed base: two different names
// differ at some position or in length, so the component sequences
// differ too.
func Encode(base OID, name string) OID {
	out := make(OID, 0, len(base)+len(name))
	out = append(out, base...)
	for i := 0; i < len(name); i++ {
		out = append(out, uint32(name[i]))
	}
	return out
}
