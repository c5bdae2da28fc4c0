// Package mask implements the fixed-width bitset describing which
// fractional parts of a core a region owns.
//
// A core is divisible into exactly Bits parts. A CoreMask is the set of
// parts a region claims; interlacing a region splits its mask into two
// disjoint masks whose union is the original. CoreMask is a comparable
// value type so it can key maps directly (region identity includes the
// mask).
//
// Construction always normalizes: bits above Bits-1 can never be set,
// regardless of input. This is the invariant every other package relies
// on when it unions or complements masks.
package mask

import (
	"fmt"
	"math/bits"
)

// Bits is the number of addressable parts of one core.
const Bits = 80

// hiBits is how many bits of the high word are in use.
const hiBits = Bits - 64

// hiMask keeps the high word normalized.
const hiMask = uint64(1)<<hiBits - 1

// CoreMask is an 80-bit set over the parts of one core.
// Word 0 holds parts 0-63, word 1 holds parts 64-79 in its low bits.
// The zero value is the void mask.
type CoreMask [2]uint64

// Void returns the empty mask.
func Void() CoreMask {
	return CoreMask{}
}

// Complete returns the mask with every part set.
func Complete() CoreMask {
	return CoreMask{^uint64(0), hiMask}
}

// FromWords builds a mask from two raw words, discarding any bits beyond
// part Bits-1.
func FromWords(lo, hi uint64) CoreMask {
	return CoreMask{lo, hi & hiMask}
}

// FromChunk returns the mask with parts [from, to) set.
// Out-of-range indices are clamped to [0, Bits].
func FromChunk(from, to int) CoreMask {
	m := Void()
	for i := max(from, 0); i < min(to, Bits); i++ {
		m = m.WithPart(i)
	}
	return m
}

// WithPart returns m with part i set. Out-of-range i is ignored.
func (m CoreMask) WithPart(i int) CoreMask {
	if i < 0 || i >= Bits {
		return m
	}
	m[i/64] |= uint64(1) << (i % 64)
	return m
}

// Part reports whether part i is set.
func (m CoreMask) Part(i int) bool {
	if i < 0 || i >= Bits {
		return false
	}
	return m[i/64]&(uint64(1)<<(i%64)) != 0
}

// Count returns the number of set parts.
func (m CoreMask) Count() int {
	return bits.OnesCount64(m[0]) + bits.OnesCount64(m[1])
}

// IsVoid reports whether no parts are set.
func (m CoreMask) IsVoid() bool {
	return m == CoreMask{}
}

// IsComplete reports whether every part is set.
func (m CoreMask) IsComplete() bool {
	return m == Complete()
}

// IsSubsetOf reports whether every part of m is also set in o.
func (m CoreMask) IsSubsetOf(o CoreMask) bool {
	return m.Union(o) == o
}

// Union returns the parts set in either mask.
func (m CoreMask) Union(o CoreMask) CoreMask {
	return CoreMask{m[0] | o[0], m[1] | o[1]}
}

// Intersection returns the parts set in both masks.
func (m CoreMask) Intersection(o CoreMask) CoreMask {
	return CoreMask{m[0] & o[0], m[1] & o[1]}
}

// Without returns the parts of m not set in o.
func (m CoreMask) Without(o CoreMask) CoreMask {
	return CoreMask{m[0] &^ o[0], m[1] &^ o[1]}
}

// Xor returns the parts set in exactly one of the masks.
func (m CoreMask) Xor(o CoreMask) CoreMask {
	return CoreMask{m[0] ^ o[0], m[1] ^ o[1]}
}

// Complement returns the parts of the full core not set in m.
func (m CoreMask) Complement() CoreMask {
	return Complete().Without(m)
}

// String renders the mask as 20 hex digits, most significant part first.
func (m CoreMask) String() string {
	return fmt.Sprintf("%04x%016x", m[1], m[0])
}

// Parse decodes the 20-hex-digit form produced by String.
func Parse(s string) (CoreMask, error) {
	if len(s) != 20 {
		return CoreMask{}, fmt.Errorf("core mask must be 20 hex digits, got %d", len(s))
	}
	var hi, lo uint64
	if _, err := fmt.Sscanf(s[:4], "%04x", &hi); err != nil {
		return CoreMask{}, fmt.Errorf("parse core mask %q: %w", s, err)
	}
	if _, err := fmt.Sscanf(s[4:], "%016x", &lo); err != nil {
		return CoreMask{}, fmt.Errorf("parse core mask %q: %w", s, err)
	}
	if hi&^hiMask != 0 {
		return CoreMask{}, fmt.Errorf("core mask %q has bits beyond part %d", s, Bits-1)
	}
	return CoreMask{lo, hi}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (m CoreMask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *CoreMask) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
