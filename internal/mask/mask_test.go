package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_Count(t *testing.T) {
	assert.Equal(t, Bits, Complete().Count())
	assert.True(t, Complete().IsComplete())
	assert.False(t, Complete().IsVoid())
}

func TestVoid(t *testing.T) {
	assert.Equal(t, 0, Void().Count())
	assert.True(t, Void().IsVoid())
	assert.True(t, Void().IsSubsetOf(Complete()))
}

func TestFromWords_Normalizes(t *testing.T) {
	// Bits above part 79 must never survive construction.
	m := FromWords(0, ^uint64(0))
	assert.Equal(t, 16, m.Count(), "only the low 16 bits of the high word are addressable")
	assert.True(t, m.IsSubsetOf(Complete()))
}

func TestFromChunk(t *testing.T) {
	m := FromChunk(0, 40)
	assert.Equal(t, 40, m.Count())
	assert.True(t, m.Part(0))
	assert.True(t, m.Part(39))
	assert.False(t, m.Part(40))

	// Chunk and its complement partition the core.
	other := m.Complement()
	assert.Equal(t, 40, other.Count())
	assert.True(t, m.Intersection(other).IsVoid())
	assert.Equal(t, Complete(), m.Union(other))
}

func TestFromChunk_Clamps(t *testing.T) {
	assert.Equal(t, Complete(), FromChunk(-5, Bits+5))
	assert.True(t, FromChunk(10, 10).IsVoid())
	assert.True(t, FromChunk(20, 10).IsVoid())
}

func TestSubsetAndWithout(t *testing.T) {
	inner := FromChunk(20, 60)
	assert.True(t, inner.IsSubsetOf(Complete()))
	assert.False(t, Complete().IsSubsetOf(inner))

	rest := Complete().Without(inner)
	assert.Equal(t, Bits-40, rest.Count())
	assert.True(t, rest.Intersection(inner).IsVoid())
	assert.Equal(t, Complete(), rest.Union(inner))
}

func TestXor(t *testing.T) {
	a := FromChunk(0, 50)
	b := FromChunk(30, 80)
	assert.Equal(t, a.Union(b).Without(a.Intersection(b)), a.Xor(b))
	assert.Equal(t, Complete(), Complete().Xor(Void()))
}

func TestString_RoundTrip(t *testing.T) {
	cases := []CoreMask{
		Void(),
		Complete(),
		FromChunk(0, 1),
		FromChunk(79, 80),
		FromChunk(20, 60),
		FromWords(0xdeadbeefcafef00d, 0x1234),
	}
	for _, m := range cases {
		parsed, err := Parse(m.String())
		require.NoError(t, err, "mask %s", m)
		assert.Equal(t, m, parsed)
	}
}

func TestString_InterlaceExample(t *testing.T) {
	// The canonical "middle 40 parts" interlace mask.
	m := FromChunk(20, 60)
	assert.Equal(t, "00000ffffffffff00000", m.String())
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse("ffff")
	assert.Error(t, err, "short input")

	_, err = Parse("zzzz0000000000000000")
	assert.Error(t, err, "non-hex input")
}

func TestTextMarshaling(t *testing.T) {
	m := FromChunk(0, 8)
	text, err := m.MarshalText()
	require.NoError(t, err)

	var back CoreMask
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, m, back)
}
