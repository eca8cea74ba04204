package rcon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []packet{
		{ID: 1, Type: typeAuth, Body: "hunter2"},
		{ID: 42, Type: typeCommand, Body: "list"},
		{ID: -1, Type: typeAuthResponse, Body: ""},
		{ID: 7, Type: typeResponse, Body: "There are 0 of a max of 20 players online:"},
	}
	for _, want := range tests {
		got, rest, ok, err := decode(encode(want))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.Empty(t, rest)
	}
}

func TestEncodeFraming(t *testing.T) {
	buf := encode(packet{ID: 5, Type: typeCommand, Body: "seed"})

	// length field counts everything after itself: id + type + body + two NULs.
	assert.Equal(t, byte(4+4+4+2), buf[0])
	assert.Equal(t, []byte{0, 0}, buf[len(buf)-2:])
	assert.Len(t, buf, 4+10+4)
}

func TestDecodeDefersOnShortInput(t *testing.T) {
	full := encode(packet{ID: 3, Type: typeResponse, Body: "partial"})

	for cut := 0; cut < len(full); cut++ {
		_, rest, ok, err := decode(full[:cut])
		require.NoError(t, err, "cut at %d", cut)
		assert.False(t, ok, "cut at %d", cut)
		assert.Equal(t, full[:cut], rest, "cut at %d", cut)
	}
}

func TestDecodeBackToBackPackets(t *testing.T) {
	first := packet{ID: 1, Type: typeResponse, Body: "one"}
	second := packet{ID: 2, Type: typeResponse, Body: "two"}
	buf := append(encode(first), encode(second)...)

	p1, rest, ok, err := decode(buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, p1)

	p2, rest, ok, err := decode(rest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, p2)
	assert.Empty(t, rest)
}

func TestDecodeRejectsBadLength(t *testing.T) {
	tooSmall := []byte{5, 0, 0, 0, 1, 2, 3, 4, 5}
	_, _, _, err := decode(tooSmall)
	assert.ErrorIs(t, err, ErrProtocol)

	tooLarge := []byte{0xff, 0xff, 0, 0}
	_, _, _, err = decode(tooLarge)
	assert.ErrorIs(t, err, ErrProtocol)
}
