package console

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r *Reassembler, chunks [][]byte) []string {
	t.Helper()
	var lines []string
	for _, c := range chunks {
		lines = append(lines, r.Consume(c)...)
	}
	if tail, ok := r.Flush(); ok {
		lines = append(lines, tail)
	}
	return lines
}

func TestConsumeSplitsLines(t *testing.T) {
	var r Reassembler
	lines := r.Consume([]byte("first\nsecond\nthird"))
	assert.Equal(t, []string{"first", "second"}, lines)

	lines = r.Consume([]byte(" part\n"))
	assert.Equal(t, []string{"third part"}, lines)
}

func TestConsumeCRLF(t *testing.T) {
	var r Reassembler
	lines := r.Consume([]byte("one\r\ntwo\r\n"))
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestFlushEmitsRemainder(t *testing.T) {
	var r Reassembler
	r.Consume([]byte("no terminator"))
	tail, ok := r.Flush()
	require.True(t, ok)
	assert.Equal(t, "no terminator", tail)

	_, ok = r.Flush()
	assert.False(t, ok)
}

func TestEmptyChunk(t *testing.T) {
	var r Reassembler
	assert.Empty(t, r.Consume(nil))
	assert.Empty(t, r.Consume([]byte{}))
}

// Any way of splitting the same stream into chunks must produce the
// same ordered line sequence.
func TestRechunkingInvariance(t *testing.T) {
	stream := []byte("[10:00:01] [Server thread/INFO]: Steve joined the game\n" +
		"partial line with no newline yet\n" +
		"\n" +
		"a\nb\nc\n" +
		"tail without terminator")

	var reference Reassembler
	want := collect(t, &reference, [][]byte{stream})

	t.Run("single byte chunks", func(t *testing.T) {
		var r Reassembler
		chunks := make([][]byte, 0, len(stream))
		for i := range stream {
			chunks = append(chunks, stream[i:i+1])
		}
		assert.Equal(t, want, collect(t, &r, chunks))
	})

	t.Run("random splits", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for trial := 0; trial < 100; trial++ {
			var chunks [][]byte
			rest := stream
			for len(rest) > 0 {
				n := 1 + rng.Intn(len(rest))
				chunks = append(chunks, rest[:n])
				rest = rest[n:]
			}
			var r Reassembler
			assert.Equal(t, want, collect(t, &r, chunks), "trial %d", trial)
		}
	})
}
