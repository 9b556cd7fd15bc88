package outring

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendUnderCapKeepsEverything(t *testing.T) {
	r := New(1024)
	r.Append([]byte("hello "))
	r.Append([]byte("world"))
	assert.Equal(t, 11, r.ByteLen())
	assert.True(t, bytes.HasSuffix(r.Snapshot(), []byte("hello world")))
}

func TestSnapshotIsNilWhenEmpty(t *testing.T) {
	r := New(64)
	assert.Nil(t, r.Snapshot())
}

func TestSnapshotPrefixesAnsiReset(t *testing.T) {
	r := New(64)
	r.Append([]byte("abc"))
	snap := r.Snapshot()
	require.True(t, bytes.HasPrefix(snap, []byte(ansiReset)))
	assert.Equal(t, ansiReset+"abc", string(snap))
}

func TestAppendEvictsAtNewlineBoundaryPastOverflow(t *testing.T) {
	r := New(10)
	r.Append([]byte("12345\n67890\nabcde"))
	// len is 17, max 10, excess 7 -> search [7,17) for first '\n'
	// data[7] is '7', first newline after index 7 is at index 11 ('\n' after 67890)
	snap := string(r.Snapshot())
	body := strings.TrimPrefix(snap, ansiReset)
	assert.False(t, strings.Contains(body, "12345"))
	assert.True(t, r.ByteLen() <= 17)
}

func TestAppendNeverExceedsMaxByMuchWhenNoNewlineFound(t *testing.T) {
	r := New(5)
	r.Append([]byte("nonewlineshere"))
	// no '\n' within the 256-byte lookahead window, falls back to a hard cut
	assert.LessOrEqual(t, r.ByteLen(), len("nonewlineshere"))
}

func TestByteLenExcludesResetPrefix(t *testing.T) {
	r := New(64)
	r.Append([]byte("1234567890"))
	assert.Equal(t, 10, r.ByteLen())
	assert.Equal(t, 10+len(ansiReset), len(r.Snapshot()))
}
