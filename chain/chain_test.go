// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chain_test

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimsdog/riegeli/chain"
)

func TestAppendPrepend(t *testing.T) {
	t.Parallel()

	var c chain.Chain

	assert.True(t, c.Empty())
	assert.Equal(t, 0, c.Size())

	c.Append([]byte("middle"))
	c.Prepend([]byte("front "))
	c.Append([]byte(" back"))

	assert.Equal(t, len("front middle back"), c.Size())
	assert.Equal(t, []byte("front middle back"), c.Bytes())
}

func TestManySmallAppendsCoalesce(t *testing.T) {
	t.Parallel()

	var (
		c        chain.Chain
		expected []byte
	)

	for i := range 1000 {
		b := []byte{byte(i)}

		c.Append(b)
		expected = append(expected, b...)
	}

	require.Equal(t, 1000, c.Size())
	require.Equal(t, expected, c.Bytes())

	// short runs should not degenerate into one block per byte
	assert.Less(t, len(c.Blocks()), 100)
}

func TestManySmallPrepends(t *testing.T) {
	t.Parallel()

	var (
		c        chain.Chain
		expected []byte
	)

	for i := range 1000 {
		b := []byte{byte(i)}

		c.Prepend(b)
		expected = append(b, expected...)
	}

	require.Equal(t, expected, c.Bytes())
	assert.Less(t, len(c.Blocks()), 100)
}

func TestAppendChainSharesBlocks(t *testing.T) {
	t.Parallel()

	var a, b chain.Chain

	a.Append(bytes.Repeat([]byte("a"), 1000))
	b.Append(bytes.Repeat([]byte("b"), 1000))

	a.AppendChain(&b)

	require.Equal(t, 2000, a.Size())
	require.Equal(t, append(bytes.Repeat([]byte("a"), 1000), bytes.Repeat([]byte("b"), 1000)...), a.Bytes())

	// the source stays valid and independent
	b.Append([]byte("more"))
	assert.Equal(t, 1004, b.Size())
	assert.Equal(t, 2000, a.Size())
}

func TestPrependChain(t *testing.T) {
	t.Parallel()

	var a, b chain.Chain

	a.Append([]byte("tail"))
	b.Append([]byte("head "))

	a.PrependChain(&b)

	assert.Equal(t, []byte("head tail"), a.Bytes())
}

func TestSplitAt(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name  string
		split int
	}{
		{name: "at start", split: 0},
		{name: "inside first block", split: 10},
		{name: "at block boundary", split: 1000},
		{name: "inside second block", split: 1500},
		{name: "at end", split: 2000},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var c chain.Chain

			c.Append(bytes.Repeat([]byte("x"), 1000))
			c.AppendChain(&chain.Chain{})
			c.Append(bytes.Repeat([]byte("y"), 1000))

			full := append([]byte(nil), c.Bytes()...)

			prefix, suffix, err := c.SplitAt(test.split)
			require.NoError(t, err)

			assert.Equal(t, test.split, prefix.Size())
			assert.Equal(t, 2000-test.split, suffix.Size())

			recombined := prefix
			recombined.AppendChain(&suffix)

			assert.Equal(t, full, recombined.Bytes())
		})
	}
}

func TestSplitAtOutOfRange(t *testing.T) {
	t.Parallel()

	c := chain.FromBytes([]byte("abc"))

	_, _, err := c.SplitAt(4)
	assert.Error(t, err)

	_, _, err = c.SplitAt(-1)
	assert.Error(t, err)
}

func TestCopyTo(t *testing.T) {
	t.Parallel()

	var c chain.Chain

	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(rand.IntN(256))
	}

	for i := 0; i < len(data); i += 333 {
		c.Append(data[i:min(i+333, len(data))])
	}

	dst := make([]byte, len(data))
	n := c.CopyTo(dst)

	require.Equal(t, len(data), n)
	require.Equal(t, data, dst)

	short := make([]byte, 100)
	assert.Equal(t, 100, c.CopyTo(short))
	assert.Equal(t, data[:100], short)
}

func TestWriteTo(t *testing.T) {
	t.Parallel()

	var c chain.Chain

	c.Append([]byte("hello "))
	c.Append([]byte("world"))

	var buf bytes.Buffer

	n, err := c.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, c.Size(), n)
	assert.Equal(t, "hello world", buf.String())
}

func TestBlocksImmutableAfterSharing(t *testing.T) {
	t.Parallel()

	var a, b chain.Chain

	a.Append([]byte("shared"))
	b.AppendChain(&a)

	// growing either chain must not change the other's bytes
	a.Append([]byte(" grown"))
	b.Append([]byte(" other"))

	assert.Equal(t, []byte("shared grown"), a.Bytes())
	assert.Equal(t, []byte("shared other"), b.Bytes())
}

func TestAppendBlockZeroCopy(t *testing.T) {
	t.Parallel()

	var c chain.Chain

	blockData := []byte("zero copy block")
	c.AppendBlock(blockData)

	require.Equal(t, len(blockData), c.Size())

	blocks := c.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, &blockData[0], &blocks[0][0])
}
