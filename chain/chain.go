// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chain provides a shareable, splittable sequence of immutable
// byte blocks.
//
// A Chain is the zero-copy currency between the layers of the record
// container: encoders build chunk bodies into chains, splices between
// chains share the underlying blocks instead of copying them.
package chain

import (
	"fmt"
	"io"
	"slices"
)

const (
	// minBlockSize is the smallest block allocated for byte appends, so
	// that short runs coalesce into a single block.
	minBlockSize = 64

	// maxBlockSize bounds a single allocation; chains larger than this
	// are stored as multiple blocks.
	maxBlockSize = 65536
)

// block is a view [off:end) into a backing buffer.
//
// Published block contents are immutable: once a byte is visible through
// any chain, it is never overwritten. The only in-place mutation allowed
// is growing an owned block into the unpublished spare capacity of its
// backing buffer (end forward for appends, off backward for prepends).
type block struct {
	buf  []byte
	off  int
	end  int
	owns bool
}

func (b *block) data() []byte {
	return b.buf[b.off:b.end]
}

func (b *block) len() int {
	return b.end - b.off
}

// Chain is an ordered sequence of byte blocks with cheap append, prepend
// and splice.
//
// The zero value is an empty chain ready to use. Chain is not safe for
// concurrent use.
type Chain struct {
	blocks []block
	size   int
}

// FromBytes creates a chain holding a copy of p.
func FromBytes(p []byte) Chain {
	var c Chain

	c.Append(p)

	return c
}

// Size returns the total number of bytes in the chain.
func (c *Chain) Size() int {
	return c.size
}

// Empty reports whether the chain holds no bytes.
func (c *Chain) Empty() bool {
	return c.size == 0
}

// Reset detaches the chain from all blocks, leaving it empty.
func (c *Chain) Reset() {
	c.blocks = nil
	c.size = 0
}

// newBlockSize picks the capacity for a fresh block: geometric in the
// chain size, clamped to [minBlockSize, maxBlockSize], and never below
// the immediate need.
func (c *Chain) newBlockSize(need int) int {
	size := c.size
	if size < minBlockSize {
		size = minBlockSize
	}

	if size > maxBlockSize {
		size = maxBlockSize
	}

	if size < need {
		size = need
	}

	return size
}

// Append copies p to the end of the chain.
func (c *Chain) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	c.size += len(p)

	// fill spare capacity of an owned tail block first
	if n := len(c.blocks); n > 0 {
		last := &c.blocks[n-1]

		if last.owns {
			if free := cap(last.buf) - last.end; free > 0 {
				nn := min(free, len(p))

				last.buf = last.buf[:last.end+nn]
				copy(last.buf[last.end:], p[:nn])
				last.end += nn
				p = p[nn:]
			}
		}
	}

	if len(p) == 0 {
		return
	}

	buf := make([]byte, len(p), c.newBlockSize(len(p)))
	copy(buf, p)

	c.blocks = append(c.blocks, block{
		buf:  buf,
		off:  0,
		end:  len(p),
		owns: true,
	})
}

// Prepend copies p to the front of the chain.
func (c *Chain) Prepend(p []byte) {
	if len(p) == 0 {
		return
	}

	c.size += len(p)

	// fill spare capacity at the front of an owned head block first
	if len(c.blocks) > 0 {
		head := &c.blocks[0]

		if head.owns && head.off > 0 {
			nn := min(head.off, len(p))

			copy(head.buf[head.off-nn:head.off], p[len(p)-nn:])
			head.off -= nn
			p = p[:len(p)-nn]
		}
	}

	if len(p) == 0 {
		return
	}

	// new head blocks keep their data at the end of the backing buffer so
	// that further prepends have room to grow downwards
	capacity := c.newBlockSize(len(p))
	buf := make([]byte, capacity)
	off := capacity - len(p)
	copy(buf[off:], p)

	c.blocks = slices.Insert(c.blocks, 0, block{
		buf:  buf,
		off:  off,
		end:  capacity,
		owns: true,
	})
}

// AppendChain splices the blocks of other to the end of the chain.
//
// The blocks are shared, not copied; other remains valid and may keep
// growing independently.
func (c *Chain) AppendChain(other *Chain) {
	for i := range other.blocks {
		b := other.blocks[i]
		b.owns = false

		if b.len() == 0 {
			continue
		}

		c.blocks = append(c.blocks, b)
	}

	c.size += other.size
}

// PrependChain splices the blocks of other to the front of the chain.
func (c *Chain) PrependChain(other *Chain) {
	shared := make([]block, 0, len(other.blocks))

	for i := range other.blocks {
		b := other.blocks[i]
		b.owns = false

		if b.len() == 0 {
			continue
		}

		shared = append(shared, b)
	}

	c.blocks = slices.Insert(c.blocks, 0, shared...)
	c.size += other.size
}

// SplitAt splits the chain into a prefix of n bytes and the remaining
// suffix. Both results share blocks with the original chain; a block
// containing the split point is shared by both sides.
func (c *Chain) SplitAt(n int) (prefix, suffix Chain, err error) {
	if n < 0 || n > c.size {
		return Chain{}, Chain{}, fmt.Errorf("split point %d outside chain of size %d", n, c.size)
	}

	remaining := n

	for i := range c.blocks {
		b := c.blocks[i]
		b.owns = false

		if remaining >= b.len() {
			remaining -= b.len()
			prefix.blocks = append(prefix.blocks, b)

			continue
		}

		if remaining > 0 {
			left, right := b, b

			left.end = left.off + remaining
			right.off += remaining

			prefix.blocks = append(prefix.blocks, left)
			suffix.blocks = append(suffix.blocks, right)
			remaining = 0

			continue
		}

		suffix.blocks = append(suffix.blocks, b)
	}

	prefix.size = n
	suffix.size = c.size - n

	return prefix, suffix, nil
}

// CopyTo flattens the chain into dst and returns the number of bytes
// copied, which is min(len(dst), Size()).
func (c *Chain) CopyTo(dst []byte) int {
	n := 0

	for i := range c.blocks {
		if n == len(dst) {
			break
		}

		n += copy(dst[n:], c.blocks[i].data())
	}

	return n
}

// Bytes flattens the chain into a freshly allocated contiguous buffer.
//
// A single-block chain returns its block without copying; the result must
// be treated as read-only.
func (c *Chain) Bytes() []byte {
	if len(c.blocks) == 1 {
		return c.blocks[0].data()
	}

	buf := make([]byte, c.size)
	c.CopyTo(buf)

	return buf
}

// Blocks returns the block contents in order. The returned slices must be
// treated as read-only.
func (c *Chain) Blocks() [][]byte {
	out := make([][]byte, 0, len(c.blocks))

	for i := range c.blocks {
		if c.blocks[i].len() == 0 {
			continue
		}

		out = append(out, c.blocks[i].data())
	}

	return out
}

// WriteTo writes the chain to w block by block, implementing io.WriterTo.
func (c *Chain) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for i := range c.blocks {
		n, err := w.Write(c.blocks[i].data())
		total += int64(n)

		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// AppendBlock attaches p as a whole shared block without copying. The
// caller must not modify p afterwards.
func (c *Chain) AppendBlock(p []byte) {
	if len(p) == 0 {
		return
	}

	c.blocks = append(c.blocks, block{
		buf: p,
		off: 0,
		end: len(p),
	})
	c.size += len(p)
}

// PrependBlock attaches p as a whole shared block at the front without
// copying. The caller must not modify p afterwards.
func (c *Chain) PrependBlock(p []byte) {
	if len(p) == 0 {
		return
	}

	c.blocks = slices.Insert(c.blocks, 0, block{
		buf: p,
		off: 0,
		end: len(p),
	})
	c.size += len(p)
}
