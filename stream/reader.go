// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package stream

import (
	"fmt"
	"io"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/chain"
)

// ChainReader is a Reader over the blocks of a chain.
type ChainReader struct {
	state

	blocks [][]byte

	// blockIdx/off locate the cursor; pos is the absolute position
	blockIdx int
	off      int
	pos      uint64
}

// NewChainReader creates a Reader over src. The chain must not be
// modified while the reader is in use.
func NewChainReader(src *chain.Chain) *ChainReader {
	return &ChainReader{blocks: src.Blocks()}
}

// Pos implements Reader.
func (r *ChainReader) Pos() uint64 { return r.pos }

// Healthy implements Reader.
func (r *ChainReader) Healthy() bool { return r.healthy() }

// Err implements Reader.
func (r *ChainReader) Err() error { return r.err }

// Fail implements Reader.
func (r *ChainReader) Fail(err error) error {
	r.blocks = nil
	r.blockIdx = 0
	r.off = 0

	return r.fail(err)
}

// HopeForMore implements Reader. A chain never grows behind its reader.
func (r *ChainReader) HopeForMore() bool { return false }

// SupportsRandomAccess implements Reader.
func (r *ChainReader) SupportsRandomAccess() bool { return true }

// Pull implements Reader. The window is the remainder of the current
// block, so it may be shorter than min even in mid-chain.
func (r *ChainReader) Pull(int) ([]byte, error) {
	if !r.healthy() {
		return nil, r.err
	}

	if r.closed {
		return nil, r.failClosed()
	}

	for r.blockIdx < len(r.blocks) {
		if r.off < len(r.blocks[r.blockIdx]) {
			return r.blocks[r.blockIdx][r.off:], nil
		}

		r.blockIdx++
		r.off = 0
	}

	return nil, io.EOF
}

// Advance implements Reader.
func (r *ChainReader) Advance(n int) {
	r.off += n
	r.pos += uint64(n)
}

// ReadFull implements Reader.
func (r *ChainReader) ReadFull(p []byte) error {
	return readFull(r, p)
}

// Skip implements Reader.
func (r *ChainReader) Skip(n uint64) error {
	return r.Seek(r.pos + n)
}

// Seek implements Reader.
func (r *ChainReader) Seek(pos uint64) error {
	if !r.healthy() {
		return r.err
	}

	if r.closed {
		return r.failClosed()
	}

	remaining := pos
	r.blockIdx = 0
	r.off = 0

	for r.blockIdx < len(r.blocks) && remaining >= uint64(len(r.blocks[r.blockIdx])) {
		remaining -= uint64(len(r.blocks[r.blockIdx]))
		r.blockIdx++
	}

	if r.blockIdx == len(r.blocks) && remaining > 0 {
		return r.Fail(fmt.Errorf("%w: seek to %d beyond end of chain", base.ErrUsage, pos))
	}

	r.off = int(remaining)
	r.pos = pos

	return nil
}

// Close implements Reader.
func (r *ChainReader) Close() error {
	if r.closed {
		return r.err
	}

	r.closed = true
	r.blocks = nil

	return r.err
}

// BufferedReader is a Reader in front of an io.Reader, optionally seekable
// when the source implements io.Seeker.
type BufferedReader struct {
	state

	src    io.Reader
	seeker io.Seeker

	buf        []byte
	start, end int

	// absolute position of buf[start]
	winPos uint64

	// the source definitely ended
	eof bool
}

// NewBufferedReader creates a Reader in front of src with the given
// working buffer size; size <= 0 selects DefaultBufferSize. Random access
// is available when src also implements io.Seeker.
func NewBufferedReader(src io.Reader, size int) *BufferedReader {
	if size <= 0 {
		size = DefaultBufferSize
	}

	r := &BufferedReader{
		src: src,
		buf: make([]byte, size),
	}

	if s, ok := src.(io.Seeker); ok {
		r.seeker = s
	}

	return r
}

// Pos implements Reader.
func (r *BufferedReader) Pos() uint64 { return r.winPos }

// Healthy implements Reader.
func (r *BufferedReader) Healthy() bool { return r.healthy() }

// Err implements Reader.
func (r *BufferedReader) Err() error { return r.err }

// Fail implements Reader.
func (r *BufferedReader) Fail(err error) error {
	r.buf = nil
	r.start = 0
	r.end = 0

	return r.fail(err)
}

// HopeForMore implements Reader. Before the source reported its end, an
// empty window may still grow.
func (r *BufferedReader) HopeForMore() bool { return !r.eof }

// SupportsRandomAccess implements Reader.
func (r *BufferedReader) SupportsRandomAccess() bool { return r.seeker != nil }

// Pull implements Reader.
func (r *BufferedReader) Pull(min int) ([]byte, error) {
	if !r.healthy() {
		return nil, r.err
	}

	if r.closed {
		return nil, r.failClosed()
	}

	if r.end-r.start >= min {
		return r.buf[r.start:r.end], nil
	}

	if min > len(r.buf) {
		grown := make([]byte, min)
		r.end = copy(grown, r.buf[r.start:r.end])
		r.start = 0
		r.buf = grown
	} else if len(r.buf)-r.start < min {
		// compact the window to the front to make room
		r.end = copy(r.buf, r.buf[r.start:r.end])
		r.start = 0
	}

	for r.end-r.start < min && !r.eof {
		n, err := r.src.Read(r.buf[r.end:])
		r.end += n

		if err == io.EOF {
			r.eof = true

			break
		}

		if err != nil {
			return nil, r.Fail(wrapIO(err))
		}
	}

	if r.end-r.start < min && r.eof {
		return r.buf[r.start:r.end], io.EOF
	}

	return r.buf[r.start:r.end], nil
}

// Advance implements Reader.
func (r *BufferedReader) Advance(n int) {
	r.start += n
	r.winPos += uint64(n)
}

// ReadFull implements Reader.
func (r *BufferedReader) ReadFull(p []byte) error {
	return readFull(r, p)
}

// Skip implements Reader.
func (r *BufferedReader) Skip(n uint64) error {
	if !r.healthy() {
		return r.err
	}

	if r.closed {
		return r.failClosed()
	}

	if window := uint64(r.end - r.start); n <= window {
		r.Advance(int(n))

		return nil
	}

	if r.seeker != nil {
		return r.Seek(r.winPos + n)
	}

	for n > 0 {
		window, err := r.Pull(1)
		if len(window) == 0 {
			if err == nil || err == io.EOF {
				err = fmt.Errorf("%w: source ended while skipping %d bytes", base.ErrTruncated, n)
			}

			return r.Fail(err)
		}

		take := min(uint64(len(window)), n)
		r.Advance(int(take))
		n -= take
	}

	return nil
}

// Seek implements Reader.
func (r *BufferedReader) Seek(pos uint64) error {
	if !r.healthy() {
		return r.err
	}

	if r.closed {
		return r.failClosed()
	}

	if r.seeker == nil {
		return r.Fail(fmt.Errorf("%w: source does not support random access", base.ErrUsage))
	}

	// reuse the buffered window when the target lies inside it
	if pos >= r.winPos && pos-r.winPos <= uint64(r.end-r.start) {
		r.start += int(pos - r.winPos)
		r.winPos = pos

		return nil
	}

	if _, err := r.seeker.Seek(int64(pos), io.SeekStart); err != nil {
		return r.Fail(wrapIO(err))
	}

	r.start = 0
	r.end = 0
	r.winPos = pos
	r.eof = false

	return nil
}

// Size returns the total size of the source. It requires random access;
// the buffered window is preserved.
func (r *BufferedReader) Size() (uint64, error) {
	if !r.healthy() {
		return 0, r.err
	}

	if r.closed {
		return 0, r.failClosed()
	}

	if r.seeker == nil {
		return 0, r.Fail(fmt.Errorf("%w: source does not support random access", base.ErrUsage))
	}

	size, err := r.seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, r.Fail(wrapIO(err))
	}

	// restore the source cursor past the buffered window
	if _, err := r.seeker.Seek(int64(r.winPos)+int64(r.end-r.start), io.SeekStart); err != nil {
		return 0, r.Fail(wrapIO(err))
	}

	return uint64(size), nil
}

// Close implements Reader. The source io.Reader is borrowed and is not
// closed.
func (r *BufferedReader) Close() error {
	if r.closed {
		return r.err
	}

	r.closed = true
	r.buf = nil
	r.start = 0
	r.end = 0

	return r.err
}

// readFull reads exactly len(p) bytes through Pull windows.
func readFull(r Reader, p []byte) error {
	n := 0

	for n < len(p) {
		window, err := r.Pull(len(p) - n)
		if len(window) == 0 {
			if err == nil || err == io.EOF {
				err = fmt.Errorf("%w: source ended inside a read of %d bytes", base.ErrTruncated, len(p))
			}

			return r.Fail(err)
		}

		nn := copy(p[n:], window)
		r.Advance(nn)
		n += nn
	}

	return nil
}
