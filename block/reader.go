// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"fmt"
	"io"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/chunk"
	"github.com/jimsdog/riegeli/stream"
)

// Reader reads chunks out of the block framing of src.
//
// Format failures while parsing a chunk are returned without poisoning
// src, so a caller doing recovery can realign and keep reading. The same
// holds for a source that ends inside a chunk or block header: that is
// reported as base.ErrTruncated without latching src. Only failures of
// src itself, such as I/O errors or a failed seek, latch.
type Reader struct {
	src stream.Reader
}

// NewReader creates a block-framing reader over src.
func NewReader(src stream.Reader) *Reader {
	return &Reader{src: src}
}

// Pos returns the current file position.
func (r *Reader) Pos() uint64 {
	return r.src.Pos()
}

// AtEOF reports whether the source is exhausted at the current position.
func (r *Reader) AtEOF() bool {
	window, err := r.src.Pull(1)

	return len(window) == 0 && err == io.EOF
}

// normalize maps pos to the position of the first chunk byte at or after
// it, stepping over a block header region.
func normalize(pos uint64) uint64 {
	if rem := pos % Size; rem < HeaderSize && rem != 0 {
		return pos - rem + HeaderSize
	}

	return pos
}

// SeekToChunk positions the reader at the chunk beginning at begin,
// which must come from a WriteChunk result or a RecordPosition.
func (r *Reader) SeekToChunk(begin uint64) error {
	return r.src.Seek(begin)
}

// ReadChunk reads the chunk at the current position. It returns the
// chunk's begin position alongside the chunk itself.
func (r *Reader) ReadChunk() (chunk.Chunk, uint64, error) {
	begin := r.src.Pos()

	var c chunk.Chunk

	dr := &dataReader{src: r.src}
	if err := c.ReadFrom(dr); err != nil {
		return chunk.Chunk{}, begin, err
	}

	return c, begin, nil
}

// Resync realigns the reader after corruption: starting from the block
// at or after pos, it validates block headers and follows their next
// chunk offsets until a candidate chunk header authenticates, advancing
// one block per failed attempt. It returns the begin position of the
// found chunk, or io.EOF when the source ends first.
//
//nolint:gocognit
func (r *Reader) Resync(pos uint64) (uint64, error) {
	blockStart := pos - pos%Size
	if blockStart < pos {
		blockStart += Size
	}

	for {
		if err := r.src.Seek(blockStart); err != nil {
			return 0, err
		}

		var headerBytes [HeaderSize]byte

		if err := readFullUnlatched(r.src, headerBytes[:]); err != nil {
			return 0, err
		}

		h, err := decodeHeader(blockStart, headerBytes[:])
		if err != nil {
			blockStart += Size

			continue
		}

		candidate := blockStart + h.nextChunkOffset

		ok, err := r.probeChunkHeader(candidate)
		if err != nil {
			return 0, err
		}

		if ok {
			if err := r.SeekToChunk(candidate); err != nil {
				return 0, err
			}

			return candidate, nil
		}

		blockStart += Size
	}
}

// ProbeChunk checks whether an authenticated chunk header begins at pos
// and, when it does, leaves the reader positioned there.
func (r *Reader) ProbeChunk(pos uint64) (bool, error) {
	ok, err := r.probeChunkHeader(pos)
	if err != nil || !ok {
		return ok, err
	}

	return true, r.SeekToChunk(pos)
}

// probeChunkHeader checks whether an authenticated chunk header begins at
// pos, without moving past it on success.
func (r *Reader) probeChunkHeader(pos uint64) (bool, error) {
	if err := r.src.Seek(normalize(pos)); err != nil {
		return false, err
	}

	dr := &dataReader{src: r.src}

	var headerBytes [chunk.HeaderSize]byte

	if err := dr.ReadFull(headerBytes[:]); err != nil {
		if r.src.Healthy() {
			// a short or unparsable region is a failed probe, not a
			// reader failure
			return false, nil
		}

		return false, err
	}

	return chunk.ValidHeaderBytes(headerBytes[:]), nil
}

// PreviousChunkAt returns the previousChunkBegin recorded in the header
// of the block containing pos. Approximate seeks use it to find a chunk
// at or before an arbitrary file position.
func (r *Reader) PreviousChunkAt(pos uint64) (uint64, error) {
	blockStart := pos - pos%Size

	if err := r.src.Seek(blockStart); err != nil {
		return 0, err
	}

	var headerBytes [HeaderSize]byte

	if err := readFullUnlatched(r.src, headerBytes[:]); err != nil {
		return 0, err
	}

	h, err := decodeHeader(blockStart, headerBytes[:])
	if err != nil {
		return 0, err
	}

	if h.nextChunkOffset == 0 {
		// a chunk begins exactly at this boundary
		return blockStart, nil
	}

	return h.previousChunkBegin, nil
}

// readFullUnlatched reads exactly len(p) bytes, reporting a short source
// as io.EOF (nothing read) or base.ErrTruncated without latching src.
func readFullUnlatched(src stream.Reader, p []byte) error {
	n := 0

	for n < len(p) {
		window, err := src.Pull(len(p) - n)
		if len(window) == 0 {
			if err == io.EOF {
				if n == 0 {
					return io.EOF
				}

				return fmt.Errorf("%w: source ended inside a read of %d bytes", base.ErrTruncated, len(p))
			}

			if err == nil {
				err = fmt.Errorf("%w: empty window", base.ErrIO)
			}

			return err
		}

		nn := copy(p[n:], window)
		src.Advance(nn)
		n += nn
	}

	return nil
}

// dataReader presents the chunk bytes of the file as a contiguous
// stream.Reader, consuming and validating the block header at every
// boundary. Failures are recorded locally instead of latching src, so
// one corrupt chunk does not take the whole file down.
type dataReader struct {
	src stream.Reader
	err error
}

func (r *dataReader) Pos() uint64 { return r.src.Pos() }

func (r *dataReader) Err() error { return r.err }

func (r *dataReader) Healthy() bool { return r.err == nil }

func (r *dataReader) Fail(err error) error {
	if r.err == nil {
		r.err = err
	}

	return r.err
}

func (r *dataReader) HopeForMore() bool { return r.src.HopeForMore() }

func (r *dataReader) SupportsRandomAccess() bool { return false }

func (r *dataReader) Seek(uint64) error {
	return r.Fail(fmt.Errorf("%w: the chunk data view is not seekable", base.ErrUsage))
}

// Pull implements stream.Reader. The window never extends past the next
// block boundary; the block header there is consumed and validated on
// the following call.
func (r *dataReader) Pull(min int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	pos := r.src.Pos()

	if isBoundary(pos) {
		var headerBytes [HeaderSize]byte

		if err := readFullUnlatched(r.src, headerBytes[:]); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}

			return nil, r.Fail(err)
		}

		if _, err := decodeHeader(pos, headerBytes[:]); err != nil {
			return nil, r.Fail(err)
		}

		pos += HeaderSize
	}

	room := remainingInBlock(pos)

	window, err := r.src.Pull(int(min64(uint64(min), room)))
	if uint64(len(window)) > room {
		window = window[:room]
	}

	if len(window) > 0 {
		// bytes are available up to the boundary; the error, if any,
		// resurfaces on the next call
		return window, nil
	}

	return window, err
}

func (r *dataReader) Advance(n int) {
	r.src.Advance(n)
}

func (r *dataReader) ReadFull(p []byte) error {
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

func (r *dataReader) Skip(n uint64) error {
	for n > 0 {
		window, err := r.Pull(int(min64(n, Size)))
		if len(window) == 0 {
			if err == nil || err == io.EOF {
				err = fmt.Errorf("%w: source ended while skipping %d bytes", base.ErrTruncated, n)
			}

			return r.Fail(err)
		}

		take := min64(uint64(len(window)), n)
		r.Advance(int(take))
		n -= take
	}

	return nil
}

func (r *dataReader) Close() error { return r.err }

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}

	return b
}
