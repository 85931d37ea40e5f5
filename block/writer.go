// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"fmt"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/chunk"
	"github.com/jimsdog/riegeli/stream"
)

// Writer lays already-encoded chunks into the block framing of dest.
//
// Chunk positions are the file offsets of their headers; a chunk that
// starts right after a block header is recorded at the block boundary
// itself, so positions never point inside a block header.
type Writer struct {
	dest stream.Writer

	// begin of the last chunk written; previousChunkBegin of the block
	// headers written while no newer chunk has begun
	prevChunkBegin uint64
}

// NewWriter creates a block-framing writer over dest, which must be
// positioned at the start of the file.
func NewWriter(dest stream.Writer) *Writer {
	return &Writer{dest: dest}
}

// Pos returns the file position where the next chunk would begin.
func (w *Writer) Pos() uint64 {
	return w.dest.Pos()
}

// WriteChunk lays out c, interleaving block headers at every 64 KiB
// boundary, and returns the chunk's begin position.
func (w *Writer) WriteChunk(c *chunk.Chunk) (uint64, error) {
	if err := w.dest.Err(); err != nil {
		return 0, err
	}

	begin := w.dest.Pos()
	if !isBoundary(begin) && begin%Size < HeaderSize {
		return 0, w.dest.Fail(fmt.Errorf("%w: chunk begin %d inside a block header", base.ErrUsage, begin))
	}

	headerBytes := c.Header.Encode()
	end := advancePos(begin, uint64(len(headerBytes))+c.Header.DataSize)

	if err := w.writePiece(begin, end, headerBytes[:]); err != nil {
		return 0, err
	}

	for _, b := range c.Data.Blocks() {
		if err := w.writePiece(begin, end, b); err != nil {
			return 0, err
		}
	}

	w.prevChunkBegin = begin

	return begin, nil
}

// writePiece writes chunk bytes, emitting a block header whenever the
// position reaches a boundary. begin and end frame the chunk being
// written, so the headers can point at it.
func (w *Writer) writePiece(begin, end uint64, p []byte) error {
	for len(p) > 0 {
		pos := w.dest.Pos()

		if isBoundary(pos) {
			if err := w.writeBlockHeader(pos, begin, end); err != nil {
				return err
			}

			pos += HeaderSize
		}

		take := min(remainingInBlock(pos), uint64(len(p)))

		if err := w.dest.Write(p[:take]); err != nil {
			return err
		}

		p = p[take:]
	}

	return nil
}

// writeBlockHeader emits the header of the block at blockStart while the
// chunk [begin, end) is being written.
func (w *Writer) writeBlockHeader(blockStart, begin, end uint64) error {
	h := header{}

	if begin < blockStart {
		// the block interrupts the current chunk
		h.previousChunkBegin = begin
		h.nextChunkOffset = end - blockStart
	} else {
		// the current chunk begins exactly at this boundary
		h.previousChunkBegin = w.prevChunkBegin
		h.nextChunkOffset = 0
	}

	buf := encodeHeader(blockStart, h)

	return w.dest.Write(buf[:])
}

// Flush forwards to the destination.
func (w *Writer) Flush(kind base.FlushKind) error {
	return w.dest.Flush(kind)
}

// Close closes the destination. The file ends wherever the last chunk
// ends; partial blocks are not padded.
func (w *Writer) Close() error {
	return w.dest.Close()
}
