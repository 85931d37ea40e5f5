// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/block"
	"github.com/jimsdog/riegeli/chunk"
	"github.com/jimsdog/riegeli/stream"
)

// Reader reads records out of a container file.
//
// The reader tracks a position (chunk begin, record index) for every
// record, supports seeking to serialized positions, and can optionally
// recover from corruption by realigning on block headers.
//
// Reader is not safe for concurrent use.
type Reader struct {
	opt ReaderOptions

	src    *stream.BufferedReader
	blocks *block.Reader

	// decoder of the current chunk, nil between chunks
	dec        *chunk.Decoder
	chunkBegin uint64

	// chunks skipped by recovery
	recovered uint64

	closed bool
	err    error
}

// NewReader creates a Reader over src. Seeking and recovery need src to
// implement io.Seeker; plain forward reading does not.
//
// The source is borrowed: Close releases the reader but does not close
// it.
func NewReader(src io.Reader, opts ...ReaderOption) (*Reader, error) {
	opt := defaultReaderOptions()

	for _, o := range opts {
		if err := o(&opt); err != nil {
			return nil, err
		}
	}

	buffered := stream.NewBufferedReader(src, opt.BufferSize)

	return &Reader{
		opt:    opt,
		src:    buffered,
		blocks: block.NewReader(buffered),
	}, nil
}

// ReadRecord returns the next record, or io.EOF after the last one.
//
// The returned bytes stay valid until the reader moves past the record's
// chunk; callers keeping records long-term should copy them.
//
//nolint:gocognit
func (r *Reader) ReadRecord() ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: %w", base.ErrUsage, ErrClosed)
	}

	if r.err != nil {
		return nil, r.err
	}

	for {
		if r.dec != nil {
			if record, ok := r.dec.Next(); ok {
				return record, nil
			}

			r.dec = nil
		}

		if r.blocks.AtEOF() {
			return nil, io.EOF
		}

		c, begin, err := r.blocks.ReadChunk()
		if err != nil {
			if rerr := r.recover(begin, err); rerr != nil {
				return nil, r.fail(rerr)
			}

			continue
		}

		dec, err := chunk.NewDecoder(&c)
		if err != nil {
			if rerr := r.recover(begin, err); rerr != nil {
				return nil, r.fail(rerr)
			}

			continue
		}

		r.dec = dec
		r.chunkBegin = begin
	}
}

// recover realigns the reader after a corrupt or truncated chunk. It
// returns nil when reading can continue at a new chunk, or the error to
// surface.
func (r *Reader) recover(begin uint64, cause error) error {
	if !r.opt.Recovery {
		return cause
	}

	if !errors.Is(cause, base.ErrFormat) && !errors.Is(cause, base.ErrTruncated) {
		return cause
	}

	r.recovered++
	r.dec = nil

	r.opt.Logger.Warn("skipping corrupt region",
		zap.Uint64("chunk_begin", begin),
		zap.Uint64("recovered_so_far", r.recovered),
		zap.Error(cause),
	)

	// when the chunk's extent was known (the body was fully consumed
	// before its hash failed), the next chunk begins right here
	if pos := r.blocks.Pos(); pos > begin {
		if ok, err := r.blocks.ProbeChunk(pos); err == nil && ok {
			return nil
		}
	}

	next, err := r.blocks.Resync(begin + 1)
	if err != nil {
		// no valid block header before the end of the file: surface
		// what started the recovery
		return cause
	}

	r.opt.Logger.Debug("resynchronized", zap.Uint64("chunk_begin", next))

	return nil
}

// Position returns the position of the next record to be read. Between
// chunks it points at the upcoming chunk with index zero.
func (r *Reader) Position() RecordPosition {
	if r.dec != nil && r.dec.Index() < r.dec.NumRecords() {
		return RecordPosition{ChunkBegin: r.chunkBegin, RecordIndex: r.dec.Index()}
	}

	return RecordPosition{ChunkBegin: r.blocks.Pos()}
}

// Seek positions the reader exactly at pos, so the next ReadRecord
// returns the record pos identifies. The record index is clamped to the
// chunk's record count.
func (r *Reader) Seek(pos RecordPosition) error {
	if r.closed {
		return fmt.Errorf("%w: %w", base.ErrUsage, ErrClosed)
	}

	if r.err != nil {
		return r.err
	}

	if err := r.blocks.SeekToChunk(pos.ChunkBegin); err != nil {
		return r.fail(err)
	}

	r.dec = nil

	c, begin, err := r.blocks.ReadChunk()
	if err != nil {
		return r.fail(err)
	}

	dec, err := chunk.NewDecoder(&c)
	if err != nil {
		return r.fail(err)
	}

	dec.SetIndex(pos.RecordIndex)

	r.dec = dec
	r.chunkBegin = begin

	return nil
}

// SeekNumeric positions the reader near the record whose Numeric
// projection is n. The projection is order-preserving but not
// one-to-one, so the landing point is approximate: within the chunk
// covering n, at the record itself whenever chunk bodies are at least as
// large as their record counts. Block headers make the alignment O(1) in
// the file size.
func (r *Reader) SeekNumeric(n uint64) error {
	if r.closed {
		return fmt.Errorf("%w: %w", base.ErrUsage, ErrClosed)
	}

	if r.err != nil {
		return r.err
	}

	size, err := r.src.Size()
	if err != nil {
		return r.fail(err)
	}

	if size == 0 {
		return nil
	}

	target := n
	if target >= size {
		target = size - 1
	}

	begin, err := r.blocks.PreviousChunkAt(target)
	if err != nil {
		return r.fail(err)
	}

	r.dec = nil

	for {
		if err := r.blocks.SeekToChunk(begin); err != nil {
			return r.fail(err)
		}

		c, _, err := r.blocks.ReadChunk()
		if err != nil {
			return r.fail(err)
		}

		nextBegin := r.blocks.Pos()

		if n < nextBegin || r.blocks.AtEOF() {
			dec, err := chunk.NewDecoder(&c)
			if err != nil {
				return r.fail(err)
			}

			dec.SetIndex(n - min(n, begin))

			r.dec = dec
			r.chunkBegin = begin

			return nil
		}

		begin = nextBegin
	}
}

// Recovered returns the number of corrupt regions recovery has skipped.
func (r *Reader) Recovered() uint64 {
	return r.recovered
}

// Close releases the reader. The source io.Reader is borrowed and stays
// open.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true
	r.dec = nil

	if r.recovered > 0 {
		r.opt.Logger.Debug("closed record reader after recovery", zap.Uint64("recovered", r.recovered))
	}

	return r.src.Close()
}

func (r *Reader) fail(err error) error {
	if r.err == nil {
		r.err = err
	}

	return r.err
}
