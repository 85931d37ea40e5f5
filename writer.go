// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli

import (
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/block"
	"github.com/jimsdog/riegeli/chunk"
	"github.com/jimsdog/riegeli/compress"
	"github.com/jimsdog/riegeli/stream"
)

// Writer writes a sequence of records to a container file.
//
// Records are batched into chunks by a byte budget; chunks are encoded
// (possibly by a pool of workers) and laid into the block framing in
// submission order, so the file bytes do not depend on the worker count.
//
// Writer methods must be called from one goroutine. Close must be called
// for buffered chunks to reach the destination.
type Writer struct {
	opt WriterOptions

	file    *stream.BufferedWriter
	blocks  *block.Writer
	encoder chunk.Encoder

	// the pending chunk being batched
	batch chunk.Batch

	// pl is non-nil when Parallelism >= 1
	pl *pipeline

	// closed flag (to disable writes after close)
	closed atomic.Bool

	// latched failure of the synchronous path
	err error

	chunksWritten  uint64
	recordsWritten uint64
}

// NewWriter creates a Writer writing the container format to dest.
//
// The destination is borrowed: Close flushes everything to it but does
// not close it.
func NewWriter(dest io.Writer, opts ...WriterOption) (*Writer, error) {
	opt := defaultWriterOptions()

	for _, o := range opts {
		if err := o(&opt); err != nil {
			return nil, err
		}
	}

	w := &Writer{opt: opt}

	w.file = stream.NewBufferedWriter(dest, opt.BufferSize)
	w.blocks = block.NewWriter(w.file)

	codecOpts := compress.Options{
		Level:    opt.CompressionLevel,
		SizeHint: opt.SizeHint,
	}

	if opt.Transpose {
		w.encoder = chunk.NewTransposeEncoder(opt.Compression, codecOpts)
	} else {
		w.encoder = chunk.NewSimpleEncoder(opt.Compression, codecOpts)
	}

	if opt.Parallelism >= 1 {
		w.pl = newPipeline(opt.Parallelism, w.encoder, w.emitChunk, opt.Logger)
	}

	return w, nil
}

// WriteRecord appends one record. The record bytes are copied; the
// caller may reuse the slice.
func (w *Writer) WriteRecord(record []byte) error {
	if w.closed.Load() {
		return fmt.Errorf("%w: %w", base.ErrUsage, ErrClosed)
	}

	if w.err != nil {
		return w.err
	}

	w.batch.AddRecord(record)
	w.recordsWritten++

	if w.batch.DecodedDataSize() >= w.opt.ChunkSize || w.batch.NumRecords() >= maxChunkRecords {
		return w.flushBatch()
	}

	return nil
}

// flushBatch dispatches the pending chunk for encoding.
func (w *Writer) flushBatch() error {
	if w.batch.NumRecords() == 0 {
		return nil
	}

	if w.pl != nil {
		// hand the batch to the pool; the writer starts a fresh one
		handoff := w.batch
		w.batch = chunk.Batch{}

		if err := w.pl.submit(&handoff); err != nil {
			return w.fail(err)
		}

		return nil
	}

	c, err := w.encoder.Encode(&w.batch)
	if err != nil {
		return w.fail(err)
	}

	w.batch.Reset()

	return w.emitChunk(&c)
}

// emitChunk writes one encoded chunk to the block framing. With a
// pipeline it runs on the emitter goroutine, which is the only toucher
// of the destination; without one it runs inline.
func (w *Writer) emitChunk(c *chunk.Chunk) error {
	begin, err := w.blocks.WriteChunk(c)
	if err != nil {
		return err
	}

	w.chunksWritten++

	w.opt.Logger.Debug("wrote chunk",
		zap.Uint64("chunk_begin", begin),
		zap.Uint64("num_records", c.Header.NumRecords),
		zap.Uint64("data_size", c.Header.DataSize),
		zap.Uint64("decoded_data_size", c.Header.DecodedDataSize),
	)

	return nil
}

// Pos returns the file position where the next chunk would begin. It
// lags behind WriteRecord while chunks are pending or in flight.
func (w *Writer) Pos() uint64 {
	return w.blocks.Pos()
}

// Flush dispatches the pending chunk, waits for in-flight chunks to
// drain, and flushes the destination with the given persistence.
func (w *Writer) Flush(kind base.FlushKind) error {
	if w.closed.Load() {
		return fmt.Errorf("%w: %w", base.ErrUsage, ErrClosed)
	}

	if w.err != nil {
		return w.err
	}

	if err := w.flushBatch(); err != nil {
		return err
	}

	if w.pl != nil {
		if err := w.pl.drain(); err != nil {
			return w.fail(err)
		}
	}

	return w.blocks.Flush(kind)
}

// Close is a barrier: it dispatches the pending chunk, drains the
// reorder buffer, joins all workers and flushes the destination. It
// reports the first failure of any stage, also on repeated calls.
func (w *Writer) Close() error {
	if w.closed.Swap(true) {
		return w.err
	}

	flushErr := w.flushBatch()

	if w.pl != nil {
		if err := w.pl.close(); err != nil && flushErr == nil {
			flushErr = err
		}
	}

	if err := w.blocks.Close(); err != nil && flushErr == nil {
		flushErr = err
	}

	if flushErr != nil {
		w.fail(flushErr) //nolint:errcheck // latched for repeated Close calls
	}

	w.opt.Logger.Debug("closed record writer",
		zap.Uint64("records", w.recordsWritten),
		zap.Uint64("chunks", w.chunksWritten),
		zap.Uint64("file_size", w.blocks.Pos()),
		zap.Error(w.err),
	)

	return w.err
}

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}

	return w.err
}
