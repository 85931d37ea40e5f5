// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/jimsdog/riegeli/compress"
)

// WriterOptions defines settings for Writer.
type WriterOptions struct {
	// Compression selects the codec of the chunk bodies.
	Compression compress.Type

	// CompressionLevel tunes the codec: 0..11 for brotli, 1..22 for
	// zstd, 1..9 for zlib. Zero selects the codec default.
	CompressionLevel int

	// BufferSize is the working buffer of the file sink.
	BufferSize int

	// SizeHint is the expected total file size. It does not reach the
	// codecs: the chunk encoders tune each codec with the raw size of the
	// chunk being compressed instead.
	SizeHint uint64

	// ChunkSize is the target byte budget of a pending chunk; a chunk is
	// dispatched for encoding once its raw records reach it.
	ChunkSize uint64

	// Parallelism is the number of encoder workers; 0 encodes
	// synchronously on the caller's goroutine.
	Parallelism int

	// Transpose selects the columnar record encoder.
	Transpose bool

	Logger *zap.Logger
}

// maxChunkRecords caps the records of one chunk regardless of ChunkSize,
// so decode buffers stay proportionate.
const maxChunkRecords = 1 << 18

// defaultWriterOptions returns default initial values.
func defaultWriterOptions() WriterOptions {
	return WriterOptions{
		Compression:      compress.Brotli,
		CompressionLevel: compress.DefaultBrotliLevel,
		BufferSize:       65536,
		ChunkSize:        1 << 20,
		Parallelism:      0,
		Logger:           zap.NewNop(),
	}
}

// WriterOption allows setting Writer options.
type WriterOption func(*WriterOptions) error

// WithCompression selects the codec and level for chunk bodies. Level 0
// selects the codec default.
func WithCompression(codec compress.Type, level int) WriterOption {
	return func(opt *WriterOptions) error {
		if err := compress.Validate(codec, compress.Options{Level: level}); err != nil {
			return err
		}

		opt.Compression = codec
		opt.CompressionLevel = level

		return nil
	}
}

// WithoutCompression stores chunk bodies verbatim.
func WithoutCompression() WriterOption {
	return func(opt *WriterOptions) error {
		opt.Compression = compress.None
		opt.CompressionLevel = 0

		return nil
	}
}

// WithBufferSize sets the working buffer size of the file sink.
func WithBufferSize(size int) WriterOption {
	return func(opt *WriterOptions) error {
		if size <= 0 {
			return fmt.Errorf("buffer size should be positive: %d", size)
		}

		opt.BufferSize = size

		return nil
	}
}

// WithSizeHint records the expected total file size. It is a hint, never
// a contract; the chunk encoders tune each codec with the raw size of the
// chunk being compressed, so this value does not change the codec
// settings.
func WithSizeHint(size uint64) WriterOption {
	return func(opt *WriterOptions) error {
		opt.SizeHint = size

		return nil
	}
}

// WithChunkSize sets the target byte budget of a pending chunk.
func WithChunkSize(size uint64) WriterOption {
	return func(opt *WriterOptions) error {
		if size == 0 {
			return fmt.Errorf("chunk size should be positive: %d", size)
		}

		opt.ChunkSize = size

		return nil
	}
}

// WithParallelism sets the number of encoder workers; 0 encodes
// synchronously. The file bytes do not depend on the worker count, only
// the throughput does.
func WithParallelism(workers int) WriterOption {
	return func(opt *WriterOptions) error {
		if workers < 0 {
			return fmt.Errorf("parallelism should be non-negative: %d", workers)
		}

		if workers > 8*runtime.NumCPU() {
			return fmt.Errorf("parallelism %d is unreasonable for %d CPUs", workers, runtime.NumCPU())
		}

		opt.Parallelism = workers

		return nil
	}
}

// WithTranspose selects the columnar record encoder.
func WithTranspose() WriterOption {
	return func(opt *WriterOptions) error {
		opt.Transpose = true

		return nil
	}
}

// WithLogger sets the logger for Writer.
func WithLogger(logger *zap.Logger) WriterOption {
	return func(opt *WriterOptions) error {
		opt.Logger = logger

		return nil
	}
}

// ReaderOptions defines settings for Reader.
type ReaderOptions struct {
	// BufferSize is the working buffer of the file source.
	BufferSize int

	// Recovery makes the reader resynchronize after corrupt or
	// truncated chunks instead of failing, skipping as little as one
	// chunk.
	Recovery bool

	Logger *zap.Logger
}

// defaultReaderOptions returns default initial values.
func defaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		BufferSize: 65536,
		Recovery:   false,
		Logger:     zap.NewNop(),
	}
}

// ReaderOption allows setting Reader options.
type ReaderOption func(*ReaderOptions) error

// WithReaderBufferSize sets the working buffer size of the file source.
func WithReaderBufferSize(size int) ReaderOption {
	return func(opt *ReaderOptions) error {
		if size <= 0 {
			return fmt.Errorf("buffer size should be positive: %d", size)
		}

		opt.BufferSize = size

		return nil
	}
}

// WithRecovery makes the reader skip corrupt regions by realigning on
// block headers.
func WithRecovery() ReaderOption {
	return func(opt *ReaderOptions) error {
		opt.Recovery = true

		return nil
	}
}

// WithReaderLogger sets the logger for Reader.
func WithReaderLogger(logger *zap.Logger) ReaderOption {
	return func(opt *ReaderOptions) error {
		opt.Logger = logger

		return nil
	}
}
