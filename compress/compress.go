// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package compress provides the compressing sinks and decompressing
// sources of the record container.
//
// Codecs are streaming engines with well-defined end-of-frame semantics:
// a compressor accepts arbitrary input and emits a terminator on close, a
// decompressor reports end-of-frame, corruption, or the wish for more
// input. The package wraps them as stream.Writer/stream.Reader and also
// offers whole-buffer helpers for the chunk encoders, which compress each
// chunk independently so parallel encoding stays deterministic.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/jimsdog/riegeli/base"
)

// Type identifies a codec. The values are the on-disk markers chunk
// bodies use to name the codec of their sections.
type Type byte

const (
	// None stores bytes without compression.
	None Type = 0

	// Brotli selects the brotli codec, levels 0..11.
	Brotli Type = 'b'

	// Zstd selects the zstd codec, levels 1..22.
	Zstd Type = 'z'

	// Zlib selects the zlib codec, window bits 9..15.
	Zlib Type = 'g'
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Brotli:
		return "brotli"
	case Zstd:
		return "zstd"
	case Zlib:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(t))
	}
}

// Options tunes a codec.
type Options struct {
	// Level is the compression level: 0..11 for brotli, 1..22 for zstd,
	// 1..9 for zlib. Zero selects the codec default.
	Level int

	// WindowBits bounds the zlib window, 9..15. Zero selects the
	// default.
	WindowBits int

	// SizeHint is the expected uncompressed size. It is only a tuning
	// hint, never a contract.
	SizeHint uint64
}

// Default levels per codec.
const (
	DefaultBrotliLevel = 6
	DefaultZstdLevel   = 3
	DefaultZlibLevel   = 6

	minZlibWindowBits = 9
	maxZlibWindowBits = 15
)

// Validate checks t and opts against the supported ranges.
func Validate(t Type, opts Options) error {
	switch t {
	case None:
		return nil
	case Brotli:
		if opts.Level < 0 || opts.Level > 11 {
			return fmt.Errorf("%w: brotli level must be in 0..11: %d", base.ErrUsage, opts.Level)
		}
	case Zstd:
		if opts.Level < 0 || opts.Level > 22 {
			return fmt.Errorf("%w: zstd level must be in 1..22: %d", base.ErrUsage, opts.Level)
		}
	case Zlib:
		if opts.Level < 0 || opts.Level > 9 {
			return fmt.Errorf("%w: zlib level must be in 1..9: %d", base.ErrUsage, opts.Level)
		}

		if opts.WindowBits != 0 && (opts.WindowBits < minZlibWindowBits || opts.WindowBits > maxZlibWindowBits) {
			return fmt.Errorf("%w: zlib window bits must be in %d..%d: %d",
				base.ErrUsage, minZlibWindowBits, maxZlibWindowBits, opts.WindowBits)
		}
	default:
		return fmt.Errorf("%w: unknown codec %#x", base.ErrUsage, byte(t))
	}

	return nil
}

func (o Options) brotliLevel() int {
	if o.Level == 0 {
		return DefaultBrotliLevel
	}

	return o.Level
}

func (o Options) zstdLevel() zstd.EncoderLevel {
	level := o.Level
	if level == 0 {
		level = DefaultZstdLevel
	}

	return zstd.EncoderLevelFromZstd(level)
}

func (o Options) zlibLevel() int {
	if o.Level == 0 {
		return DefaultZlibLevel
	}

	return o.Level
}

// newEncoder creates a streaming compressor writing its frame to dest.
func newEncoder(dest io.Writer, t Type, opts Options) (frameWriter, error) {
	switch t {
	case None:
		return nopFrameWriter{dest}, nil
	case Brotli:
		return brotli.NewWriterLevel(dest, opts.brotliLevel()), nil
	case Zstd:
		zopts := []zstd.EOption{
			zstd.WithEncoderLevel(opts.zstdLevel()),
			// one goroutine per encoder keeps output independent of
			// scheduling, which the container format requires
			zstd.WithEncoderConcurrency(1),
		}

		return zstd.NewWriter(dest, zopts...)
	case Zlib:
		return zlib.NewWriterLevel(dest, opts.zlibLevel())
	default:
		return nil, fmt.Errorf("%w: unknown codec %#x", base.ErrUsage, byte(t))
	}
}

// newDecoder creates a streaming decompressor over one frame read from
// src.
func newDecoder(src io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case None:
		return io.NopCloser(src), nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(src)), nil
	case Zstd:
		dec, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}

		return &zstdReadCloser{dec}, nil
	case Zlib:
		return zlib.NewReader(src)
	default:
		return nil, fmt.Errorf("%w: unknown codec %#x", base.ErrUsage, byte(t))
	}
}

// frameWriter is the streaming compressor contract: Flush produces a
// restart point for readers, Close emits the frame terminator.
type frameWriter interface {
	io.Writer
	Flush() error
	Close() error
}

type nopFrameWriter struct {
	io.Writer
}

func (nopFrameWriter) Flush() error { return nil }
func (nopFrameWriter) Close() error { return nil }

type zstdReadCloser struct {
	dec *zstd.Decoder
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()

	return nil
}

// CompressAll compresses src as one complete frame.
func CompressAll(t Type, opts Options, src []byte) ([]byte, error) {
	if t == None {
		return src, nil
	}

	var out bytes.Buffer
	out.Grow(len(src)/2 + 64)

	enc, err := newEncoder(&out, t, opts)
	if err != nil {
		return nil, err
	}

	if _, err := enc.Write(src); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", base.ErrIO, t, err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", base.ErrIO, t, err)
	}

	return out.Bytes(), nil
}

// DecompressAll decompresses one complete frame.
func DecompressAll(t Type, src []byte) ([]byte, error) {
	if t == None {
		return src, nil
	}

	dec, err := newDecoder(bytes.NewReader(src), t)
	if err != nil {
		return nil, mapDecodeError(err)
	}
	defer dec.Close() //nolint:errcheck // read errors are reported below

	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, mapDecodeError(err)
	}

	return out, nil
}

// mapDecodeError translates codec outcomes into the container error
// kinds: a frame ending before its terminator is truncation, everything
// else the codec complains about is a corrupt frame.
func mapDecodeError(err error) error {
	if base.HasKind(err) {
		return err
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: compressed frame ended early", base.ErrTruncated)
	}

	return fmt.Errorf("%w: corrupt compressed frame: %w", base.ErrFormat, err)
}
