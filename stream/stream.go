// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package stream provides the byte sink and source abstractions of the
// record container.
//
// A Writer is a forward byte sink, a Reader a forward byte source, and a
// BackwardWriter a sink whose cursor descends so that length prefixes can
// be written after their bodies. All three expose a direct buffer window,
// so hot paths copy bytes without per-byte dispatch and fall back to the
// implementation only when the window is exhausted.
//
// Streams latch errors: once a stream failed, every further operation is
// a no-op returning the original failure, and the window collapses so
// that writes cannot silently appear to succeed.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/chain"
)

// maxBytesToCopy is the largest write that is copied through the window;
// larger writes are handed to the implementation in one piece.
const maxBytesToCopy = 0xff

// ErrClosed is returned by operations on a closed stream.
var ErrClosed = errors.New("stream already closed")

// Writer is a forward byte sink.
//
// Writers are single-threaded. Close is idempotent and must be called for
// buffered bytes and codec terminators to reach the destination.
type Writer interface {
	// Write appends p to the stream. It either consumes all of p or
	// fails the stream.
	Write(p []byte) error

	// WriteByte appends a single byte.
	WriteByte(b byte) error

	// Push makes the window hold space for at least min more bytes,
	// flushing as needed, and returns the writable window. Bytes written
	// into the window are committed with Advance.
	Push(min int) ([]byte, error)

	// Advance commits n bytes previously written into the window
	// returned by Push.
	Advance(n int)

	// Pos returns the number of bytes committed to the stream so far.
	Pos() uint64

	// Flush pushes buffered bytes towards the destination with the given
	// persistence.
	Flush(kind base.FlushKind) error

	// Fail latches err as the stream failure; on an already unhealthy
	// stream it is ignored. Returns the latched error.
	Fail(err error) error

	// Err returns the latched failure, or nil.
	Err() error

	// Healthy reports whether the stream has not failed.
	Healthy() bool

	// Close flushes and releases the stream. Only the first call has an
	// effect; it returns the latched error if any.
	Close() error
}

// Reader is a forward byte source.
type Reader interface {
	// ReadFull reads exactly len(p) bytes. If the source ends first the
	// stream fails with base.ErrTruncated.
	ReadFull(p []byte) error

	// Pull makes bytes available in the window, at least min of them
	// when the implementation can do so cheaply, and returns the
	// readable window. The window may be shorter than min; an empty
	// window comes with a non-nil error, io.EOF at the definite end of
	// the source. Bytes in the window are consumed with Advance.
	Pull(min int) ([]byte, error)

	// Advance consumes n bytes of the window returned by Pull.
	Advance(n int)

	// Skip discards n bytes.
	Skip(n uint64) error

	// Pos returns the number of bytes consumed from the source so far.
	Pos() uint64

	// HopeForMore hints whether an empty source may grow (live tailing)
	// rather than being at its definite end.
	HopeForMore() bool

	// SupportsRandomAccess reports whether Seek may be used.
	SupportsRandomAccess() bool

	// Seek repositions the source at pos, counted from its start.
	Seek(pos uint64) error

	// Fail latches err as the stream failure; Err and Healthy mirror the
	// Writer contract.
	Fail(err error) error

	// Err returns the latched failure, or nil.
	Err() error

	// Healthy reports whether the stream has not failed.
	Healthy() bool

	// Close releases the source. Only the first call has an effect.
	Close() error
}

// WriteChain writes a chain to w block by block, bypassing the window for
// blocks too large to be worth copying.
func WriteChain(w Writer, c *chain.Chain) error {
	for _, b := range c.Blocks() {
		if err := w.Write(b); err != nil {
			return err
		}
	}

	return nil
}

// ReadChain reads n bytes from r into dest.
func ReadChain(r Reader, dest *chain.Chain, n uint64) error {
	for n > 0 {
		want := min(n, maxBlockRead)

		window, err := r.Pull(int(want))
		if len(window) == 0 {
			if err == nil || err == io.EOF {
				err = fmt.Errorf("%w: source ended inside a read of %d bytes", base.ErrTruncated, n)
			}

			return r.Fail(err)
		}

		take := min(uint64(len(window)), n)

		dest.Append(window[:take])
		r.Advance(int(take))
		n -= take
	}

	return nil
}

// maxBlockRead bounds one Pull while reading a chain, so that huge bodies
// do not force huge windows.
const maxBlockRead = 65536

// wrapIO classifies err as an I/O failure unless it already carries a
// semantic kind from a lower layer.
func wrapIO(err error) error {
	if base.HasKind(err) {
		return err
	}

	return fmt.Errorf("%w: %w", base.ErrIO, err)
}

// state carries the health flag shared by all stream shapes.
type state struct {
	err    error
	closed bool
}

func (s *state) healthy() bool {
	return s.err == nil
}

func (s *state) fail(err error) error {
	if s.err != nil {
		// attempts to fail an unhealthy stream are ignored
		return s.err
	}

	if err == nil {
		err = base.ErrIO
	}

	s.err = err

	return s.err
}

func (s *state) failClosed() error {
	return s.fail(fmt.Errorf("%w: %w", base.ErrUsage, ErrClosed))
}
