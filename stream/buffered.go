// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package stream

import (
	"fmt"
	"io"

	"github.com/jimsdog/riegeli/base"
)

// DefaultBufferSize is the working buffer size of buffered streams when
// no explicit size is configured.
const DefaultBufferSize = 65536

// Syncer is implemented by destinations that can persist buffered bytes
// to stable storage, e.g. *os.File.
type Syncer interface {
	Sync() error
}

// BufferedWriter is a Writer in front of an io.Writer.
type BufferedWriter struct {
	state

	dest io.Writer

	buf    []byte
	cursor int

	// bytes flushed to dest, excluding the open window
	flushed uint64
}

// NewBufferedWriter creates a Writer in front of dest with the given
// working buffer size; size <= 0 selects DefaultBufferSize.
func NewBufferedWriter(dest io.Writer, size int) *BufferedWriter {
	if size <= 0 {
		size = DefaultBufferSize
	}

	return &BufferedWriter{
		dest: dest,
		buf:  make([]byte, size),
	}
}

// Pos implements Writer.
func (w *BufferedWriter) Pos() uint64 {
	return w.flushed + uint64(w.cursor)
}

// Healthy implements Writer.
func (w *BufferedWriter) Healthy() bool { return w.healthy() }

// Err implements Writer.
func (w *BufferedWriter) Err() error { return w.err }

// Fail implements Writer.
func (w *BufferedWriter) Fail(err error) error {
	w.buf = nil
	w.cursor = 0

	return w.fail(err)
}

// flushBuffer writes the filled window to the destination.
func (w *BufferedWriter) flushBuffer() error {
	if w.cursor == 0 {
		return nil
	}

	n, err := w.dest.Write(w.buf[:w.cursor])
	if err != nil {
		return w.Fail(wrapIO(err))
	}

	if n < w.cursor {
		return w.Fail(fmt.Errorf("%w: short write: %d of %d bytes", base.ErrIO, n, w.cursor))
	}

	w.flushed += uint64(w.cursor)
	w.cursor = 0

	return nil
}

// Push implements Writer.
func (w *BufferedWriter) Push(min int) ([]byte, error) {
	if !w.healthy() {
		return nil, w.err
	}

	if w.closed {
		return nil, w.failClosed()
	}

	if len(w.buf)-w.cursor < min {
		if err := w.flushBuffer(); err != nil {
			return nil, err
		}

		if len(w.buf) < min {
			w.buf = make([]byte, min)
		}
	}

	return w.buf[w.cursor:], nil
}

// Advance implements Writer.
func (w *BufferedWriter) Advance(n int) {
	w.cursor += n
}

// Write implements Writer.
func (w *BufferedWriter) Write(p []byte) error {
	if !w.healthy() {
		return w.err
	}

	if w.closed {
		return w.failClosed()
	}

	if len(p) <= len(w.buf)-w.cursor && len(p) <= maxBytesToCopy {
		w.cursor += copy(w.buf[w.cursor:], p)

		return nil
	}

	return w.writeSlow(p)
}

func (w *BufferedWriter) writeSlow(p []byte) error {
	// anything not worth buffering goes straight to the destination
	if len(p) >= len(w.buf) {
		if err := w.flushBuffer(); err != nil {
			return err
		}

		n, err := w.dest.Write(p)
		if err != nil {
			return w.Fail(wrapIO(err))
		}

		if n < len(p) {
			return w.Fail(fmt.Errorf("%w: short write: %d of %d bytes", base.ErrIO, n, len(p)))
		}

		w.flushed += uint64(len(p))

		return nil
	}

	for len(p) > 0 {
		if len(w.buf) == w.cursor {
			if err := w.flushBuffer(); err != nil {
				return err
			}
		}

		n := copy(w.buf[w.cursor:], p)
		w.cursor += n
		p = p[n:]
	}

	return nil
}

// WriteByte implements Writer.
func (w *BufferedWriter) WriteByte(b byte) error {
	if w.healthy() && !w.closed && w.cursor < len(w.buf) {
		w.buf[w.cursor] = b
		w.cursor++

		return nil
	}

	window, err := w.Push(1)
	if err != nil {
		return err
	}

	window[0] = b
	w.cursor++

	return nil
}

// Flush implements Writer. FlushFromMachine additionally syncs the
// destination when it supports it.
func (w *BufferedWriter) Flush(kind base.FlushKind) error {
	if !w.healthy() {
		return w.err
	}

	if w.closed {
		return w.failClosed()
	}

	if err := w.flushBuffer(); err != nil {
		return err
	}

	if kind == base.FlushFromMachine {
		if s, ok := w.dest.(Syncer); ok {
			if err := s.Sync(); err != nil {
				return w.Fail(wrapIO(err))
			}
		}
	}

	return nil
}

// Close implements Writer. The destination io.Writer is borrowed and is
// not closed.
func (w *BufferedWriter) Close() error {
	if w.closed {
		return w.err
	}

	if w.healthy() {
		w.flushBuffer() //nolint:errcheck // the latched error is returned below
	}

	w.closed = true
	w.buf = nil
	w.cursor = 0

	return w.err
}
