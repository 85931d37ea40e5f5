// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package stream

import (
	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/chain"
)

// ChainWriter is a Writer that appends to a chain.
//
// Filled working buffers are published to the chain as whole blocks, so
// closing a ChainWriter hands its bytes over without copying them again.
type ChainWriter struct {
	state

	dest *chain.Chain

	// window buffer; buf[:cursor] is written but not yet published
	buf    []byte
	cursor int

	// bytes published to dest, excluding the open window
	published uint64
}

// NewChainWriter creates a Writer appending to dest.
func NewChainWriter(dest *chain.Chain) *ChainWriter {
	return &ChainWriter{dest: dest}
}

// Pos implements Writer.
func (w *ChainWriter) Pos() uint64 {
	return w.published + uint64(w.cursor)
}

// Healthy implements Writer.
func (w *ChainWriter) Healthy() bool { return w.healthy() }

// Err implements Writer.
func (w *ChainWriter) Err() error { return w.err }

// Fail implements Writer.
func (w *ChainWriter) Fail(err error) error {
	w.collapse()

	return w.fail(err)
}

func (w *ChainWriter) collapse() {
	w.buf = nil
	w.cursor = 0
}

// publish moves the filled part of the window into the chain.
func (w *ChainWriter) publish() {
	if w.cursor == 0 {
		return
	}

	w.dest.AppendBlock(w.buf[:w.cursor])
	w.published += uint64(w.cursor)
	w.buf = nil
	w.cursor = 0
}

// Push implements Writer.
func (w *ChainWriter) Push(min int) ([]byte, error) {
	if !w.healthy() {
		return nil, w.err
	}

	if w.closed {
		return nil, w.failClosed()
	}

	if len(w.buf)-w.cursor < min {
		w.publish()

		size := nextBufferSize(int(w.published), min)
		w.buf = make([]byte, size)
	}

	return w.buf[w.cursor:], nil
}

// Advance implements Writer.
func (w *ChainWriter) Advance(n int) {
	w.cursor += n
}

// Write implements Writer.
func (w *ChainWriter) Write(p []byte) error {
	if !w.healthy() {
		return w.err
	}

	if w.closed {
		return w.failClosed()
	}

	// fast path: the request fits in the window and is small enough to
	// be worth copying
	if len(p) <= len(w.buf)-w.cursor && len(p) <= maxBytesToCopy {
		w.cursor += copy(w.buf[w.cursor:], p)

		return nil
	}

	return w.writeSlow(p)
}

func (w *ChainWriter) writeSlow(p []byte) error {
	if len(p) > maxBytesToCopy {
		w.publish()
		w.dest.Append(p)
		w.published += uint64(len(p))

		return nil
	}

	for len(p) > 0 {
		window, err := w.Push(1)
		if err != nil {
			return err
		}

		n := copy(window, p)
		w.cursor += n
		p = p[n:]
	}

	return nil
}

// WriteByte implements Writer.
func (w *ChainWriter) WriteByte(b byte) error {
	if w.cursor < len(w.buf) {
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

// Flush publishes the window to the chain. All flush kinds behave the
// same for an in-memory destination.
func (w *ChainWriter) Flush(base.FlushKind) error {
	if !w.healthy() {
		return w.err
	}

	if w.closed {
		return w.failClosed()
	}

	w.publish()

	return nil
}

// Close implements Writer.
func (w *ChainWriter) Close() error {
	if w.closed {
		return w.err
	}

	w.closed = true

	if w.healthy() {
		w.publish()
	}

	w.collapse()

	return w.err
}

// nextBufferSize sizes a fresh window buffer geometrically in the bytes
// written so far, clamped to [minBufferSize, maxBufferSize] and never
// below the immediate need.
func nextBufferSize(written, need int) int {
	size := written
	if size < minBufferSize {
		size = minBufferSize
	}

	if size > maxBufferSize {
		size = maxBufferSize
	}

	if size < need {
		size = need
	}

	return size
}

const (
	minBufferSize = 256
	maxBufferSize = 65536
)
