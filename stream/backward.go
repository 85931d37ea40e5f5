// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package stream

import (
	"github.com/jimsdog/riegeli/chain"
)

// BackwardWriter is a byte sink written back to front: each write lands
// in front of the previous one. Encoders use it to emit variable-length
// framing, writing a body first and prepending its length prefix once the
// size is known.
//
// A BackwardWriter supports neither seeking nor flushing; Chain
// materializes the result in forward order.
type BackwardWriter struct {
	state

	// completed lower-addressed regions, most recently written first
	dest chain.Chain

	// window buffer; buf[cursor:] is written, cursor descends
	buf    []byte
	cursor int

	size uint64
}

// NewBackwardWriter creates an empty BackwardWriter.
func NewBackwardWriter() *BackwardWriter {
	return &BackwardWriter{}
}

// Pos returns the number of bytes written so far.
func (w *BackwardWriter) Pos() uint64 {
	return w.size
}

// Healthy reports whether the writer has not failed.
func (w *BackwardWriter) Healthy() bool { return w.healthy() }

// Err returns the latched failure, or nil.
func (w *BackwardWriter) Err() error { return w.err }

// Fail latches err as the writer failure.
func (w *BackwardWriter) Fail(err error) error {
	w.buf = nil
	w.cursor = 0
	w.dest.Reset()

	return w.fail(err)
}

// publish moves the filled part of the window to the front of the result.
func (w *BackwardWriter) publish() {
	if w.cursor == len(w.buf) {
		return
	}

	w.dest.PrependBlock(w.buf[w.cursor:])
	w.buf = nil
	w.cursor = 0
}

// Push makes the window hold space for at least min more bytes and
// returns it; bytes are written into its tail and committed with Advance.
func (w *BackwardWriter) Push(min int) ([]byte, error) {
	if !w.healthy() {
		return nil, w.err
	}

	if w.closed {
		return nil, w.failClosed()
	}

	if w.cursor < min {
		w.publish()

		size := nextBufferSize(int(w.size), min)
		w.buf = make([]byte, size)
		w.cursor = size
	}

	return w.buf[:w.cursor], nil
}

// Advance commits n bytes written at the end of the window returned by
// Push.
func (w *BackwardWriter) Advance(n int) {
	w.cursor -= n
	w.size += uint64(n)
}

// Prepend writes p in front of everything written so far.
func (w *BackwardWriter) Prepend(p []byte) error {
	if !w.healthy() {
		return w.err
	}

	if w.closed {
		return w.failClosed()
	}

	if len(p) <= w.cursor && len(p) <= maxBytesToCopy {
		copy(w.buf[w.cursor-len(p):], p)
		w.cursor -= len(p)
		w.size += uint64(len(p))

		return nil
	}

	return w.prependSlow(p)
}

func (w *BackwardWriter) prependSlow(p []byte) error {
	if len(p) > maxBytesToCopy {
		w.publish()
		w.dest.Prepend(p)
		w.size += uint64(len(p))

		return nil
	}

	window, err := w.Push(len(p))
	if err != nil {
		return err
	}

	copy(window[len(window)-len(p):], p)
	w.cursor -= len(p)
	w.size += uint64(len(p))

	return nil
}

// PrependByte writes a single byte in front of everything written so far.
func (w *BackwardWriter) PrependByte(b byte) error {
	if w.healthy() && !w.closed && w.cursor > 0 {
		w.cursor--
		w.buf[w.cursor] = b
		w.size++

		return nil
	}

	return w.Prepend([]byte{b})
}

// PrependChain splices c in front of everything written so far.
func (w *BackwardWriter) PrependChain(c *chain.Chain) error {
	if !w.healthy() {
		return w.err
	}

	if w.closed {
		return w.failClosed()
	}

	w.publish()
	w.dest.PrependChain(c)
	w.size += uint64(c.Size())

	return nil
}

// Chain closes the writer and returns the written bytes in forward order.
func (w *BackwardWriter) Chain() (chain.Chain, error) {
	if w.closed {
		return chain.Chain{}, w.err
	}

	w.closed = true

	if w.healthy() {
		w.publish()
	}

	return w.dest, w.err
}

// Close implements the usual stream close; the result is discarded.
func (w *BackwardWriter) Close() error {
	_, err := w.Chain()

	return err
}
