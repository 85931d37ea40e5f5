// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compress

import (
	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/stream"
)

// Writer is a compressing byte sink: bytes written to it come out of dest
// as one compressed frame. Pos reports uncompressed positions.
//
// The writer owns its codec handle; Close terminates the frame and, when
// the destination is owned, closes it too.
type Writer struct {
	*stream.BufferedWriter

	codec    frameWriter
	dest     stream.Writer
	ownsDest bool
	closed   bool
}

// sinkAdapter presents a stream.Writer as an io.Writer for the codec.
type sinkAdapter struct {
	dest stream.Writer
}

func (a sinkAdapter) Write(p []byte) (int, error) {
	if err := a.dest.Write(p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// NewWriter creates a compressing sink in front of dest. When ownsDest is
// true, closing the writer closes dest as well.
func NewWriter(dest stream.Writer, t Type, opts Options, ownsDest bool) (*Writer, error) {
	if err := Validate(t, opts); err != nil {
		return nil, err
	}

	codec, err := newEncoder(sinkAdapter{dest}, t, opts)
	if err != nil {
		return nil, err
	}

	bufferSize := 0
	if opts.SizeHint > 0 && opts.SizeHint < stream.DefaultBufferSize {
		bufferSize = int(opts.SizeHint)
	}

	return &Writer{
		BufferedWriter: stream.NewBufferedWriter(codec, bufferSize),
		codec:          codec,
		dest:           dest,
		ownsDest:       ownsDest,
	}, nil
}

// Flush pushes buffered bytes through the codec and asks it for a sync
// point, so a reader of the bytes flushed so far sees a valid restart
// point.
func (w *Writer) Flush(kind base.FlushKind) error {
	if err := w.BufferedWriter.Flush(kind); err != nil {
		return err
	}

	if err := w.codec.Flush(); err != nil {
		return w.Fail(err)
	}

	return w.dest.Flush(kind)
}

// Close terminates the compressed frame, then releases the destination.
func (w *Writer) Close() error {
	if w.closed {
		return w.Err()
	}

	w.closed = true

	err := w.BufferedWriter.Close()

	if err == nil {
		if cerr := w.codec.Close(); cerr != nil {
			err = w.Fail(cerr)
		}
	} else {
		// release the codec handle even on the failure path
		w.codec.Close() //nolint:errcheck
	}

	if w.ownsDest {
		if cerr := w.dest.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}
