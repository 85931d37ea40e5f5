// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compress

import (
	"io"

	"github.com/jimsdog/riegeli/stream"
)

// Reader is a decompressing byte source: it reads one compressed frame
// from src and yields the raw bytes. Pos reports uncompressed positions.
// Once the codec reports its end of frame, further reads see the end of
// the stream.
type Reader struct {
	*stream.BufferedReader

	codec   io.ReadCloser
	src     stream.Reader
	ownsSrc bool
	closed  bool
}

// sourceAdapter presents a stream.Reader as an io.Reader for the codec.
type sourceAdapter struct {
	src stream.Reader
}

func (a sourceAdapter) Read(p []byte) (int, error) {
	window, err := a.src.Pull(1)
	if len(window) == 0 {
		if err == nil {
			err = io.EOF
		}

		return 0, err
	}

	n := copy(p, window)
	a.src.Advance(n)

	return n, nil
}

// decodeErrReader classifies codec outcomes on the way into the window:
// end of frame stays io.EOF, an early end of the source becomes
// truncation, anything else the codec rejects is a corrupt frame.
type decodeErrReader struct {
	codec io.Reader
}

func (r decodeErrReader) Read(p []byte) (int, error) {
	n, err := r.codec.Read(p)
	if err != nil && err != io.EOF {
		err = mapDecodeError(err)
	}

	return n, err
}

// NewReader creates a decompressing source over src with the given
// working buffer size. src is borrowed: closing the reader leaves it
// open unless OwnSrc was called.
func NewReader(src stream.Reader, t Type, bufferSize int) (*Reader, error) {
	codec, err := newDecoder(sourceAdapter{src}, t)
	if err != nil {
		return nil, mapDecodeError(err)
	}

	return &Reader{
		BufferedReader: stream.NewBufferedReader(decodeErrReader{codec}, bufferSize),
		codec:          codec,
		src:            src,
	}, nil
}

// OwnSrc makes Close close the underlying source too.
func (r *Reader) OwnSrc() *Reader {
	r.ownsSrc = true

	return r
}

// HopeForMore defers to the underlying source: a compressed stream can
// grow as long as its source can.
func (r *Reader) HopeForMore() bool {
	return r.BufferedReader.HopeForMore() && r.src.HopeForMore()
}

// Close releases the codec handle, then the source if owned.
func (r *Reader) Close() error {
	if r.closed {
		return r.Err()
	}

	r.closed = true

	err := r.BufferedReader.Close()

	if cerr := r.codec.Close(); cerr != nil && err == nil {
		err = mapDecodeError(cerr)
	}

	if r.ownsSrc {
		if cerr := r.src.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}
