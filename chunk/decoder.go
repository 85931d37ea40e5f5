// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/compress"
	"github.com/jimsdog/riegeli/stream"
)

// Decoder yields the records of a decoded chunk. It supports random
// access by record index, which the positioned reader uses to fast-skip
// inside a chunk after a seek.
type Decoder struct {
	// offsets[i] is the start of record i in values; len(offsets) is
	// NumRecords()+1
	offsets []uint64
	values  []byte

	index uint64
}

// NewDecoder decodes the body of c.
func NewDecoder(c *Chunk) (*Decoder, error) {
	if c.Header.NumRecords == 0 && c.Header.DataSize == 0 {
		// signature or padding chunk, nothing to decode
		return &Decoder{offsets: []uint64{0}}, nil
	}

	d, err := decodeBody(c)
	if err != nil {
		if !errors.Is(err, base.ErrFormat) && !errors.Is(err, base.ErrLimit) {
			// a body that ends early or fails to decode is corrupt: the
			// container already delivered as many bytes as the header
			// promised
			err = fmt.Errorf("%w: %w", base.ErrFormat, err)
		}

		return nil, err
	}

	return d, nil
}

// Decode-side sanity limits. Headers are hash-authenticated, but the
// hash key is public, so field values still get bounded before they size
// allocations.
const (
	maxDecodeRecords   = 1 << 32
	maxDecodedBodySize = 1 << 40
)

//nolint:gocognit
func decodeBody(c *Chunk) (*Decoder, error) {
	if c.Header.NumRecords > maxDecodeRecords {
		return nil, fmt.Errorf("%w: chunk claims %d records", base.ErrLimit, c.Header.NumRecords)
	}

	if c.Header.DecodedDataSize > maxDecodedBodySize {
		return nil, fmt.Errorf("%w: chunk claims %d decoded bytes", base.ErrLimit, c.Header.DecodedDataSize)
	}

	r := stream.NewChainReader(&c.Data)

	layout, err := readByte(r)
	if err != nil {
		return nil, err
	}

	if layout != layoutSimple && layout != layoutTranspose {
		return nil, fmt.Errorf("%w: unknown chunk body layout %#x", base.ErrFormat, layout)
	}

	codecByte, err := readByte(r)
	if err != nil {
		return nil, err
	}

	codec := compress.Type(codecByte)

	compressedSizesLen, err := readUvarint(r)
	if err != nil {
		return nil, err
	}

	if compressedSizesLen > c.Header.DataSize {
		return nil, fmt.Errorf("%w: sizes section of %d bytes exceeds chunk body", base.ErrFormat, compressedSizesLen)
	}

	compressedSizes := make([]byte, compressedSizesLen)
	if err := r.ReadFull(compressedSizes); err != nil {
		return nil, err
	}

	sizesBuf, err := compress.DecompressAll(codec, compressedSizes)
	if err != nil {
		return nil, err
	}

	offsets, err := parseSizes(layout, sizesBuf, c.Header.NumRecords)
	if err != nil {
		return nil, err
	}

	if offsets[len(offsets)-1] != c.Header.DecodedDataSize {
		return nil, fmt.Errorf("%w: record sizes sum to %d, header promises %d",
			base.ErrFormat, offsets[len(offsets)-1], c.Header.DecodedDataSize)
	}

	values, err := readValues(r, codec, c.Header.DecodedDataSize)
	if err != nil {
		return nil, err
	}

	return &Decoder{offsets: offsets, values: values}, nil
}

// parseSizes converts the decompressed sizes section into record offsets.
func parseSizes(layout byte, sizesBuf []byte, numRecords uint64) ([]uint64, error) {
	offsets := make([]uint64, 1, numRecords+1)

	switch layout {
	case layoutSimple:
		rest := sizesBuf

		for i := uint64(0); i < numRecords; i++ {
			size, n := binary.Uvarint(rest)
			if n <= 0 {
				return nil, fmt.Errorf("%w: sizes section ends after %d of %d records", base.ErrFormat, i, numRecords)
			}

			rest = rest[n:]
			offsets = append(offsets, offsets[i]+size)
		}

		if len(rest) != 0 {
			return nil, fmt.Errorf("%w: %d stray bytes after %d record sizes", base.ErrFormat, len(rest), numRecords)
		}
	case layoutTranspose:
		if uint64(len(sizesBuf)) != numRecords*4 {
			return nil, fmt.Errorf("%w: columnar sizes section holds %d bytes for %d records", base.ErrFormat, len(sizesBuf), numRecords)
		}

		for i := uint64(0); i < numRecords; i++ {
			size := uint64(binary.LittleEndian.Uint32(sizesBuf[i*4:]))
			offsets = append(offsets, offsets[i]+size)
		}
	}

	return offsets, nil
}

// readValues streams the values section through the codec into one
// contiguous buffer, checking that the frame ends exactly at its end.
func readValues(r stream.Reader, codec compress.Type, decodedSize uint64) ([]byte, error) {
	vr, err := compress.NewReader(r, codec, 0)
	if err != nil {
		return nil, err
	}
	defer vr.Close() //nolint:errcheck // read errors are reported below

	values := make([]byte, decodedSize)
	if err := vr.ReadFull(values); err != nil {
		return nil, err
	}

	if window, err := vr.Pull(1); len(window) != 0 || (err != nil && err != io.EOF) {
		if err == nil || err == io.EOF {
			err = fmt.Errorf("%w: stray bytes after %d decoded values", base.ErrFormat, decodedSize)
		}

		return nil, err
	}

	return values, nil
}

// NumRecords returns the number of records in the chunk.
func (d *Decoder) NumRecords() uint64 {
	return uint64(len(d.offsets) - 1)
}

// Index returns the index of the next record to be read.
func (d *Decoder) Index() uint64 {
	return d.index
}

// SetIndex positions the decoder at record i, clamped to the record
// count. Skipping is O(1); the records in between are never touched.
func (d *Decoder) SetIndex(i uint64) {
	d.index = min(i, d.NumRecords())
}

// Next returns the next record, or false when the chunk is exhausted.
// The returned bytes alias the decode buffer and stay valid until the
// decoder is released.
func (d *Decoder) Next() ([]byte, bool) {
	if d.index >= d.NumRecords() {
		return nil, false
	}

	record := d.values[d.offsets[d.index]:d.offsets[d.index+1]]
	d.index++

	return record, true
}

// readByte reads a single byte from r.
func readByte(r stream.Reader) (byte, error) {
	window, err := r.Pull(1)
	if len(window) == 0 {
		if err == nil || err == io.EOF {
			err = fmt.Errorf("%w: chunk body ended early", base.ErrTruncated)
		}

		return 0, err
	}

	r.Advance(1)

	return window[0], nil
}

// readUvarint reads a varint byte by byte through the window.
func readUvarint(r stream.Reader) (uint64, error) {
	var value uint64

	for shift := uint(0); shift < 64; shift += 7 {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}

		value |= uint64(b&0x7f) << shift

		if b < 0x80 {
			return value, nil
		}
	}

	return 0, fmt.Errorf("%w: varint overflows 64 bits", base.ErrFormat)
}

