// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chunk

import (
	"fmt"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/chain"
	"github.com/jimsdog/riegeli/hash"
	"github.com/jimsdog/riegeli/stream"
)

// Chunk is a header plus an opaque, self-described body.
type Chunk struct {
	Header Header
	Data   chain.Chain
}

// New builds a chunk around data, filling in the sizes and hashes.
func New(data chain.Chain, numRecords, decodedDataSize uint64) Chunk {
	return Chunk{
		Header: Header{
			DataSize:        uint64(data.Size()),
			DataHash:        hash.BodyHash(&data),
			NumRecords:      numRecords,
			DecodedDataSize: decodedDataSize,
		},
		Data: data,
	}
}

// Size returns the serialized size of the chunk, header included.
func (c *Chunk) Size() uint64 {
	return HeaderSize + c.Header.DataSize
}

// WriteTo serializes the chunk to w.
func (c *Chunk) WriteTo(w stream.Writer) error {
	header := c.Header.Encode()

	if err := w.Write(header[:]); err != nil {
		return err
	}

	return stream.WriteChain(w, &c.Data)
}

// ReadFrom reads one chunk from r, authenticating the header and the
// body. The body hash is verified only after the body was fully
// consumed from the source.
func (c *Chunk) ReadFrom(r stream.Reader) error {
	var headerBytes [HeaderSize]byte

	if err := r.ReadFull(headerBytes[:]); err != nil {
		return err
	}

	header, err := DecodeHeader(headerBytes[:])
	if err != nil {
		return err
	}

	c.Header = header
	c.Data.Reset()

	if err := stream.ReadChain(r, &c.Data, header.DataSize); err != nil {
		return err
	}

	if computed := hash.BodyHash(&c.Data); computed != header.DataHash {
		return fmt.Errorf("%w: chunk body hash mismatch (stored %#x, computed %#x)",
			base.ErrFormat, header.DataHash, computed)
	}

	return nil
}
