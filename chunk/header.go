// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chunk provides the hash-authenticated unit of records of the
// container: the fixed 40-byte chunk header, chunk serialization, and the
// encoders and decoders turning record batches into chunk bodies and
// back.
package chunk

import (
	"encoding/binary"
	"fmt"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/hash"
)

// HeaderSize is the serialized size of a chunk header.
const HeaderSize = 40

// Header describes a chunk. All fields are little-endian on disk:
//
//	bytes  0..8   hash of bytes 8..40
//	bytes  8..16  data size
//	bytes 16..24  data hash
//	bytes 24..32  number of records
//	bytes 32..40  decoded data size
type Header struct {
	// DataSize is the size of the chunk body in bytes.
	DataSize uint64

	// DataHash authenticates the chunk body.
	DataHash uint64

	// NumRecords is the number of logical records in the chunk.
	NumRecords uint64

	// DecodedDataSize is the sum of the raw record sizes, for sizing
	// decode buffers.
	DecodedDataSize uint64
}

// Encode serializes the header, computing the header hash.
func (h *Header) Encode() [HeaderSize]byte {
	var buf [HeaderSize]byte

	binary.LittleEndian.PutUint64(buf[8:], h.DataSize)
	binary.LittleEndian.PutUint64(buf[16:], h.DataHash)
	binary.LittleEndian.PutUint64(buf[24:], h.NumRecords)
	binary.LittleEndian.PutUint64(buf[32:], h.DecodedDataSize)
	binary.LittleEndian.PutUint64(buf[:8], hash.HeaderHash(buf[8:]))

	return buf
}

// DecodeHeader parses and authenticates a serialized chunk header.
func DecodeHeader(p []byte) (Header, error) {
	if len(p) < HeaderSize {
		return Header{}, fmt.Errorf("%w: chunk header needs %d bytes, have %d", base.ErrTruncated, HeaderSize, len(p))
	}

	stored := binary.LittleEndian.Uint64(p[:8])
	if computed := hash.HeaderHash(p[8:HeaderSize]); stored != computed {
		return Header{}, fmt.Errorf("%w: chunk header hash mismatch (stored %#x, computed %#x)",
			base.ErrFormat, stored, computed)
	}

	return Header{
		DataSize:        binary.LittleEndian.Uint64(p[8:]),
		DataHash:        binary.LittleEndian.Uint64(p[16:]),
		NumRecords:      binary.LittleEndian.Uint64(p[24:]),
		DecodedDataSize: binary.LittleEndian.Uint64(p[32:]),
	}, nil
}

// ValidHeaderBytes reports whether p holds an authenticated chunk header,
// without parsing it. Resynchronization uses it to probe candidate
// positions.
func ValidHeaderBytes(p []byte) bool {
	if len(p) < HeaderSize {
		return false
	}

	return binary.LittleEndian.Uint64(p[:8]) == hash.HeaderHash(p[8:HeaderSize])
}
