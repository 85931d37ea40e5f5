// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jimsdog/riegeli/base"
)

// SerializedRecordPositionSize is the size of a serialized RecordPosition.
const SerializedRecordPositionSize = 16

// RecordPosition identifies one record in a file: the file offset of the
// chunk holding it and the record's index inside that chunk.
//
// Positions compare first by chunk, then by index; the serialized form
// preserves that order byte-lexicographically.
type RecordPosition struct {
	// ChunkBegin is the file position of the chunk header.
	ChunkBegin uint64

	// RecordIndex is the index of the record within the chunk.
	RecordIndex uint64
}

// Numeric projects the position onto a single monotone scalar, useful
// for progress reporting and approximate seeks. Distinct positions may
// map to the same scalar, but the projection never decreases along a
// file.
func (p RecordPosition) Numeric() uint64 {
	return p.ChunkBegin + p.RecordIndex
}

// Compare orders positions: -1, 0 or 1 as p is before, at or after
// other.
func (p RecordPosition) Compare(other RecordPosition) int {
	switch {
	case p.ChunkBegin < other.ChunkBegin:
		return -1
	case p.ChunkBegin > other.ChunkBegin:
		return 1
	case p.RecordIndex < other.RecordIndex:
		return -1
	case p.RecordIndex > other.RecordIndex:
		return 1
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (p RecordPosition) String() string {
	return fmt.Sprintf("%d/%d", p.ChunkBegin, p.RecordIndex)
}

// Serialize returns the 16-byte big-endian form of the position.
// Lexicographic order of serialized positions equals their natural
// order.
func (p RecordPosition) Serialize() [SerializedRecordPositionSize]byte {
	var buf [SerializedRecordPositionSize]byte

	binary.BigEndian.PutUint64(buf[:8], p.ChunkBegin)
	binary.BigEndian.PutUint64(buf[8:], p.RecordIndex)

	return buf
}

// ParseRecordPosition parses the serialized form produced by Serialize.
func ParseRecordPosition(serialized []byte) (RecordPosition, error) {
	if len(serialized) != SerializedRecordPositionSize {
		return RecordPosition{}, fmt.Errorf("%w: serialized record position needs %d bytes, have %d",
			base.ErrFormat, SerializedRecordPositionSize, len(serialized))
	}

	p := RecordPosition{
		ChunkBegin:  binary.BigEndian.Uint64(serialized[:8]),
		RecordIndex: binary.BigEndian.Uint64(serialized[8:]),
	}

	if p.RecordIndex > math.MaxUint64-p.ChunkBegin {
		return RecordPosition{}, fmt.Errorf("%w: record position %s overflows", base.ErrFormat, p)
	}

	return p, nil
}
