// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block provides the fixed-size block framing of the container
// file.
//
// The file is a sequence of 64 KiB blocks, each starting with a 24-byte
// header that records where the surrounding chunk headers are. Chunks
// cross block boundaries freely; the block headers are the only
// redundancy in the format and are what makes mid-file
// resynchronization after corruption possible: round any file position
// down to a block, validate the header, follow its offsets.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/hash"
)

const (
	// Size is the fixed block size of the file format.
	Size = 65536

	// HeaderSize is the serialized size of a block header.
	HeaderSize = 24
)

// header is the parsed form of a block header:
//
//	byte  0      hash seed (low byte of the block index)
//	bytes 1..8   high 7 bytes of the little-endian keyed hash of the
//	             seed and bytes 8..24
//	bytes 8..16  previous chunk begin, little-endian
//	bytes 16..24 next chunk header offset from block start, little-endian
type header struct {
	// previousChunkBegin is the file position of the chunk whose header
	// precedes this block.
	previousChunkBegin uint64

	// nextChunkOffset is the distance from the block start to the first
	// chunk header beginning at or after it; zero when a chunk begins
	// exactly at the block boundary, larger than Size when the block is
	// in the middle of a long chunk.
	nextChunkOffset uint64
}

func headerSeed(blockStart uint64) byte {
	return byte(blockStart / Size)
}

// encodeHeader serializes the header of the block at blockStart.
func encodeHeader(blockStart uint64, h header) [HeaderSize]byte {
	var buf [HeaderSize]byte

	binary.LittleEndian.PutUint64(buf[8:], h.previousChunkBegin)
	binary.LittleEndian.PutUint64(buf[16:], h.nextChunkOffset)

	seed := headerSeed(blockStart)
	sum := hash.BlockHash(seed, buf[8:])

	var sumBytes [8]byte

	binary.LittleEndian.PutUint64(sumBytes[:], sum)

	// the hash field keeps 7 of the 8 hash bytes, the first byte is the seed
	buf[0] = seed
	copy(buf[1:8], sumBytes[1:8])

	return buf
}

// decodeHeader parses and authenticates the header of the block at
// blockStart.
func decodeHeader(blockStart uint64, p []byte) (header, error) {
	if len(p) < HeaderSize {
		return header{}, fmt.Errorf("%w: block header needs %d bytes, have %d", base.ErrTruncated, HeaderSize, len(p))
	}

	seed := p[0]
	if seed != headerSeed(blockStart) {
		return header{}, fmt.Errorf("%w: block header seed %#x does not match block %d",
			base.ErrFormat, seed, blockStart/Size)
	}

	sum := hash.BlockHash(seed, p[8:HeaderSize])

	var sumBytes [8]byte

	binary.LittleEndian.PutUint64(sumBytes[:], sum)

	for i := 1; i < 8; i++ {
		if p[i] != sumBytes[i] {
			return header{}, fmt.Errorf("%w: block header hash mismatch at block %d", base.ErrFormat, blockStart/Size)
		}
	}

	return header{
		previousChunkBegin: binary.LittleEndian.Uint64(p[8:]),
		nextChunkOffset:    binary.LittleEndian.Uint64(p[16:]),
	}, nil
}

// isBoundary reports whether pos is a block boundary.
func isBoundary(pos uint64) bool {
	return pos%Size == 0
}

// remainingInBlock returns the number of chunk bytes that fit before the
// next boundary; pos must not be a boundary.
func remainingInBlock(pos uint64) uint64 {
	return Size - pos%Size
}

// advancePos returns the file position reached after laying out n chunk
// bytes starting at pos, accounting for the block headers interleaved at
// every boundary.
func advancePos(pos, n uint64) uint64 {
	for n > 0 {
		if isBoundary(pos) {
			pos += HeaderSize
		}

		take := min(remainingInBlock(pos), n)
		pos += take
		n -= take
	}

	return pos
}
