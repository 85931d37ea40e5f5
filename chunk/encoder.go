// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chunk

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/chain"
	"github.com/jimsdog/riegeli/compress"
	"github.com/jimsdog/riegeli/stream"
)

// Body layout markers, the first byte of every non-empty chunk body.
const (
	layoutSimple    = 's'
	layoutTranspose = 't'
)

// Batch accumulates records before they are encoded into a chunk.
// Records keep their submission order.
type Batch struct {
	// Sizes holds the size of each record.
	Sizes []uint64

	// Values holds the concatenated record bytes.
	Values chain.Chain
}

// AddRecord appends a copy of record to the batch.
func (b *Batch) AddRecord(record []byte) {
	b.Sizes = append(b.Sizes, uint64(len(record)))
	b.Values.Append(record)
}

// NumRecords returns the number of records in the batch.
func (b *Batch) NumRecords() uint64 {
	return uint64(len(b.Sizes))
}

// DecodedDataSize returns the sum of the raw record sizes.
func (b *Batch) DecodedDataSize() uint64 {
	return uint64(b.Values.Size())
}

// Reset empties the batch for reuse.
func (b *Batch) Reset() {
	b.Sizes = b.Sizes[:0]
	b.Values.Reset()
}

// Encoder converts a batch of records into a chunk. Encoders are
// stateless between calls, so one encoder may be used from several
// goroutines at once; the parallel write pipeline shares a single
// encoder among all its workers.
type Encoder interface {
	Encode(batch *Batch) (Chunk, error)
}

// simpleEncoder stores record sizes as uvarints and record values
// verbatim, each section compressed on its own.
type simpleEncoder struct {
	codec compress.Type
	opts  compress.Options
}

// NewSimpleEncoder creates the default record encoder.
func NewSimpleEncoder(codec compress.Type, opts compress.Options) Encoder {
	return simpleEncoder{codec: codec, opts: opts}
}

func (e simpleEncoder) Encode(batch *Batch) (Chunk, error) {
	sizesBuf := make([]byte, 0, len(batch.Sizes)*2)
	for _, size := range batch.Sizes {
		sizesBuf = binary.AppendUvarint(sizesBuf, size)
	}

	return assembleBody(layoutSimple, e.codec, e.opts, sizesBuf, batch)
}

// transposeEncoder stores the record sizes as a fixed-width column so
// that sizes and values compress as homogeneous runs.
type transposeEncoder struct {
	codec compress.Type
	opts  compress.Options
}

// NewTransposeEncoder creates the columnar record encoder.
func NewTransposeEncoder(codec compress.Type, opts compress.Options) Encoder {
	return transposeEncoder{codec: codec, opts: opts}
}

func (e transposeEncoder) Encode(batch *Batch) (Chunk, error) {
	sizesBuf := make([]byte, 0, len(batch.Sizes)*4)

	for _, size := range batch.Sizes {
		if size > math.MaxUint32 {
			return Chunk{}, fmt.Errorf("%w: record of %d bytes does not fit the columnar size field", base.ErrLimit, size)
		}

		sizesBuf = binary.LittleEndian.AppendUint32(sizesBuf, uint32(size))
	}

	return assembleBody(layoutTranspose, e.codec, e.opts, sizesBuf, batch)
}

// assembleBody compresses the two sections and frames them back to
// front: the values go in first, then the sizes, then the prefix fields
// computed from the section sizes. The backward writer turns the
// prepends into plain copies.
func assembleBody(layout byte, codec compress.Type, opts compress.Options, sizesBuf []byte, batch *Batch) (Chunk, error) {
	opts.SizeHint = batch.DecodedDataSize()

	compressedSizes, err := compress.CompressAll(codec, opts, sizesBuf)
	if err != nil {
		return Chunk{}, err
	}

	var values chain.Chain

	vw, err := compress.NewWriter(stream.NewChainWriter(&values), codec, opts, true)
	if err != nil {
		return Chunk{}, err
	}

	if err := stream.WriteChain(vw, &batch.Values); err != nil {
		vw.Close() //nolint:errcheck // the write error is the one to report

		return Chunk{}, err
	}

	if err := vw.Close(); err != nil {
		return Chunk{}, err
	}

	bw := stream.NewBackwardWriter()

	if err := bw.PrependChain(&values); err != nil {
		return Chunk{}, err
	}

	if err := bw.Prepend(compressedSizes); err != nil {
		return Chunk{}, err
	}

	if err := bw.Prepend(binary.AppendUvarint(nil, uint64(len(compressedSizes)))); err != nil {
		return Chunk{}, err
	}

	if err := bw.PrependByte(byte(codec)); err != nil {
		return Chunk{}, err
	}

	if err := bw.PrependByte(layout); err != nil {
		return Chunk{}, err
	}

	body, err := bw.Chain()
	if err != nil {
		return Chunk{}, err
	}

	return New(body, batch.NumRecords(), batch.DecodedDataSize()), nil
}
