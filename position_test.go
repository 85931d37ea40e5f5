// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimsdog/riegeli"
)

func TestRecordPositionRoundTrip(t *testing.T) {
	t.Parallel()

	for _, p := range []riegeli.RecordPosition{
		{},
		{ChunkBegin: 1},
		{RecordIndex: 1},
		{ChunkBegin: 65536, RecordIndex: 42},
		{ChunkBegin: math.MaxUint64, RecordIndex: 0},
		{ChunkBegin: 1 << 40, RecordIndex: 1<<20 - 1},
	} {
		serialized := p.Serialize()

		parsed, err := riegeli.ParseRecordPosition(serialized[:])
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
}

func TestRecordPositionParseErrors(t *testing.T) {
	t.Parallel()

	_, err := riegeli.ParseRecordPosition([]byte("short"))
	assert.ErrorIs(t, err, riegeli.ErrFormat)

	_, err = riegeli.ParseRecordPosition(make([]byte, 17))
	assert.ErrorIs(t, err, riegeli.ErrFormat)

	// chunk begin + record index overflowing 64 bits is rejected
	overflowing := riegeli.RecordPosition{ChunkBegin: math.MaxUint64, RecordIndex: 1}
	serialized := overflowing.Serialize()

	_, err = riegeli.ParseRecordPosition(serialized[:])
	assert.ErrorIs(t, err, riegeli.ErrFormat)
}

func TestRecordPositionOrdering(t *testing.T) {
	t.Parallel()

	positions := []riegeli.RecordPosition{
		{},
		{RecordIndex: 1},
		{RecordIndex: 1000},
		{ChunkBegin: 1},
		{ChunkBegin: 1, RecordIndex: 7},
		{ChunkBegin: 500, RecordIndex: 2},
		{ChunkBegin: 1 << 32},
	}

	for i, a := range positions {
		for j, b := range positions {
			sa, sb := a.Serialize(), b.Serialize()

			switch {
			case i < j:
				assert.Equal(t, -1, a.Compare(b))
				assert.Negative(t, bytes.Compare(sa[:], sb[:]))
			case i > j:
				assert.Equal(t, 1, a.Compare(b))
				assert.Positive(t, bytes.Compare(sa[:], sb[:]))
			default:
				assert.Zero(t, a.Compare(b))
				assert.Zero(t, bytes.Compare(sa[:], sb[:]))
			}
		}
	}
}

func TestRecordPositionNumeric(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 0, riegeli.RecordPosition{}.Numeric())
	assert.EqualValues(t, 999, riegeli.RecordPosition{RecordIndex: 999}.Numeric())
	assert.EqualValues(t, 65541, riegeli.RecordPosition{ChunkBegin: 65536, RecordIndex: 5}.Numeric())
}

func TestRecordPositionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "42/7", riegeli.RecordPosition{ChunkBegin: 42, RecordIndex: 7}.String())
}
