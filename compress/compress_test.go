// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compress_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimsdog/riegeli/base"
	"github.com/jimsdog/riegeli/chain"
	"github.com/jimsdog/riegeli/compress"
	"github.com/jimsdog/riegeli/stream"
)

var codecs = []struct {
	name  string
	codec compress.Type
	opts  compress.Options
}{
	{name: "none", codec: compress.None},
	{name: "brotli", codec: compress.Brotli, opts: compress.Options{Level: 6}},
	{name: "zstd", codec: compress.Zstd, opts: compress.Options{Level: 3}},
	{name: "zlib", codec: compress.Zlib, opts: compress.Options{Level: 6}},
}

func TestCompressAllRoundTrip(t *testing.T) {
	t.Parallel()

	for _, test := range codecs {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			for _, size := range []int{0, 1, 1024, 1 << 20} {
				data, err := io.ReadAll(io.LimitReader(rand.Reader, int64(size)))
				require.NoError(t, err)

				compressed, err := compress.CompressAll(test.codec, test.opts, data)
				require.NoError(t, err)

				decompressed, err := compress.DecompressAll(test.codec, compressed)
				require.NoError(t, err)

				if size == 0 {
					assert.Empty(t, decompressed)
				} else {
					assert.Equal(t, data, decompressed)
				}
			}
		})
	}
}

func TestCompressAllShrinksRepetitiveData(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("AAAA"), 64*1024)

	for _, test := range codecs {
		if test.codec == compress.None {
			continue
		}

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			compressed, err := compress.CompressAll(test.codec, test.opts, data)
			require.NoError(t, err)

			assert.Less(t, len(compressed), len(data)/10)
		})
	}
}

func TestStreamingRoundTrip(t *testing.T) {
	t.Parallel()

	for _, test := range codecs {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			data, err := io.ReadAll(io.LimitReader(rand.Reader, 200_000))
			require.NoError(t, err)

			var dest chain.Chain

			w, err := compress.NewWriter(stream.NewChainWriter(&dest), test.codec, test.opts, true)
			require.NoError(t, err)

			for i := 0; i < len(data); i += 1000 {
				require.NoError(t, w.Write(data[i:i+1000]))
			}

			assert.EqualValues(t, len(data), w.Pos())
			require.NoError(t, w.Close())

			r, err := compress.NewReader(stream.NewChainReader(&dest), test.codec, 0)
			require.NoError(t, err)

			decompressed := make([]byte, len(data))
			require.NoError(t, r.ReadFull(decompressed))
			assert.Equal(t, data, decompressed)

			// the frame ends exactly at the end of the data
			window, err := r.Pull(1)
			assert.Empty(t, window)
			assert.Equal(t, io.EOF, err)

			require.NoError(t, r.Close())
		})
	}
}

func TestDecompressTruncated(t *testing.T) {
	t.Parallel()

	for _, test := range codecs {
		if test.codec == compress.None {
			continue
		}

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			data := bytes.Repeat([]byte("truncate me "), 10000)

			compressed, err := compress.CompressAll(test.codec, test.opts, data)
			require.NoError(t, err)

			_, err = compress.DecompressAll(test.codec, compressed[:len(compressed)/2])
			require.Error(t, err)
			assert.ErrorIs(t, err, base.ErrTruncated)
		})
	}
}

func TestDecompressCorrupt(t *testing.T) {
	t.Parallel()

	for _, test := range codecs {
		// zstd and zlib carry frame checksums, so any flip is caught;
		// brotli may decode flipped bytes into garbage without noticing
		if test.codec != compress.Zstd && test.codec != compress.Zlib {
			continue
		}

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			data := bytes.Repeat([]byte("corrupt me "), 10000)

			compressed, err := compress.CompressAll(test.codec, test.opts, data)
			require.NoError(t, err)

			// flip bytes in the middle of the frame
			for i := len(compressed) / 2; i < len(compressed)/2+8 && i < len(compressed); i++ {
				compressed[i] ^= 0xff
			}

			_, err = compress.DecompressAll(test.codec, compressed)
			require.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name    string
		codec   compress.Type
		opts    compress.Options
		wantErr bool
	}{
		{name: "none", codec: compress.None},
		{name: "brotli in range", codec: compress.Brotli, opts: compress.Options{Level: 11}},
		{name: "brotli out of range", codec: compress.Brotli, opts: compress.Options{Level: 12}, wantErr: true},
		{name: "zstd in range", codec: compress.Zstd, opts: compress.Options{Level: 22}},
		{name: "zstd out of range", codec: compress.Zstd, opts: compress.Options{Level: 23}, wantErr: true},
		{name: "zlib in range", codec: compress.Zlib, opts: compress.Options{Level: 9, WindowBits: 15}},
		{name: "zlib bad window", codec: compress.Zlib, opts: compress.Options{Level: 9, WindowBits: 8}, wantErr: true},
		{name: "unknown codec", codec: compress.Type('x'), wantErr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := compress.Validate(test.codec, test.opts)

			if test.wantErr {
				assert.ErrorIs(t, err, base.ErrUsage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompressionDeterministic(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("determinism "), 50000)

	for _, test := range codecs {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			a, err := compress.CompressAll(test.codec, test.opts, data)
			require.NoError(t, err)

			b, err := compress.CompressAll(test.codec, test.opts, data)
			require.NoError(t, err)

			assert.Equal(t, a, b)
		})
	}
}
