// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jimsdog/riegeli"
	"github.com/jimsdog/riegeli/compress"
)

func TestWriterOptionCombinations(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name    string
		options []riegeli.WriterOption
		wantErr bool
	}{
		{
			name: "all together",
			options: []riegeli.WriterOption{
				riegeli.WithCompression(compress.Zstd, 19),
				riegeli.WithBufferSize(4096),
				riegeli.WithSizeHint(1 << 30),
				riegeli.WithChunkSize(1 << 16),
				riegeli.WithParallelism(2),
				riegeli.WithTranspose(),
			},
		},
		{
			name:    "buffer size rejected eagerly",
			options: []riegeli.WriterOption{riegeli.WithBufferSize(-5)},
			wantErr: true,
		},
		{
			name: "later options win",
			options: []riegeli.WriterOption{
				riegeli.WithCompression(compress.Brotli, 11),
				riegeli.WithoutCompression(),
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var file bytes.Buffer

			w, err := riegeli.NewWriter(&file, test.options...)

			if test.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.NoError(t, w.WriteRecord([]byte("probe")))
			require.NoError(t, w.Close())

			assert.Equal(t, [][]byte{[]byte("probe")}, readAll(t, file.Bytes()))
		})
	}
}

func TestLoggerOption(t *testing.T) {
	t.Parallel()

	var file bytes.Buffer

	logger := zaptest.NewLogger(t)

	w, err := riegeli.NewWriter(&file, riegeli.WithLogger(logger), riegeli.WithParallelism(1))
	require.NoError(t, err)

	for range 100 {
		require.NoError(t, w.WriteRecord(bytes.Repeat([]byte("log me"), 100)))
	}

	require.NoError(t, w.Close())

	r, err := riegeli.NewReader(bytes.NewReader(file.Bytes()), riegeli.WithReaderLogger(logger))
	require.NoError(t, err)

	count := 0

	for {
		if _, err := r.ReadRecord(); err != nil {
			break
		}

		count++
	}

	assert.Equal(t, 100, count)
	require.NoError(t, r.Close())
}
