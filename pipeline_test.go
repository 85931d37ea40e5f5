// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/siderolabs/gen/xtesting/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jimsdog/riegeli"
	"github.com/jimsdog/riegeli/compress"
)

// TestParallelWritersStress runs several writers with different worker
// counts concurrently and checks that their outputs agree bit for bit.
// One writer is paced with a rate limiter so its pipeline drains between
// submissions while the others keep their reorder buffers saturated.
func TestParallelWritersStress(t *testing.T) {
	t.Parallel()

	records := randomRecords(5000, 1024)

	options := func(parallelism int) []riegeli.WriterOption {
		return []riegeli.WriterOption{
			riegeli.WithCompression(compress.Zstd, 1),
			riegeli.WithChunkSize(32 * 1024),
			riegeli.WithParallelism(parallelism),
		}
	}

	files := make([][]byte, 3)

	eg, ctx := errgroup.WithContext(context.Background())

	for i, parallelism := range []int{0, 2, 8} {
		eg.Go(func() error {
			var file bytes.Buffer

			w, err := riegeli.NewWriter(&file, options(parallelism)...)
			if err != nil {
				return err
			}

			// pace the middle writer to exercise an idle pipeline
			var limiter *rate.Limiter
			if parallelism == 2 {
				limiter = rate.NewLimiter(rate.Every(10*time.Microsecond), 100)
			}

			for _, record := range records {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				}

				if err := w.WriteRecord(record); err != nil {
					return err
				}
			}

			if err := w.Close(); err != nil {
				return err
			}

			files[i] = file.Bytes()

			return nil
		})
	}

	require.NoError(t, eg.Wait())

	assert.Equal(t, files[0], files[1])
	assert.Equal(t, files[0], files[2])
}

// TestBackpressure writes chunks much faster than a deliberately slow
// destination can absorb them, so submissions block on the reorder
// buffer instead of growing it without bound.
func TestBackpressure(t *testing.T) {
	t.Parallel()

	var file bytes.Buffer

	slow := &slowWriter{dest: &file, delay: 100 * time.Microsecond}

	w := must.Value(riegeli.NewWriter(slow,
		riegeli.WithParallelism(2),
		riegeli.WithChunkSize(256),
		riegeli.WithoutCompression(),
		riegeli.WithBufferSize(64),
	))(t)

	records := randomRecords(2000, 128)
	for _, record := range records {
		require.NoError(t, w.WriteRecord(record))
	}

	require.NoError(t, w.Close())

	assert.Equal(t, records, readAll(t, file.Bytes()))
}

type slowWriter struct {
	dest  *bytes.Buffer
	delay time.Duration
}

func (s *slowWriter) Write(p []byte) (int, error) {
	time.Sleep(s.delay)

	return s.dest.Write(p)
}

// TestCloseIsBarrier closes a writer right after a burst of submissions
// and checks that every record still reaches the file.
func TestCloseIsBarrier(t *testing.T) {
	t.Parallel()

	for range 10 {
		var file bytes.Buffer

		w := must.Value(riegeli.NewWriter(&file,
			riegeli.WithParallelism(4),
			riegeli.WithChunkSize(512),
		))(t)

		records := randomRecords(500, 256)
		for _, record := range records {
			require.NoError(t, w.WriteRecord(record))
		}

		require.NoError(t, w.Close())
		require.Equal(t, records, readAll(t, file.Bytes()))
	}
}
