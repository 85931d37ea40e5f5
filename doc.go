// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package riegeli reads and writes container files holding sequences of
// opaque byte records.
//
// The file is a sequence of hash-authenticated chunks laid into fixed
// 64 KiB blocks. Each block starts with a small header pointing at the
// surrounding chunk headers, which gives O(1) alignment from any file
// offset and lets a reader resynchronize after mid-file corruption.
// Chunk bodies are compressed with brotli, zstd or zlib; encoding can be
// spread over a pool of workers without changing a single output byte.
//
// Writing:
//
//	w, err := riegeli.NewWriter(file,
//		riegeli.WithCompression(compress.Zstd, 3),
//		riegeli.WithParallelism(4),
//	)
//	for _, record := range records {
//		if err := w.WriteRecord(record); err != nil {
//			return err
//		}
//	}
//	if err := w.Close(); err != nil {
//		return err
//	}
//
// Reading:
//
//	r, err := riegeli.NewReader(file)
//	for {
//		record, err := r.ReadRecord()
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// Every record has a RecordPosition; Reader.Seek jumps back to one in
// O(1), and serialized positions order the same as the records do.
package riegeli
