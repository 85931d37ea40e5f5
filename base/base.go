// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package base holds error kinds and flush kinds shared by all layers of
// the record container.
package base

import "errors"

// Semantic error kinds. Layer errors wrap exactly one of these, so callers
// can classify failures with errors.Is regardless of which layer produced
// them.
var (
	// ErrIO means the underlying byte source or sink failed.
	ErrIO = errors.New("I/O error")

	// ErrFormat means a hash mismatch, a corrupt codec frame, or an
	// impossible field value.
	ErrFormat = errors.New("invalid format")

	// ErrTruncated means the underlying stream ended inside a frame or
	// chunk with no tail marker.
	ErrTruncated = errors.New("truncated")

	// ErrLimit means a size or count exceeds a configured maximum.
	ErrLimit = errors.New("limit exceeded")

	// ErrUsage means a precondition was violated, e.g. write after close.
	ErrUsage = errors.New("invalid usage")
)

// HasKind reports whether err already carries one of the semantic kinds,
// so wrappers do not reclassify an error on its way up.
func HasKind(err error) bool {
	return errors.Is(err, ErrIO) ||
		errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrLimit) ||
		errors.Is(err, ErrUsage)
}

// FlushKind instructs Flush how persistent the flushed data should be.
type FlushKind int

const (
	// FlushInProcess makes data visible to readers within the same
	// process sharing the destination object.
	FlushInProcess FlushKind = iota

	// FlushFromProcess pushes data out of the process, e.g. into OS
	// buffers of a file.
	FlushFromProcess

	// FlushFromMachine asks the destination to survive machine crashes,
	// as far as the byte sink supports it.
	FlushFromMachine
)

// String implements fmt.Stringer.
func (k FlushKind) String() string {
	switch k {
	case FlushInProcess:
		return "in-process"
	case FlushFromProcess:
		return "from-process"
	case FlushFromMachine:
		return "from-machine"
	default:
		return "unknown"
	}
}
