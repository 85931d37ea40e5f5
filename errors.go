// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli

import (
	"errors"

	"github.com/jimsdog/riegeli/base"
)

// The semantic error kinds of the container, re-exported from the base
// layer. Match them with errors.Is.
var (
	// ErrIO means the underlying byte source or sink failed.
	ErrIO = base.ErrIO

	// ErrFormat means a hash mismatch, a corrupt codec frame, or an
	// impossible field value.
	ErrFormat = base.ErrFormat

	// ErrTruncated means the file ended inside a chunk or compressed
	// frame.
	ErrTruncated = base.ErrTruncated

	// ErrLimit means a size or count exceeds a configured maximum.
	ErrLimit = base.ErrLimit

	// ErrUsage means a precondition was violated, e.g. a write after
	// close.
	ErrUsage = base.ErrUsage
)

// ErrClosed is returned by operations on a closed Writer or Reader.
var ErrClosed = errors.New("already closed")

// FlushKind instructs Writer.Flush how persistent the flushed data
// should be.
type FlushKind = base.FlushKind

// The flush kinds, re-exported from the base layer.
const (
	FlushInProcess   = base.FlushInProcess
	FlushFromProcess = base.FlushFromProcess
	FlushFromMachine = base.FlushFromMachine
)
