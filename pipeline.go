// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package riegeli

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jimsdog/riegeli/chunk"
)

// pipeline encodes chunks on a pool of workers while preserving
// submission order on output.
//
// Every submitted batch gets a sequence number. Workers encode in
// arbitrary order and deposit results in the reorder buffer; a single
// emitter goroutine pulls the next-in-sequence entry and writes it out,
// so the destination sees exactly the order of submission and is touched
// by one goroutine only.
//
// The task channel, the reorder buffer and the latched failure are the
// only cross-goroutine state. The buffer and the failure share one lock;
// two condition variables signal "reorder buffer not full" towards
// submitters and "next entry may be ready" towards the emitter.
type pipeline struct {
	tasks chan encodeTask

	encoder chunk.Encoder
	emit    func(*chunk.Chunk) error
	logger  *zap.Logger

	workers   *errgroup.Group
	emitterWG sync.WaitGroup

	mu      sync.Mutex
	notFull *sync.Cond
	hasNext *sync.Cond

	// completed chunks waiting for their turn, keyed by sequence number;
	// a nil entry marks a failed encode
	done map[uint64]*chunk.Chunk

	nextSubmit uint64
	nextEmit   uint64

	// submitted but not yet emitted chunks; bounded by maxOutstanding
	outstanding    int
	maxOutstanding int

	closing bool
	err     error
}

type encodeTask struct {
	seq   uint64
	batch *chunk.Batch
}

func newPipeline(workers int, encoder chunk.Encoder, emit func(*chunk.Chunk) error, logger *zap.Logger) *pipeline {
	p := &pipeline{
		tasks:          make(chan encodeTask, workers),
		encoder:        encoder,
		emit:           emit,
		logger:         logger,
		done:           make(map[uint64]*chunk.Chunk),
		maxOutstanding: 2 * workers,
		workers:        new(errgroup.Group),
	}

	p.notFull = sync.NewCond(&p.mu)
	p.hasNext = sync.NewCond(&p.mu)

	for range workers {
		p.workers.Go(p.worker)
	}

	p.emitterWG.Add(1)

	go p.emitter()

	return p
}

// submit hands a batch to the pool, blocking while the reorder buffer is
// full. After a failure it fails fast without accepting the batch.
func (p *pipeline) submit(batch *chunk.Batch) error {
	p.mu.Lock()

	for p.outstanding >= p.maxOutstanding && p.err == nil {
		p.notFull.Wait()
	}

	if p.err != nil {
		p.mu.Unlock()

		return p.err
	}

	task := encodeTask{seq: p.nextSubmit, batch: batch}
	p.nextSubmit++
	p.outstanding++

	p.mu.Unlock()

	// the channel send happens outside the lock: a full channel blocks
	// the producer, not the workers depositing results
	p.tasks <- task

	return nil
}

// worker encodes batches until the task channel closes. Failures are
// latched and an empty entry is deposited, so the emitter still advances
// through the failed sequence number.
func (p *pipeline) worker() error {
	for task := range p.tasks {
		c, err := p.encoder.Encode(task.batch)

		p.mu.Lock()

		if err != nil {
			if p.err == nil {
				p.err = err
			}

			p.logger.Error("chunk encode failed", zap.Uint64("seq", task.seq), zap.Error(err))

			p.done[task.seq] = nil
			p.notFull.Broadcast()
		} else {
			p.done[task.seq] = &c
		}

		p.hasNext.Broadcast()
		p.mu.Unlock()
	}

	return nil
}

// emitter writes completed chunks strictly in sequence order. After a
// latched failure it keeps draining entries without writing them, so
// close can join everything.
func (p *pipeline) emitter() {
	defer p.emitterWG.Done()

	p.mu.Lock()

	for {
		c, ok := p.done[p.nextEmit]

		if !ok {
			if p.closing && p.nextEmit == p.nextSubmit {
				p.mu.Unlock()

				return
			}

			p.hasNext.Wait()

			continue
		}

		delete(p.done, p.nextEmit)

		if c != nil && p.err == nil {
			p.mu.Unlock()

			err := p.emit(c)

			p.mu.Lock()

			if err != nil && p.err == nil {
				p.err = err
			}
		}

		p.nextEmit++
		p.outstanding--
		p.notFull.Broadcast()
	}
}

// drain waits until every submitted chunk has been emitted.
func (p *pipeline) drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.outstanding > 0 && p.err == nil {
		p.notFull.Wait()
	}

	return p.err
}

// close waits for in-flight chunks, joins the workers and the emitter,
// and returns the latched failure if any.
func (p *pipeline) close() error {
	p.mu.Lock()
	p.closing = true
	p.hasNext.Broadcast()
	p.mu.Unlock()

	close(p.tasks)

	p.workers.Wait() //nolint:errcheck // workers latch failures instead of returning them

	// wake the emitter in case it went idle before closing was visible
	p.mu.Lock()
	p.hasNext.Broadcast()
	p.mu.Unlock()

	p.emitterWG.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}
