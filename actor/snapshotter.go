/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package actor

import (
	"context"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/internal/queue"
	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/persistence"
	"github.com/tochemey/eventsourced/telemetry"
)

// snapshotRequest asks for the state as of a given sequence number to be saved
type snapshotRequest struct {
	sequenceNr uint64
	state      State
}

// snapshotter writes snapshots in the background, one at a time.
//
// Pending requests are coalesced: only the one with the highest sequence number is written
// and a request at or below the last saved sequence number is dropped. A failed write is
// logged and counted. It never touches the actor state nor its event log.
type snapshotter struct {
	persistenceID persistence.ID
	store         persistence.SnapshotStore
	compression   Compression
	retrier       *retry.Retrier
	logger        log.Logger
	metrics       *telemetry.Metrics

	// ctx carries the values of the spawn context without its cancellation
	ctx        context.Context
	requests   *queue.Mpsc[*snapshotRequest]
	processing atomic.Int32
	lastSaved  atomic.Uint64
	pending    sync.WaitGroup
}

func newSnapshotter(ctx context.Context, persistenceID persistence.ID, store persistence.SnapshotStore, config *spawnConfig) *snapshotter {
	return &snapshotter{
		persistenceID: persistenceID,
		store:         store,
		compression:   config.compression,
		retrier:       retry.NewRetrier(config.retryAttempts, config.retryInitialDelay, config.retryMaxDelay),
		logger:        config.logger,
		metrics:       config.telemetry.Metrics,
		ctx:           context.WithoutCancel(ctx),
		requests:      queue.NewMpsc[*snapshotRequest](),
	}
}

// Enqueue schedules a snapshot of the given state. The state must be a copy owned by the snapshotter.
func (s *snapshotter) Enqueue(sequenceNr uint64, state State) {
	s.pending.Add(1)
	s.requests.Push(&snapshotRequest{sequenceNr: sequenceNr, state: state})
	s.process()
}

// LastSaved returns the sequence number of the last snapshot known to be stored
func (s *snapshotter) LastSaved() uint64 {
	return s.lastSaved.Load()
}

// Flush waits for every enqueued request to be written or dropped
func (s *snapshotter) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process drains the queue on a single goroutine, started on idle to busy transitions
func (s *snapshotter) process() {
	if !s.processing.CompareAndSwap(idle, busy) {
		return
	}

	go func() {
		for {
			if requests := s.requests.Drain(); len(requests) > 0 {
				s.write(requests)
			}

			s.processing.Store(idle)

			// requests pushed after the drain restart the loop
			if !s.requests.IsEmpty() && s.processing.CompareAndSwap(idle, busy) {
				continue
			}
			return
		}
	}()
}

func (s *snapshotter) write(requests []*snapshotRequest) {
	defer s.pending.Add(-len(requests))

	latest := requests[0]
	for _, request := range requests[1:] {
		if request.sequenceNr > latest.sequenceNr {
			latest = request
		}
	}

	if latest.sequenceNr <= s.lastSaved.Load() {
		s.logger.Debugf("skipping snapshot at sequence number %d, already saved up to %d", latest.sequenceNr, s.lastSaved.Load())
		return
	}

	snapshot, err := encodeSnapshot(s.persistenceID, latest.sequenceNr, latest.state, s.compression, time.Now().UTC())
	if err == nil {
		err = s.retrier.RunContext(s.ctx, func(ctx context.Context) error {
			return s.store.Save(ctx, snapshot)
		})
	}

	s.metrics.RecordSnapshot(s.ctx, s.persistenceID.String(), err)
	if err != nil {
		s.logger.Error(gerrors.NewErrSnapshotFailure(err))
		return
	}

	s.lastSaved.Store(latest.sequenceNr)
	s.logger.Debugf("snapshot saved at sequence number %d", latest.sequenceNr)
}
