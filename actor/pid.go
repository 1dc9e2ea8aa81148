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
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/internal/queue"
	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/persistence"
	"github.com/tochemey/eventsourced/telemetry"
)

const (
	idle int32 = iota
	busy
)

// result is the outcome of a command
type result struct {
	reply *Reply
	err   error
}

// envelope carries a command through the mailbox
type envelope struct {
	ctx     context.Context
	command Command
	replyTo chan result
}

// PID is the handle of a running persistent actor.
//
// Commands are handled one at a time in arrival order, so the state is never
// read nor written concurrently.
type PID struct {
	id            string
	persistenceID persistence.ID
	actor         *persistentActor
	logger        log.Logger
	askTimeout    time.Duration

	mailbox    *queue.Mpsc[*envelope]
	processing atomic.Int32

	// guards running against in-flight sends
	sem      sync.RWMutex
	running  bool
	failed   atomic.Bool
	inflight sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// Spawn recovers a persistent actor and starts handling its commands.
//
// Spawn returns once the state has been rebuilt from the latest snapshot and the events
// stored after it. No command is handled before that. A failed recovery returns an
// error wrapping ErrRecoveryFailure and no actor is started.
func Spawn(ctx context.Context, behavior Behavior, eventLog persistence.EventLog, snapshotStore persistence.SnapshotStore, opts ...Option) (*PID, error) {
	switch {
	case behavior == nil:
		return nil, gerrors.ErrUndefinedBehavior
	case eventLog == nil:
		return nil, gerrors.ErrUndefinedEventLog
	case snapshotStore == nil:
		return nil, gerrors.ErrUndefinedSnapshotStore
	}

	persistenceID := behavior.PersistenceID()
	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	config := newSpawnConfig()
	for _, opt := range opts {
		opt.Apply(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	config.logger = config.logger.With("persistence_id", persistenceID.String(), "pid", id)
	if config.observer == nil {
		config.observer = logObserver{logger: config.logger}
	}

	if config.telemetry == nil {
		config.telemetry = telemetry.New()
	}

	actor := newPersistentActor(ctx, behavior, eventLog, snapshotStore, config)
	if err := actor.recoverState(ctx); err != nil {
		config.logger.Error(err)
		return nil, err
	}

	if handler, ok := behavior.(RecoveryHandler); ok {
		handler.RecoveryCompleted(ctx, actor.state.Copy(), actor.sequenceNr)
	}

	pid := &PID{
		id:            id,
		persistenceID: persistenceID,
		actor:         actor,
		logger:        config.logger,
		askTimeout:    config.askTimeout,
		mailbox:       queue.NewMpsc[*envelope](),
		running:       true,
	}
	pid.processing.Store(idle)
	return pid, nil
}

// ID returns the unique identifier of this incarnation of the actor
func (pid *PID) ID() string {
	return pid.id
}

// PersistenceID returns the persistence id of the actor
func (pid *PID) PersistenceID() persistence.ID {
	return pid.persistenceID
}

// IsRunning returns true when the actor accepts commands
func (pid *PID) IsRunning() bool {
	pid.sem.RLock()
	defer pid.sem.RUnlock()
	return pid.running && !pid.failed.Load()
}

// Ask sends a command and waits for its reply.
//
// The wait is bounded by the context and, when the context has no deadline, by the ask timeout.
// A command whose wait times out may still be handled later.
func (pid *PID) Ask(ctx context.Context, command Command) (*Reply, error) {
	if _, ok := ctx.Deadline(); !ok && pid.askTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pid.askTimeout)
		defer cancel()
	}

	replyTo := make(chan result, 1)
	if err := pid.send(ctx, command, replyTo); err != nil {
		return nil, err
	}

	select {
	case res := <-replyTo:
		return res.reply, res.err
	case <-ctx.Done():
		return nil, multierr.Combine(gerrors.ErrRequestTimeout, ctx.Err())
	}
}

// Tell sends a command without waiting for it to be handled. Failures are logged.
func (pid *PID) Tell(ctx context.Context, command Command) error {
	return pid.send(context.WithoutCancel(ctx), command, nil)
}

// Shutdown stops accepting commands, waits for the accepted ones to be handled
// then waits for the pending snapshots to be written.
// Calling it more than once returns the outcome of the first call.
func (pid *PID) Shutdown(ctx context.Context) error {
	pid.stopOnce.Do(func() {
		pid.sem.Lock()
		pid.running = false
		pid.sem.Unlock()

		pid.logger.Info("shutting down")
		done := make(chan struct{})
		go func() {
			pid.inflight.Wait()
			close(done)
		}()

		var err error
		select {
		case <-done:
			// every checkpoint is enqueued by now
			err = pid.actor.snapshotter.Flush(ctx)
		case <-ctx.Done():
			err = fmt.Errorf("pending commands: %w", ctx.Err())
		}

		pid.stopErr = err
		if err != nil {
			pid.logger.Error(err)
			return
		}
		pid.logger.Info("stopped")
	})
	return pid.stopErr
}

func (pid *PID) send(ctx context.Context, command Command, replyTo chan result) error {
	pid.sem.RLock()
	if !pid.running || pid.failed.Load() {
		pid.sem.RUnlock()
		return gerrors.ErrDead
	}

	pid.inflight.Add(1)
	pid.mailbox.Push(&envelope{ctx: ctx, command: command, replyTo: replyTo})
	pid.sem.RUnlock()

	pid.process()
	return nil
}

// process handles the mailbox on a single goroutine, started on idle to busy transitions
func (pid *PID) process() {
	if !pid.processing.CompareAndSwap(idle, busy) {
		return
	}

	go func() {
		for {
			if received, ok := pid.mailbox.Pop(); ok {
				pid.handle(received)
				continue
			}

			// if no more messages, change busy state to idle
			pid.processing.Store(idle)

			// commands pushed after the last pop restart the loop
			if !pid.mailbox.IsEmpty() && pid.processing.CompareAndSwap(idle, busy) {
				continue
			}
			return
		}
	}()
}

func (pid *PID) handle(received *envelope) {
	defer pid.inflight.Done()

	var res result
	if pid.failed.Load() {
		res.err = gerrors.ErrDead
	} else {
		res.reply, res.err = pid.safeHandle(received)
	}

	if received.replyTo != nil {
		received.replyTo <- res
		return
	}

	if res.err != nil {
		pid.logger.Errorf("failed to handle %s command: %v", received.command.Kind(), res.err)
	}
}

// safeHandle turns a panic into an error. A panic raised once the events are stored
// leaves the state behind the log and the actor stops accepting commands.
func (pid *PID) safeHandle(received *envelope) (reply *Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}

			err = gerrors.NewPanicError(cause)
			pid.logger.Errorf("%v\n%s", err, debug.Stack())
			if pid.actor.diverged {
				pid.failed.Store(true)
				pid.logger.Error("state is out of sync with the event log, the actor no longer accepts commands")
			}
		}
	}()
	return pid.actor.handle(received.ctx, received.command)
}
