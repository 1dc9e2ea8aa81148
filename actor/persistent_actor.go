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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/persistence"
	"github.com/tochemey/eventsourced/telemetry"
)

// status is the lifecycle stage of a persistent actor
type status int32

const (
	recovering status = iota
	ready
)

func (s status) String() string {
	switch s {
	case recovering:
		return "recovering"
	default:
		return "ready"
	}
}

// persistentActor holds the state machine of a persistent actor.
// Its methods are only called from the owning PID processing goroutine.
type persistentActor struct {
	behavior      Behavior
	persistenceID persistence.ID
	eventLog      persistence.EventLog
	snapshotStore persistence.SnapshotStore
	config        *spawnConfig
	logger        log.Logger
	tracer        trace.Tracer
	metrics       *telemetry.Metrics
	snapshotter   *snapshotter

	status     status
	state      State
	sequenceNr uint64
	// set while stored events are not yet applied
	diverged bool
}

func newPersistentActor(ctx context.Context, behavior Behavior, eventLog persistence.EventLog, snapshotStore persistence.SnapshotStore, config *spawnConfig) *persistentActor {
	persistenceID := behavior.PersistenceID()
	return &persistentActor{
		behavior:      behavior,
		persistenceID: persistenceID,
		eventLog:      eventLog,
		snapshotStore: snapshotStore,
		config:        config,
		logger:        config.logger,
		tracer:        config.telemetry.Tracer,
		metrics:       config.telemetry.Metrics,
		snapshotter:   newSnapshotter(ctx, persistenceID, snapshotStore, config),
		status:        recovering,
	}
}

// recoverState rebuilds the state from the latest snapshot and the events persisted after it
func (a *persistentActor) recoverState(ctx context.Context) error {
	ctx, span := a.tracer.Start(ctx, "PersistentActor.Recover", trace.WithAttributes(attribute.String("persistence_id", a.persistenceID.String())))
	defer span.End()

	var (
		start    = time.Now()
		state    = a.behavior.EmptyState()
		cursor   uint64
		offered  bool
		replayed int
	)

	err := recoveryStream(ctx, a.persistenceID, a.snapshotStore, a.eventLog, func(step recovery) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = gerrors.NewPanicError(fmt.Errorf("sequence number %d: %v", step.sequenceNr(), r))
			}
		}()

		switch step := step.(type) {
		case snapshotOffer:
			if offered || replayed > 0 {
				return gerrors.NewErrOutOfOrderSequence(a.persistenceID.String(), cursor+1, step.sequenceNr())
			}

			recovered := a.behavior.EmptyState()
			if err := decodeSnapshot(step.snapshot, recovered); err != nil {
				return err
			}

			state, cursor, offered = recovered, step.sequenceNr(), true
			a.logger.Debugf("offered state = %v", state)

		case eventReplay:
			if expected := cursor + 1; step.sequenceNr() != expected {
				return gerrors.NewErrOutOfOrderSequence(a.persistenceID.String(), expected, step.sequenceNr())
			}

			event, err := decodeEvent(step.event)
			if err != nil {
				return err
			}

			state.Apply(event)
			cursor = step.sequenceNr()
			replayed++
			a.logger.Debugf("offered event = %v", event)

		default:
			return fmt.Errorf("unknown recovery step %T", step)
		}
		return nil
	})

	if err == nil {
		err = a.checkHighest(ctx, cursor)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recovery failed")
		return gerrors.NewErrRecoveryFailure(err)
	}

	a.state = state
	a.sequenceNr = cursor
	a.status = ready
	if offered {
		a.snapshotter.lastSaved.Store(cursor - uint64(replayed))
	}

	elapsed := time.Since(start)
	a.metrics.RecordRecovery(ctx, a.persistenceID.String(), replayed, elapsed)
	a.logger.Infof("recovered at sequence number %d (snapshot=%t, replayed=%d) in %s", cursor, offered, replayed, elapsed)
	return nil
}

// checkHighest makes sure no event was left behind, which happens when a snapshot is ahead of the log
func (a *persistentActor) checkHighest(ctx context.Context, cursor uint64) error {
	highest, err := a.eventLog.HighestSequenceNr(ctx, a.persistenceID)
	if err != nil {
		return err
	}

	if highest != cursor {
		return gerrors.NewErrOutOfOrderSequence(a.persistenceID.String(), cursor, highest)
	}
	return nil
}

// handle dispatches a command
func (a *persistentActor) handle(ctx context.Context, command Command) (*Reply, error) {
	if a.status != ready {
		return nil, fmt.Errorf("%w: actor is %s", gerrors.ErrDead, a.status)
	}

	switch command.kind {
	case InspectCommand:
		return a.inspect(ctx), nil
	case CheckpointCommand:
		return a.checkpoint(), nil
	case DomainCommand:
		return a.handleDomain(ctx, command.payload)
	default:
		return nil, fmt.Errorf("%w: kind=%s", gerrors.ErrUnhandled, command.kind)
	}
}

func (a *persistentActor) inspect(ctx context.Context) *Reply {
	state := a.state.Copy()
	a.config.observer.Observe(ctx, a.persistenceID, a.sequenceNr, state)
	return a.reply(0)
}

// checkpoint hands a copy of the state to the snapshotter.
// Commands are handled one at a time so every earlier persist has resolved by now.
// The empty state at sequence number zero is what recovery starts from, so it is not stored.
func (a *persistentActor) checkpoint() *Reply {
	if a.sequenceNr == 0 {
		a.logger.Debug("checkpoint ignored: no event persisted yet")
		return a.reply(0)
	}

	a.snapshotter.Enqueue(a.sequenceNr, a.state.Copy())
	return a.reply(0)
}

// handleDomain persists the events produced by the behavior, then applies them.
// Nothing changes when the append fails.
func (a *persistentActor) handleDomain(ctx context.Context, payload proto.Message) (*Reply, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil domain payload", gerrors.ErrUnhandled)
	}

	events, err := a.behavior.HandleCommand(ctx, payload, a.state)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return a.reply(0), nil
	}

	if err := a.persist(ctx, events); err != nil {
		return nil, err
	}

	a.diverged = true
	previous := a.sequenceNr
	for _, event := range events {
		a.state.Apply(event)
	}
	a.sequenceNr += uint64(len(events))
	a.diverged = false

	if every := a.config.snapshotEvery; every > 0 && previous/every != a.sequenceNr/every {
		a.snapshotter.Enqueue(a.sequenceNr, a.state.Copy())
	}

	return a.reply(len(events)), nil
}

func (a *persistentActor) persist(ctx context.Context, events []proto.Message) error {
	ctx, span := a.tracer.Start(ctx, "PersistentActor.Persist", trace.WithAttributes(
		attribute.String("persistence_id", a.persistenceID.String()),
		attribute.Int("events", len(events)),
	))
	defer span.End()

	records, err := encodeEvents(a.persistenceID, a.sequenceNr+1, events, time.Now().UTC())
	if err == nil {
		err = a.eventLog.Append(ctx, records...)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		a.metrics.RecordPersistFailure(ctx, a.persistenceID.String())
		a.logger.Errorf("failed to persist %d event(s) after sequence number %d: %v", len(events), a.sequenceNr, err)
		return gerrors.NewErrPersistFailure(err)
	}

	a.metrics.RecordPersisted(ctx, a.persistenceID.String(), len(events))
	return nil
}

func (a *persistentActor) reply(persisted int) *Reply {
	return &Reply{
		PersistenceID: a.persistenceID,
		SequenceNr:    a.sequenceNr,
		State:         a.state.Copy(),
		Persisted:     persisted,
	}
}
