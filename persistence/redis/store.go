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

package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/internal/record"
	"github.com/tochemey/eventsourced/persistence"
)

const (
	// DefaultNamespace prefixes every key written by the store
	DefaultNamespace = "eventsourced"
	// pageSize is the number of events fetched per HMGET during replay
	pageSize = 256
)

// Store is a persistence.EventLog and persistence.SnapshotStore backed by Redis.
//
// Layout, for a persistence id <id> and a namespace <ns>:
//
//	<ns>:seq:{<id>}        string, highest sequence number
//	<ns>:events:{<id>}     hash, field = sequence number, value = event record
//	<ns>:snapshots:{<id>}  sorted set, score = sequence number, member = snapshot record
//
// The hash tag keeps the keys of a persistence id on the same cluster slot.
// Appends WATCH the sequence key and write the whole batch in a MULTI/EXEC block.
// The client is owned by the caller and is not closed by Close.
type Store struct {
	client    redis.UniversalClient
	namespace string
	closed    *atomic.Bool
}

// enforce compilation error
var (
	_ persistence.EventLog      = (*Store)(nil)
	_ persistence.SnapshotStore = (*Store)(nil)
)

// Option configures the store
type Option func(*Store)

// WithNamespace sets the key prefix
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		s.namespace = namespace
	}
}

// New creates an instance of Store on the given client
func New(client redis.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client:    client,
		namespace: DefaultNamespace,
		closed:    atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Append writes the batch atomically
func (s *Store) Append(ctx context.Context, events ...*persistence.Event) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	persistenceID, err := persistence.CheckBatch(events)
	if err != nil || len(events) == 0 {
		return err
	}

	fields := make([]any, 0, 2*len(events))
	for _, event := range events {
		value, err := record.EncodeEvent(event)
		if err != nil {
			return err
		}
		fields = append(fields, strconv.FormatUint(event.SequenceNumber, 10), value)
	}

	seqKey := s.seqKey(persistenceID)
	eventsKey := s.eventsKey(persistenceID)
	last := events[len(events)-1].SequenceNumber

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		highest, err := readSequenceNr(ctx, tx, seqKey)
		if err != nil {
			return err
		}

		if err := persistence.CheckContiguous(highest, events...); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, eventsKey, fields...)
			pipe.Set(ctx, seqKey, last, 0)
			return nil
		})
		return err
	}, seqKey)

	if errors.Is(err, redis.TxFailedErr) {
		// another writer moved the sequence number between WATCH and EXEC
		return gerrors.NewErrOutOfOrderSequence(persistenceID.String(), events[0].SequenceNumber, events[0].SequenceNumber)
	}
	return err
}

// ReadFrom returns the events stored after the given sequence number, fetched page by page
func (s *Store) ReadFrom(ctx context.Context, persistenceID persistence.ID, after uint64) (persistence.EventIterator, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	seqKey := s.seqKey(persistenceID)
	eventsKey := s.eventsKey(persistenceID)

	return persistence.NewPagedIterator(ctx, persistenceID, after, pageSize, func(ctx context.Context, after uint64, limit int) ([]*persistence.Event, error) {
		if err := s.ensureOpen(); err != nil {
			return nil, err
		}

		highest, err := readSequenceNr(ctx, s.client, seqKey)
		if err != nil || after >= highest {
			return nil, err
		}

		end := min(after+uint64(limit), highest)
		fields := make([]string, 0, end-after)
		for seq := after + 1; seq <= end; seq++ {
			fields = append(fields, strconv.FormatUint(seq, 10))
		}

		values, err := s.client.HMGet(ctx, eventsKey, fields...).Result()
		if err != nil {
			return nil, err
		}

		page := make([]*persistence.Event, 0, len(values))
		for i, value := range values {
			raw, ok := value.(string)
			if !ok {
				return nil, gerrors.NewErrCorruptRecord(fmt.Errorf("missing event %s", fields[i]))
			}

			event, err := record.DecodeEvent([]byte(raw))
			if err != nil {
				return nil, err
			}
			page = append(page, event)
		}
		return page, nil
	}), nil
}

// HighestSequenceNr returns the sequence number of the last stored event
func (s *Store) HighestSequenceNr(ctx context.Context, persistenceID persistence.ID) (uint64, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}

	if err := persistenceID.Validate(); err != nil {
		return 0, err
	}
	return readSequenceNr(ctx, s.client, s.seqKey(persistenceID))
}

// Save adds the snapshot to the persistence id sorted set, replacing one with the same sequence number
func (s *Store) Save(ctx context.Context, snapshot *persistence.Snapshot) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if err := snapshot.PersistenceID.Validate(); err != nil {
		return err
	}

	value, err := record.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	key := s.snapshotsKey(snapshot.PersistenceID)
	score := strconv.FormatUint(snapshot.SequenceNumber, 10)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, score, score)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(snapshot.SequenceNumber), Member: value})
		return nil
	})
	return err
}

// LoadLatest returns the snapshot with the highest sequence number
func (s *Store) LoadLatest(ctx context.Context, persistenceID persistence.ID) (*persistence.Snapshot, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	values, err := s.client.ZRangeArgs(ctx, redis.ZRangeArgs{
		Key:   s.snapshotsKey(persistenceID),
		Start: 0,
		Stop:  0,
		Rev:   true,
	}).Result()
	if err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return nil, nil
	}
	return record.DecodeSnapshot([]byte(values[0]))
}

// Close marks the store as closed. The redis client is left open.
func (s *Store) Close(context.Context) error {
	s.closed.Store(true)
	return nil
}

func (s *Store) ensureOpen() error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return nil
}

func (s *Store) seqKey(persistenceID persistence.ID) string {
	return fmt.Sprintf("%s:seq:{%s}", s.namespace, persistenceID)
}

func (s *Store) eventsKey(persistenceID persistence.ID) string {
	return fmt.Sprintf("%s:events:{%s}", s.namespace, persistenceID)
}

func (s *Store) snapshotsKey(persistenceID persistence.ID) string {
	return fmt.Sprintf("%s:snapshots:{%s}", s.namespace, persistenceID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readSequenceNr(ctx context.Context, cmd getter, key string) (uint64, error) {
	highest, err := cmd.Get(ctx, key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return highest, err
}
