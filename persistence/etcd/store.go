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

package etcd

import (
	"context"
	"fmt"
	"strconv"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/internal/record"
	"github.com/tochemey/eventsourced/persistence"
)

const (
	// DefaultNamespace prefixes every key written by the store
	DefaultNamespace = "/eventsourced"
	// pageSize is the number of events fetched per range request during replay
	pageSize = 256
	// MaxBatchSize is the largest batch accepted by Append.
	// etcd caps the number of operations of a transaction at 128 by default and
	// every append also writes the sequence key.
	MaxBatchSize = 127
)

// Store is a persistence.EventLog and persistence.SnapshotStore backed by etcd.
//
// Layout, for a persistence id <id> and a namespace <ns>:
//
//	<ns>/seq/<id>                  highest sequence number
//	<ns>/events/<id>/<seq>         event record
//	<ns>/snapshots/<id>/<seq>      snapshot record
//
// Sequence numbers are zero padded so that etcd's key order matches the numeric one.
// Appends run in a transaction guarded by the mod revision of the sequence key.
// The client is owned by the caller and is not closed by Close.
type Store struct {
	client    *clientv3.Client
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
func New(client *clientv3.Client, opts ...Option) *Store {
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

// Append writes the batch and the new highest sequence number in a single transaction
func (s *Store) Append(ctx context.Context, events ...*persistence.Event) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	persistenceID, err := persistence.CheckBatch(events)
	if err != nil || len(events) == 0 {
		return err
	}

	if len(events) > MaxBatchSize {
		return fmt.Errorf("etcd: batch of %d events exceeds the limit of %d", len(events), MaxBatchSize)
	}

	seqKey := s.seqKey(persistenceID)
	highest, revision, err := s.readSequenceNr(ctx, seqKey)
	if err != nil {
		return err
	}

	if err := persistence.CheckContiguous(highest, events...); err != nil {
		return err
	}

	ops := make([]clientv3.Op, 0, len(events)+1)
	for _, event := range events {
		value, err := record.EncodeEvent(event)
		if err != nil {
			return err
		}
		ops = append(ops, clientv3.OpPut(s.eventKey(persistenceID, event.SequenceNumber), string(value)))
	}
	last := events[len(events)-1].SequenceNumber
	ops = append(ops, clientv3.OpPut(seqKey, strconv.FormatUint(last, 10)))

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(seqKey), "=", revision)).
		Then(ops...).
		Commit()
	if err != nil {
		return fmt.Errorf("etcd: appending events: %w", err)
	}

	if !resp.Succeeded {
		// another writer moved the sequence key since it was read
		return gerrors.NewErrOutOfOrderSequence(persistenceID.String(), highest+1, events[0].SequenceNumber)
	}
	return nil
}

// ReadFrom returns the events stored after the given sequence number, fetched page by page
func (s *Store) ReadFrom(ctx context.Context, persistenceID persistence.ID, after uint64) (persistence.EventIterator, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	prefix := s.eventsPrefix(persistenceID)
	end := clientv3.GetPrefixRangeEnd(prefix)

	return persistence.NewPagedIterator(ctx, persistenceID, after, pageSize, func(ctx context.Context, after uint64, limit int) ([]*persistence.Event, error) {
		if err := s.ensureOpen(); err != nil {
			return nil, err
		}

		resp, err := s.client.Get(ctx, s.eventKey(persistenceID, after+1),
			clientv3.WithRange(end),
			clientv3.WithLimit(int64(limit)),
			clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
		)
		if err != nil {
			return nil, fmt.Errorf("etcd: reading events: %w", err)
		}

		page := make([]*persistence.Event, 0, len(resp.Kvs))
		for _, kv := range resp.Kvs {
			event, err := record.DecodeEvent(kv.Value)
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

	highest, _, err := s.readSequenceNr(ctx, s.seqKey(persistenceID))
	return highest, err
}

// Save stores the snapshot under its sequence number
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

	if _, err := s.client.Put(ctx, s.snapshotKey(snapshot.PersistenceID, snapshot.SequenceNumber), string(value)); err != nil {
		return fmt.Errorf("etcd: saving snapshot: %w", err)
	}
	return nil
}

// LoadLatest returns the snapshot with the highest sequence number
func (s *Store) LoadLatest(ctx context.Context, persistenceID persistence.ID) (*persistence.Snapshot, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, s.snapshotsPrefix(persistenceID),
		clientv3.WithPrefix(),
		clientv3.WithLimit(1),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortDescend),
	)
	if err != nil {
		return nil, fmt.Errorf("etcd: loading snapshot: %w", err)
	}

	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	return record.DecodeSnapshot(resp.Kvs[0].Value)
}

// Close marks the store as closed. The etcd client is left open.
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

// readSequenceNr returns the highest sequence number and the mod revision of its key, zero when absent
func (s *Store) readSequenceNr(ctx context.Context, key string) (uint64, int64, error) {
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return 0, 0, fmt.Errorf("etcd: reading sequence number: %w", err)
	}

	if len(resp.Kvs) == 0 {
		return 0, 0, nil
	}

	kv := resp.Kvs[0]
	highest, err := strconv.ParseUint(string(kv.Value), 10, 64)
	if err != nil {
		return 0, 0, gerrors.NewErrCorruptRecord(err)
	}
	return highest, kv.ModRevision, nil
}

func (s *Store) seqKey(persistenceID persistence.ID) string {
	return fmt.Sprintf("%s/seq/%s", s.namespace, persistenceID)
}

func (s *Store) eventsPrefix(persistenceID persistence.ID) string {
	return fmt.Sprintf("%s/events/%s/", s.namespace, persistenceID)
}

func (s *Store) eventKey(persistenceID persistence.ID, seq uint64) string {
	return fmt.Sprintf("%s%020d", s.eventsPrefix(persistenceID), seq)
}

func (s *Store) snapshotsPrefix(persistenceID persistence.ID) string {
	return fmt.Sprintf("%s/snapshots/%s/", s.namespace, persistenceID)
}

func (s *Store) snapshotKey(persistenceID persistence.ID, seq uint64) string {
	return fmt.Sprintf("%s%020d", s.snapshotsPrefix(persistenceID), seq)
}
