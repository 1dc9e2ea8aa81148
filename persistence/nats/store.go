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

package nats

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/internal/record"
	"github.com/tochemey/eventsourced/persistence"
)

const (
	// DefaultPrefix is the subject prefix of the events stream
	DefaultPrefix = "eventsourced"
	// DefaultStream is the name of the JetStream stream holding the events
	DefaultStream = "EVENTSOURCED_EVENTS"
	// DefaultBucket is the name of the JetStream key-value bucket holding the snapshots
	DefaultBucket = "EVENTSOURCED_SNAPSHOTS"

	// pageSize is the number of events gathered per page during replay
	pageSize = 256
	// maxRevisionRetries bounds the optimistic updates of the latest snapshot pointer
	maxRevisionRetries = 5

	// headers carrying the sequence numbers of the first and last event of a batch
	firstSeqHeader = "Eventsourced-First-Seq"
	lastSeqHeader  = "Eventsourced-Last-Seq"
)

// Store is a persistence.EventLog and persistence.SnapshotStore backed by NATS JetStream.
//
// Every append publishes a single message holding the whole batch on the subject
// <prefix>.events.<id>, guarded by the expected last sequence of that subject. The batch
// is therefore stored atomically and concurrent writers of the same id are rejected.
// The message headers carry the range of the batch so that replay can seek to the batch
// holding a given sequence number without reading the ones before it.
// Snapshots are kept in a key-value bucket under snapshots.<id>.<seq>, with a
// snapshots.<id>.latest pointer that only ever moves forward.
// The connection is owned by the caller and is not closed by Close.
type Store struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	kv     jetstream.KeyValue
	closed *atomic.Bool

	prefix     string
	streamName string
	bucket     string
	storage    jetstream.StorageType
	replicas   int
}

// enforce compilation error
var (
	_ persistence.EventLog      = (*Store)(nil)
	_ persistence.SnapshotStore = (*Store)(nil)
)

// Option configures the store
type Option func(*Store)

// WithPrefix sets the subject prefix of the events
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithStream sets the name of the events stream
func WithStream(name string) Option {
	return func(s *Store) {
		s.streamName = name
	}
}

// WithBucket sets the name of the snapshots bucket
func WithBucket(name string) Option {
	return func(s *Store) {
		s.bucket = name
	}
}

// WithStorage sets the storage type of the stream and the bucket
func WithStorage(storage jetstream.StorageType) Option {
	return func(s *Store) {
		s.storage = storage
	}
}

// WithReplicas sets the number of replicas of the stream and the bucket
func WithReplicas(replicas int) Option {
	return func(s *Store) {
		s.replicas = replicas
	}
}

// New creates the events stream and the snapshots bucket when missing and returns the store
func New(ctx context.Context, js jetstream.JetStream, opts ...Option) (*Store, error) {
	store := &Store{
		js:         js,
		closed:     atomic.NewBool(false),
		prefix:     DefaultPrefix,
		streamName: DefaultStream,
		bucket:     DefaultBucket,
		storage:    jetstream.FileStorage,
		replicas:   1,
	}

	for _, opt := range opts {
		opt(store)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      store.streamName,
		Subjects:  []string{store.prefix + ".events.>"},
		Storage:   store.storage,
		Replicas:  store.replicas,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: creating stream %s: %w", store.streamName, err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   store.bucket,
		Storage:  store.storage,
		Replicas: store.replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: creating bucket %s: %w", store.bucket, err)
	}

	store.stream = stream
	store.kv = kv
	return store, nil
}

// Append publishes the batch as a single message
func (s *Store) Append(ctx context.Context, events ...*persistence.Event) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	persistenceID, err := persistence.CheckBatch(events)
	if err != nil || len(events) == 0 {
		return err
	}

	subject := s.subject(persistenceID)
	highest, lastStreamSeq, err := s.lastBatch(ctx, subject)
	if err != nil {
		return err
	}

	if err := persistence.CheckContiguous(highest, events...); err != nil {
		return err
	}

	data, err := record.EncodeBatch(events)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(firstSeqHeader, strconv.FormatUint(events[0].SequenceNumber, 10))
	msg.Header.Set(lastSeqHeader, strconv.FormatUint(events[len(events)-1].SequenceNumber, 10))

	if _, err := s.js.PublishMsg(ctx, msg, jetstream.WithExpectLastSequencePerSubject(lastStreamSeq)); err != nil {
		if isWrongLastSequence(err) {
			return gerrors.NewErrOutOfOrderSequence(persistenceID.String(), highest+1, events[0].SequenceNumber)
		}
		return fmt.Errorf("nats: publishing on %s: %w", subject, err)
	}
	return nil
}

// ReadFrom walks the batches published on the persistence id subject, starting with the one
// holding the event right after the given sequence number
func (s *Store) ReadFrom(ctx context.Context, persistenceID persistence.ID, after uint64) (persistence.EventIterator, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	subject := s.subject(persistenceID)
	// stream position of the next batch to read
	next, err := s.seek(ctx, subject, after)
	if err != nil {
		return nil, err
	}

	return persistence.NewPagedIterator(ctx, persistenceID, after, pageSize, func(ctx context.Context, after uint64, limit int) ([]*persistence.Event, error) {
		if err := s.ensureOpen(); err != nil {
			return nil, err
		}

		var page []*persistence.Event
		for len(page) < limit {
			msg, err := s.stream.GetMsg(ctx, next, jetstream.WithGetMsgSubject(subject))
			if errors.Is(err, jetstream.ErrMsgNotFound) {
				return page, nil
			}
			if err != nil {
				return nil, fmt.Errorf("nats: reading %s: %w", subject, err)
			}

			next = msg.Sequence + 1
			batch, err := record.DecodeBatch(msg.Data)
			if err != nil {
				return nil, err
			}

			for _, event := range batch {
				if event.SequenceNumber > after {
					page = append(page, event)
				}
			}
		}
		return page, nil
	}), nil
}

// HighestSequenceNr returns the sequence number of the last event of the last batch
func (s *Store) HighestSequenceNr(ctx context.Context, persistenceID persistence.ID) (uint64, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}

	if err := persistenceID.Validate(); err != nil {
		return 0, err
	}

	highest, _, err := s.lastBatch(ctx, s.subject(persistenceID))
	return highest, err
}

// Save stores the snapshot under its own key and moves the latest pointer forward
func (s *Store) Save(ctx context.Context, snapshot *persistence.Snapshot) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if err := snapshot.PersistenceID.Validate(); err != nil {
		return err
	}

	data, err := record.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	if _, err := s.kv.Put(ctx, s.snapshotKey(snapshot.PersistenceID, snapshot.SequenceNumber), data); err != nil {
		return fmt.Errorf("nats: saving snapshot: %w", err)
	}

	latestKey := s.latestKey(snapshot.PersistenceID)
	value := []byte(strconv.FormatUint(snapshot.SequenceNumber, 10))

	for attempt := 0; attempt < maxRevisionRetries; attempt++ {
		entry, err := s.kv.Get(ctx, latestKey)
		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
			_, err = s.kv.Create(ctx, latestKey, value)
		case err != nil:
			return fmt.Errorf("nats: reading latest snapshot: %w", err)
		default:
			current, perr := strconv.ParseUint(string(entry.Value()), 10, 64)
			if perr != nil {
				return gerrors.NewErrCorruptRecord(perr)
			}
			// an older snapshot stays in history without shadowing the latest
			if current >= snapshot.SequenceNumber {
				return nil
			}
			_, err = s.kv.Update(ctx, latestKey, value, entry.Revision())
		}

		if err == nil {
			return nil
		}

		if !isRevisionConflict(err) {
			return fmt.Errorf("nats: moving latest snapshot: %w", err)
		}
	}
	return fmt.Errorf("nats: moving latest snapshot: too many concurrent updates")
}

// LoadLatest follows the latest pointer of the persistence id
func (s *Store) LoadLatest(ctx context.Context, persistenceID persistence.ID) (*persistence.Snapshot, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	entry, err := s.kv.Get(ctx, s.latestKey(persistenceID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nats: reading latest snapshot: %w", err)
	}

	seq, err := strconv.ParseUint(string(entry.Value()), 10, 64)
	if err != nil {
		return nil, gerrors.NewErrCorruptRecord(err)
	}

	entry, err = s.kv.Get(ctx, s.snapshotKey(persistenceID, seq))
	if err != nil {
		return nil, fmt.Errorf("nats: reading snapshot %d: %w", seq, err)
	}
	return record.DecodeSnapshot(entry.Value())
}

// Close marks the store as closed. The connection is left open.
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

// lastBatch returns the highest event sequence number on the subject and the stream sequence of its message
func (s *Store) lastBatch(ctx context.Context, subject string) (highest, streamSeq uint64, err error) {
	msg, err := s.stream.GetLastMsgForSubject(ctx, subject)
	if errors.Is(err, jetstream.ErrMsgNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("nats: reading last message of %s: %w", subject, err)
	}

	_, highest, err = batchRange(msg)
	if err != nil {
		return 0, 0, err
	}
	return highest, msg.Sequence, nil
}

// seek returns the stream position of the batch holding the event after the given sequence number.
// Batches of a subject are stored in ascending order, so the position is found with a binary
// search over the stream.
func (s *Store) seek(ctx context.Context, subject string, after uint64) (uint64, error) {
	if after == 0 {
		return 1, nil
	}

	last, err := s.stream.GetLastMsgForSubject(ctx, subject)
	if errors.Is(err, jetstream.ErrMsgNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("nats: reading last message of %s: %w", subject, err)
	}

	first, _, err := batchRange(last)
	if err != nil {
		return 0, err
	}

	target := after + 1
	if first <= target {
		return last.Sequence, nil
	}

	// start is the last known batch whose first event is at or below the target
	var start, lo, hi uint64 = 1, 1, last.Sequence - 1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		msg, err := s.stream.GetMsg(ctx, mid, jetstream.WithGetMsgSubject(subject))
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			hi = mid - 1
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("nats: reading %s: %w", subject, err)
		}

		first, _, err := batchRange(msg)
		if err != nil {
			return 0, err
		}

		if first <= target {
			start, lo = msg.Sequence, msg.Sequence+1
			continue
		}
		hi = mid - 1
	}
	return start, nil
}

// batchRange returns the first and last event sequence numbers of a batch message.
// The payload is only decoded when the headers are missing.
func batchRange(msg *jetstream.RawStreamMsg) (first, last uint64, err error) {
	first, firstErr := strconv.ParseUint(msg.Header.Get(firstSeqHeader), 10, 64)
	last, lastErr := strconv.ParseUint(msg.Header.Get(lastSeqHeader), 10, 64)
	if firstErr == nil && lastErr == nil {
		return first, last, nil
	}

	batch, err := record.DecodeBatch(msg.Data)
	if err != nil {
		return 0, 0, err
	}

	if len(batch) == 0 {
		return 0, 0, nil
	}
	return batch[0].SequenceNumber, batch[len(batch)-1].SequenceNumber, nil
}

// token turns a persistence id into a single subject or key token
func token(persistenceID persistence.ID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(persistenceID))
}

func (s *Store) subject(persistenceID persistence.ID) string {
	return s.prefix + ".events." + token(persistenceID)
}

func (s *Store) snapshotKey(persistenceID persistence.ID, seq uint64) string {
	return fmt.Sprintf("snapshots.%s.%020d", token(persistenceID), seq)
}

func (s *Store) latestKey(persistenceID persistence.ID) string {
	return fmt.Sprintf("snapshots.%s.latest", token(persistenceID))
}

func isWrongLastSequence(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// isRevisionConflict returns true when the error indicates a revision mismatch
func isRevisionConflict(err error) bool {
	return errors.Is(err, jetstream.ErrKeyExists) || isWrongLastSequence(err)
}
