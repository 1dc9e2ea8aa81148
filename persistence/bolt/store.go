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

package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/internal/record"
	"github.com/tochemey/eventsourced/persistence"
)

const (
	fileMode os.FileMode = 0o600
	// pageSize is the number of events loaded per read transaction during replay
	pageSize = 256
)

var (
	eventsBucket    = []byte("events")
	snapshotsBucket = []byte("snapshots")
	openTimeout     = 5 * time.Second
)

// Store is a single-file persistence.EventLog and persistence.SnapshotStore backed by go.etcd.io/bbolt.
//
// Every persistence id owns a nested bucket under "events" and another under "snapshots".
// Keys are big-endian sequence numbers so that bbolt's byte ordering matches the numeric one.
// bbolt serializes write transactions, which makes the append check and the writes of a
// batch a single atomic unit.
type Store struct {
	db     *bbolt.DB
	path   string
	closed *atomic.Bool
}

// enforce compilation error
var (
	_ persistence.EventLog      = (*Store)(nil)
	_ persistence.SnapshotStore = (*Store)(nil)
)

// Open opens or creates the store file at the given path
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, fileMode, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt store at %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(eventsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing bolt buckets: %w", err)
	}

	return &Store{db: db, path: path, closed: atomic.NewBool(false)}, nil
}

// Path returns the location of the store file
func (s *Store) Path() string {
	return s.path
}

// Append writes the batch in a single bbolt transaction
func (s *Store) Append(ctx context.Context, events ...*persistence.Event) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	persistenceID, err := persistence.CheckBatch(events)
	if err != nil || len(events) == 0 {
		return err
	}

	values := make([][]byte, 0, len(events))
	for _, event := range events {
		value, err := record.EncodeEvent(event)
		if err != nil {
			return err
		}
		values = append(values, value)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(eventsBucket).CreateBucketIfNotExists([]byte(persistenceID))
		if err != nil {
			return err
		}

		if err := persistence.CheckContiguous(lastKey(bucket), events...); err != nil {
			return err
		}

		for i, event := range events {
			if err := bucket.Put(encodeKey(event.SequenceNumber), values[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadFrom returns the events stored after the given sequence number, loaded page by page
func (s *Store) ReadFrom(ctx context.Context, persistenceID persistence.ID, after uint64) (persistence.EventIterator, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	return persistence.NewPagedIterator(ctx, persistenceID, after, pageSize, func(ctx context.Context, after uint64, limit int) ([]*persistence.Event, error) {
		if err := s.ensureOpen(ctx); err != nil {
			return nil, err
		}

		var page []*persistence.Event
		err := s.db.View(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(eventsBucket).Bucket([]byte(persistenceID))
			if bucket == nil {
				return nil
			}

			cursor := bucket.Cursor()
			for key, value := cursor.Seek(encodeKey(after + 1)); key != nil && len(page) < limit; key, value = cursor.Next() {
				event, err := record.DecodeEvent(value)
				if err != nil {
					return err
				}
				page = append(page, event)
			}
			return nil
		})
		return page, err
	}), nil
}

// HighestSequenceNr returns the sequence number of the last stored event
func (s *Store) HighestSequenceNr(ctx context.Context, persistenceID persistence.ID) (uint64, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return 0, err
	}

	if err := persistenceID.Validate(); err != nil {
		return 0, err
	}

	var highest uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket(eventsBucket).Bucket([]byte(persistenceID)); bucket != nil {
			highest = lastKey(bucket)
		}
		return nil
	})
	return highest, err
}

// Save stores the snapshot under its sequence number
func (s *Store) Save(ctx context.Context, snapshot *persistence.Snapshot) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	if err := snapshot.PersistenceID.Validate(); err != nil {
		return err
	}

	value, err := record.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(snapshotsBucket).CreateBucketIfNotExists([]byte(snapshot.PersistenceID))
		if err != nil {
			return err
		}
		return bucket.Put(encodeKey(snapshot.SequenceNumber), value)
	})
}

// LoadLatest returns the snapshot with the highest sequence number
func (s *Store) LoadLatest(ctx context.Context, persistenceID persistence.ID) (*persistence.Snapshot, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	var snapshot *persistence.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(snapshotsBucket).Bucket([]byte(persistenceID))
		if bucket == nil {
			return nil
		}

		key, value := bucket.Cursor().Last()
		if key == nil {
			return nil
		}

		// the value is only valid for the life of the transaction
		decoded, err := record.DecodeSnapshot(value)
		if err != nil {
			return err
		}
		snapshot = decoded
		return nil
	})
	return snapshot, err
}

// Close releases the underlying bbolt handle. The file is kept.
func (s *Store) Close(context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureOpen(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return ctx.Err()
}

func encodeKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func lastKey(bucket *bbolt.Bucket) uint64 {
	key, _ := bucket.Cursor().Last()
	if len(key) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key)
}
