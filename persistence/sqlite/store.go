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

package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/atomic"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/persistence"
)

//go:embed schema.sql
var schema string

// pageSize is the number of events loaded per query during replay
const pageSize = 256

// Store is a persistence.EventLog and persistence.SnapshotStore backed by SQLite.
//
// Events live in the event_journal table and snapshots in the snapshot_store table, both keyed
// by (persistence_id, sequence_nr). Appends run in an immediate transaction so the sequence
// check and the inserts of a batch commit or roll back together.
type Store struct {
	db     *sql.DB
	closed *atomic.Bool
}

// enforce compilation error
var (
	_ persistence.EventLog      = (*Store)(nil)
	_ persistence.SnapshotStore = (*Store)(nil)
)

// Open opens a SQLite store at the provided path and creates its tables
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", filepath.Clean(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single connection serializes writers and keeps the in-process view consistent
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &Store{db: db, closed: atomic.NewBool(false)}, nil
}

// Append inserts the batch of events in a single transaction
func (s *Store) Append(ctx context.Context, events ...*persistence.Event) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	persistenceID, err := persistence.CheckBatch(events)
	if err != nil || len(events) == 0 {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	highest, err := highestSequenceNr(ctx, tx, persistenceID)
	if err != nil {
		return err
	}

	if err := persistence.CheckContiguous(highest, events...); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO event_journal (persistence_id, sequence_nr, manifest, payload, timestamp) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.ExecContext(ctx,
			event.PersistenceID.String(),
			int64(event.SequenceNumber),
			event.Manifest,
			nonNil(event.Payload),
			event.Timestamp.UnixNano(),
		); err != nil {
			if isConstraintError(err) {
				return gerrors.NewErrOutOfOrderSequence(persistenceID.String(), highest+1, events[0].SequenceNumber)
			}
			return fmt.Errorf("append event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isConstraintError(err) {
			return gerrors.NewErrOutOfOrderSequence(persistenceID.String(), highest+1, events[0].SequenceNumber)
		}
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// ReadFrom returns the events stored after the given sequence number, queried page by page
func (s *Store) ReadFrom(ctx context.Context, persistenceID persistence.ID, after uint64) (persistence.EventIterator, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	return persistence.NewPagedIterator(ctx, persistenceID, after, pageSize, func(ctx context.Context, after uint64, limit int) ([]*persistence.Event, error) {
		if err := s.ensureOpen(); err != nil {
			return nil, err
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT sequence_nr, manifest, payload, timestamp FROM event_journal
			WHERE persistence_id = ? AND sequence_nr > ?
			ORDER BY sequence_nr ASC LIMIT ?`,
			persistenceID.String(), int64(after), limit)
		if err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}
		defer rows.Close()

		page := make([]*persistence.Event, 0, limit)
		for rows.Next() {
			var (
				seq       int64
				timestamp int64
				event     = &persistence.Event{PersistenceID: persistenceID}
			)
			if err := rows.Scan(&seq, &event.Manifest, &event.Payload, &timestamp); err != nil {
				return nil, gerrors.NewErrCorruptRecord(err)
			}
			event.SequenceNumber = uint64(seq)
			event.Timestamp = fromNanos(timestamp)
			page = append(page, event)
		}
		return page, rows.Err()
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
	return highestSequenceNr(ctx, s.db, persistenceID)
}

// Save stores the snapshot, replacing any snapshot with the same sequence number
func (s *Store) Save(ctx context.Context, snapshot *persistence.Snapshot) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if err := snapshot.PersistenceID.Validate(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshot_store (persistence_id, sequence_nr, manifest, encoding, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.PersistenceID.String(),
		int64(snapshot.SequenceNumber),
		snapshot.Manifest,
		snapshot.Encoding,
		nonNil(snapshot.Payload),
		snapshot.Timestamp.UnixNano(),
	); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
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

	var (
		seq       int64
		timestamp int64
		snapshot  = &persistence.Snapshot{PersistenceID: persistenceID}
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT sequence_nr, manifest, encoding, payload, timestamp FROM snapshot_store
		WHERE persistence_id = ? ORDER BY sequence_nr DESC LIMIT 1`,
		persistenceID.String()).
		Scan(&seq, &snapshot.Manifest, &snapshot.Encoding, &snapshot.Payload, &timestamp)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	snapshot.SequenceNumber = uint64(seq)
	snapshot.Timestamp = fromNanos(timestamp)
	return snapshot, nil
}

// Close closes the underlying SQLite database
func (s *Store) Close(context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureOpen() error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func highestSequenceNr(ctx context.Context, q queryer, persistenceID persistence.ID) (uint64, error) {
	var highest sql.NullInt64
	if err := q.QueryRowContext(ctx,
		`SELECT MAX(sequence_nr) FROM event_journal WHERE persistence_id = ?`,
		persistenceID.String()).Scan(&highest); err != nil {
		return 0, fmt.Errorf("get highest sequence number: %w", err)
	}
	return uint64(highest.Int64), nil
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

// nonNil keeps NOT NULL blob columns satisfied for empty payloads
func nonNil(payload []byte) []byte {
	if payload == nil {
		return []byte{}
	}
	return payload
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
