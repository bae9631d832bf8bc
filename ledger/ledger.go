// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ledger records which front-end orders have been written to SAP
// B1 so that a replayed insert returns the existing DocEntry instead of
// creating a second sales order.
//
// An insert first reserves the front-end id with a pending row. The
// primary key on fe_order_id guarantees that only one caller, across all
// gateway instances, holds the reservation.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"b1link/connectors/base"
)

// Order states
const (
	StatusPending   = "pending"
	StatusInserted  = "inserted"
	StatusCancelled = "cancelled"
)

// Dialect selects placeholder and upsert syntax
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// Entry is one row of b1_order_sync
type Entry struct {
	FrontendID string    `json:"fe_order_id"`
	DocEntry   string    `json:"doc_entry"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists order sync state in PostgreSQL or MySQL
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
	now     func() time.Time
}

// Open connects to the ledger database. MySQL DSNs need parseTime=true.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dialect != Postgres && dialect != MySQL {
		return nil, fmt.Errorf("unsupported ledger dialect: %q", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	return New(db, dialect), nil
}

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  log.New(log.Writer(), "[B1_LEDGER] ", log.LstdFlags),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnsureSchema creates the b1_order_sync table if it doesn't exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS b1_order_sync (
		fe_order_id VARCHAR(100) NOT NULL PRIMARY KEY,
		doc_entry VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Println("Order sync schema initialized")
	return nil
}

// Lookup returns the entry for a front-end order id, or nil if the order
// has never been synced.
func (s *Store) Lookup(ctx context.Context, feOrderID string) (*Entry, error) {
	query := fmt.Sprintf(`SELECT fe_order_id, doc_entry, status, created_at, updated_at
		FROM b1_order_sync WHERE fe_order_id = %s`, s.placeholder(1))

	var e Entry
	err := s.db.QueryRowContext(ctx, query, feOrderID).Scan(
		&e.FrontendID,
		&e.DocEntry,
		&e.Status,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up order %s: %w", feOrderID, err)
	}
	return &e, nil
}

// Reserve inserts a pending row for the order. It reports false when a
// row already exists, whatever its status.
func (s *Store) Reserve(ctx context.Context, feOrderID string) (bool, error) {
	var query string
	switch s.dialect {
	case MySQL:
		// Without CLIENT_FOUND_ROWS an unchanged duplicate affects 0 rows
		query = `INSERT INTO b1_order_sync (fe_order_id, doc_entry, status, created_at, updated_at)
		VALUES (?, '', ?, ?, ?)
		ON DUPLICATE KEY UPDATE fe_order_id = fe_order_id`
	default:
		query = `INSERT INTO b1_order_sync (fe_order_id, doc_entry, status, created_at, updated_at)
		VALUES ($1, '', $2, $3, $4)
		ON CONFLICT (fe_order_id) DO NOTHING`
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx, query, feOrderID, StatusPending, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to reserve order %s: %w", feOrderID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to reserve order %s: %w", feOrderID, err)
	}

	if n == 1 {
		s.logger.Printf("Reserved order %s", base.SanitizeLogString(feOrderID))
	}
	return n == 1, nil
}

// Claim moves an existing entry back to pending, provided nobody changed
// it since it was read. It is used to retry cancelled orders and to take
// over reservations left behind by a crashed insert.
func (s *Store) Claim(ctx context.Context, entry *Entry) (bool, error) {
	if entry == nil {
		return false, errors.New("cannot claim a nil ledger entry")
	}

	query := fmt.Sprintf(`UPDATE b1_order_sync SET status = %s, updated_at = %s
		WHERE fe_order_id = %s AND status = %s AND updated_at = %s`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5))

	result, err := s.db.ExecContext(ctx, query, StatusPending, s.now(), entry.FrontendID, entry.Status, entry.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim order %s: %w", entry.FrontendID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim order %s: %w", entry.FrontendID, err)
	}

	if n == 1 {
		s.logger.Printf("Claimed %s order %s", entry.Status, base.SanitizeLogString(entry.FrontendID))
	}
	return n == 1, nil
}

// Release drops a pending reservation after a failed insert so that the
// next attempt can reserve the order again.
func (s *Store) Release(ctx context.Context, feOrderID string) error {
	query := fmt.Sprintf(`DELETE FROM b1_order_sync WHERE fe_order_id = %s AND status = %s`,
		s.placeholder(1), s.placeholder(2))

	if _, err := s.db.ExecContext(ctx, query, feOrderID, StatusPending); err != nil {
		return fmt.Errorf("failed to release order %s: %w", feOrderID, err)
	}

	s.logger.Printf("Released order %s", base.SanitizeLogString(feOrderID))
	return nil
}

// RecordInsert marks an order as inserted with its DocEntry
func (s *Store) RecordInsert(ctx context.Context, feOrderID, docEntry string) error {
	return s.upsert(ctx, feOrderID, docEntry, StatusInserted)
}

// RecordCancel marks an order as cancelled
func (s *Store) RecordCancel(ctx context.Context, feOrderID, docEntry string) error {
	return s.upsert(ctx, feOrderID, docEntry, StatusCancelled)
}

// Close closes the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) upsert(ctx context.Context, feOrderID, docEntry, status string) error {
	var query string
	switch s.dialect {
	case MySQL:
		query = `INSERT INTO b1_order_sync (fe_order_id, doc_entry, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE doc_entry = VALUES(doc_entry), status = VALUES(status), updated_at = VALUES(updated_at)`
	default:
		query = `INSERT INTO b1_order_sync (fe_order_id, doc_entry, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fe_order_id) DO UPDATE SET
			doc_entry = EXCLUDED.doc_entry,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx, query, feOrderID, docEntry, status, now, now); err != nil {
		return fmt.Errorf("failed to record %s order %s: %w", status, feOrderID, err)
	}

	s.logger.Printf("Recorded order %s as %s (DocEntry %s)", base.SanitizeLogString(feOrderID), status, docEntry)
	return nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == MySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}
