// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/petar-djukic/go-editfiles/pkg/types"

	_ "modernc.org/sqlite"
)

const writeTimeout = 5 * time.Second

// ErrRequestNotFound is returned when no request has the given id.
var ErrRequestNotFound = errors.New("audit request not found")

// Request is one recorded edit request.
type Request struct {
	ID           string
	Instructions string
	CreatedAt    time.Time
	CompletedAt  time.Time // Zero while the request is running
	Output       string
	Error        string
	Chunks       []Chunk // Only filled by SQLiteStore.Request
}

// Response returns the full model response.
func (r *Request) Response() string {
	var b strings.Builder
	for _, c := range r.Chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

// Chunk is one streamed piece of a model response.
type Chunk struct {
	Seq     int
	Text    string
	Actions []string // Actions completed by this chunk, as "kind path"
	Sources []string // Verbatim block text of each action, parallel to Actions
}

// SQLiteStore persists audit records in SQLite. Chunk text is stored
// gzipped. Safe for concurrent use.
type SQLiteStore struct {
	db  *sql.DB
	log logrus.FieldLogger

	mu  sync.Mutex
	seq map[string]int
}

// OpenSQLite opens (or creates) the audit database at path in WAL mode.
func OpenSQLite(path string, log logrus.FieldLogger) (*SQLiteStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The driver serializes writers; more connections only add lock errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:  db,
		log: log.WithField("component", "audit"),
		seq: make(map[string]int),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	// Additive migrations for existing databases.
	for _, m := range []string{
		`ALTER TABLE chunks ADD COLUMN sources TEXT NOT NULL DEFAULT '[]'`,
	} {
		_, _ = s.db.Exec(m) // Ignore "duplicate column" errors.
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
    id TEXT PRIMARY KEY,
    instructions TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    completed_at INTEGER,
    output TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS chunks (
    request_id TEXT NOT NULL REFERENCES requests(id),
    seq INTEGER NOT NULL,
    data BLOB NOT NULL,
    actions TEXT NOT NULL DEFAULT '[]',
    sources TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (request_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);
`

func (s *SQLiteStore) NewRequest(instructions string) string {
	id := uuid.NewString()
	s.adoptRequest(id, instructions)
	return id
}

func (s *SQLiteStore) adoptRequest(id, instructions string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, instructions, created_at) VALUES (?, ?, ?)`,
		id, instructions, time.Now().UnixNano())
	if err != nil {
		s.log.WithError(err).WithField("request_id", id).Warn("recording audit request")
	}
}

func (s *SQLiteStore) RecordChunk(requestID, chunk string, units []types.ParsedUnit) {
	s.mu.Lock()
	seq := s.seq[requestID]
	s.seq[requestID] = seq + 1
	s.mu.Unlock()

	if err := s.insertChunk(requestID, seq, chunk, units); err != nil {
		s.log.WithError(err).WithField("request_id", requestID).Warn("recording audit chunk")
	}
}

func (s *SQLiteStore) insertChunk(requestID string, seq int, chunk string, units []types.ParsedUnit) error {
	data, err := compress([]byte(chunk))
	if err != nil {
		return fmt.Errorf("compressing chunk: %w", err)
	}
	actions := make([]string, len(units))
	sources := make([]string, len(units))
	for i, u := range units {
		actions[i] = u.Action.String()
		sources[i] = u.Source
	}
	encodedActions, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	encodedSources, err := json.Marshal(sources)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunks (request_id, seq, data, actions, sources) VALUES (?, ?, ?, ?, ?)`,
		requestID, seq, data, string(encodedActions), string(encodedSources))
	return err
}

func (s *SQLiteStore) SetOutput(requestID, output string, err error) {
	s.mu.Lock()
	delete(s.seq, requestID)
	s.mu.Unlock()

	var errText string
	if err != nil {
		errText = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, dbErr := s.db.ExecContext(ctx,
		`UPDATE requests SET completed_at=?, output=?, error=? WHERE id=?`,
		time.Now().UnixNano(), output, errText, requestID)
	if dbErr != nil {
		s.log.WithError(dbErr).WithField("request_id", requestID).Warn("recording audit output")
	}
}

// Requests returns the most recent requests, newest first, without chunks.
func (s *SQLiteStore) Requests(ctx context.Context, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, instructions, created_at, completed_at, output, error
		 FROM requests ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Request returns one request with its chunks in stream order.
func (s *SQLiteStore) Request(ctx context.Context, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, instructions, created_at, completed_at, output, error
		 FROM requests WHERE id=?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, data, actions, sources FROM chunks WHERE request_id=? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c       Chunk
			data    []byte
			actions string
			sources string
		)
		if err := rows.Scan(&c.Seq, &data, &actions, &sources); err != nil {
			return nil, err
		}
		text, err := decompress(data)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.Seq, err)
		}
		c.Text = string(text)
		if err := json.Unmarshal([]byte(actions), &c.Actions); err != nil {
			return nil, fmt.Errorf("chunk %d actions: %w", c.Seq, err)
		}
		if err := json.Unmarshal([]byte(sources), &c.Sources); err != nil {
			return nil, fmt.Errorf("chunk %d sources: %w", c.Seq, err)
		}
		r.Chunks = append(r.Chunks, c)
	}
	return r, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*Request, error) {
	var (
		r         Request
		created   int64
		completed sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Instructions, &created, &completed, &r.Output, &r.Error); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created)
	if completed.Valid {
		r.CompletedAt = time.Unix(0, completed.Int64)
	}
	return &r, nil
}
