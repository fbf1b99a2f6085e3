package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	contractx "github.com/finsight-labs/finsight/agent/contract"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transcript_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	stream TEXT NOT NULL,
	kind TEXT NOT NULL,
	turn_seq INTEGER NOT NULL,
	payload TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcript_stream
	ON transcript_entries(role, subject_id, stream, id);
`

// SQLiteStore is the default durable backend: a single file, WAL mode,
// schema applied at open.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply transcript schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, role contractx.Role, subjectID string, entries []contractx.TranscriptEntry) error {
	if err := validateBatch(subjectID, entries); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin append tx: %v", contractx.ErrPersistence, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transcript_entries (role, subject_id, stream, kind, turn_seq, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare append: %v", contractx.ErrPersistence, err)
	}
	defer stmt.Close()

	for _, stream := range []contractx.Stream{contractx.StreamLight, contractx.StreamComplete} {
		for _, e := range filterForStream(entries, stream) {
			ts := e.Timestamp.UTC().Format(time.RFC3339Nano)
			if _, err := stmt.ExecContext(ctx, string(role), subjectID, string(stream), string(e.Kind), e.TurnSeq, e.Payload, ts); err != nil {
				return fmt.Errorf("%w: insert entry: %v", contractx.ErrPersistence, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit append: %v", contractx.ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) ReadAll(ctx context.Context, role contractx.Role, subjectID string, stream contractx.Stream) ([]contractx.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, turn_seq, payload, recorded_at
		FROM transcript_entries
		WHERE role = ? AND subject_id = ? AND stream = ?
		ORDER BY id ASC`,
		string(role), subjectID, string(stream))
	if err != nil {
		return nil, fmt.Errorf("%w: query transcript: %v", contractx.ErrPersistence, err)
	}
	defer rows.Close()

	var out []contractx.TranscriptEntry
	for rows.Next() {
		var (
			kind    string
			turnSeq int
			payload string
			rawTS   string
		)
		if err := rows.Scan(&kind, &turnSeq, &payload, &rawTS); err != nil {
			return nil, fmt.Errorf("%w: scan transcript row: %v", contractx.ErrPersistence, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, rawTS)
		if err != nil {
			return nil, fmt.Errorf("%w: parse entry timestamp %q: %v", contractx.ErrPersistence, rawTS, err)
		}
		out = append(out, contractx.TranscriptEntry{
			Kind:      contractx.EntryKind(kind),
			SubjectID: subjectID,
			Role:      role,
			TurnSeq:   turnSeq,
			Payload:   payload,
			Timestamp: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate transcript rows: %v", contractx.ErrPersistence, err)
	}
	return out, nil
}

var _ contractx.TranscriptStore = (*SQLiteStore)(nil)
