package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	contractx "github.com/finsight-labs/finsight/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type transcriptRow struct {
	bun.BaseModel `bun:"table:transcript_entries"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Role       string    `bun:"role,notnull"`
	SubjectID  string    `bun:"subject_id,notnull"`
	Stream     string    `bun:"stream,notnull"`
	Kind       string    `bun:"kind,notnull"`
	TurnSeq    int       `bun:"turn_seq,notnull"`
	Payload    string    `bun:"payload,notnull"`
	RecordedAt time.Time `bun:"recorded_at,notnull"`
}

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// PostgresStore persists transcripts in Postgres through bun, for
// deployments where transcript history outlives a single host.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contractx.ErrValidation)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	if _, err := db.NewCreateTable().
		Model((*transcriptRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create transcript table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Append(ctx context.Context, role contractx.Role, subjectID string, entries []contractx.TranscriptEntry) error {
	if err := validateBatch(subjectID, entries); err != nil {
		return err
	}

	var rows []transcriptRow
	for _, stream := range []contractx.Stream{contractx.StreamLight, contractx.StreamComplete} {
		for _, e := range filterForStream(entries, stream) {
			rows = append(rows, transcriptRow{
				Role:       string(role),
				SubjectID:  subjectID,
				Stream:     string(stream),
				Kind:       string(e.Kind),
				TurnSeq:    e.TurnSeq,
				Payload:    e.Payload,
				RecordedAt: e.Timestamp.UTC(),
			})
		}
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: append transcript batch: %v", contractx.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) ReadAll(ctx context.Context, role contractx.Role, subjectID string, stream contractx.Stream) ([]contractx.TranscriptEntry, error) {
	var rows []transcriptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("role = ?", string(role)).
		Where("subject_id = ?", subjectID).
		Where("stream = ?", string(stream)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read transcript: %v", contractx.ErrPersistence, err)
	}

	out := make([]contractx.TranscriptEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.TranscriptEntry{
			Kind:      contractx.EntryKind(r.Kind),
			SubjectID: subjectID,
			Role:      role,
			TurnSeq:   r.TurnSeq,
			Payload:   r.Payload,
			Timestamp: r.RecordedAt,
		})
	}
	return out, nil
}

var _ contractx.TranscriptStore = (*PostgresStore)(nil)
