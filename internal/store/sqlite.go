package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/raphaelgruber/legalchat/internal/models"
)

// SQLiteStore persists conversations in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at dsn and applies the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			conv_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			turn_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			source TEXT NOT NULL,
			language TEXT NOT NULL,
			intent TEXT NOT NULL DEFAULT '',
			offer_id TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL,
			PRIMARY KEY (conv_id, seq),
			FOREIGN KEY (conv_id) REFERENCES conversations(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS offers (
			conv_id TEXT NOT NULL,
			offer_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			state TEXT NOT NULL,
			query TEXT NOT NULL,
			findings_json TEXT NOT NULL DEFAULT '{}',
			summary TEXT NOT NULL DEFAULT '',
			case_count INTEGER NOT NULL DEFAULT 0,
			language TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			PRIMARY KEY (conv_id, offer_id),
			FOREIGN KEY (conv_id) REFERENCES conversations(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS offers_by_state ON offers(conv_id, state);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("sqlite store: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id models.ConversationID) (*models.ConversationState, error) {
	state := models.NewConversationState(id)

	err := s.db.QueryRowContext(ctx, `SELECT version FROM conversations WHERE id = ?`, string(id)).Scan(&state.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	turns, err := s.loadTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	offers, err := s.loadOffers(ctx, id)
	if err != nil {
		return nil, err
	}
	state.Turns = turns
	state.Offers = offers
	return state, nil
}

func (s *SQLiteStore) loadTurns(ctx context.Context, id models.ConversationID) ([]models.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_id, role, text, source, language, intent, offer_id, created_at_ms
		FROM turns WHERE conv_id = ? ORDER BY seq ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []models.Turn
	for rows.Next() {
		var (
			t  models.Turn
			ms int64
		)
		if err := rows.Scan(&t.ID, &t.Role, &t.Text, &t.Source, &t.Language, &t.Intent, &t.OfferID, &ms); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Timestamp = time.UnixMilli(ms).UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) loadOffers(ctx context.Context, id models.ConversationID) ([]models.OfferRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT offer_id, state, query, findings_json, summary, case_count, language, created_at_ms, updated_at_ms
		FROM offers WHERE conv_id = ? ORDER BY ordinal ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var offers []models.OfferRecord
	for rows.Next() {
		var (
			o                  models.OfferRecord
			findings           string
			createdMs, updated int64
		)
		if err := rows.Scan(&o.ID, &o.State, &o.Query, &findings, &o.Summary, &o.CaseCount, &o.Language, &createdMs, &updated); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		if err := json.Unmarshal([]byte(findings), &o.Findings); err != nil {
			return nil, fmt.Errorf("decode findings for offer %s: %w", o.ID, err)
		}
		o.CreatedAt = time.UnixMilli(createdMs).UTC()
		o.UpdatedAt = time.UnixMilli(updated).UTC()
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (s *SQLiteStore) Commit(ctx context.Context, id models.ConversationID, expectedVersion int64, m models.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := bumpVersion(ctx, tx, id, expectedVersion); err != nil {
		return err
	}
	if err := appendTurns(ctx, tx, id, m.Turns); err != nil {
		return err
	}
	if err := upsertOffers(ctx, tx, id, m.Offers); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation %s: %w", id, err)
	}
	return nil
}

func bumpVersion(ctx context.Context, tx *sql.Tx, id models.ConversationID, expected int64) error {
	now := time.Now().UnixMilli()

	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO conversations (id, version, updated_at_ms) VALUES (?, 1, ?)
			ON CONFLICT(id) DO NOTHING`, string(id), now)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE conversations SET version = version + 1, updated_at_ms = ?
			WHERE id = ? AND version = ?`, now, string(id), expected)
	}
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s moved past version %d", ErrStateConflict, id, expected)
	}
	return nil
}

func appendTurns(ctx context.Context, tx *sql.Tx, id models.ConversationID, turns []models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM turns WHERE conv_id = ?`, string(id)).Scan(&next); err != nil {
		return fmt.Errorf("next turn seq: %w", err)
	}
	for _, t := range turns {
		next++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO turns (conv_id, seq, turn_id, role, text, source, language, intent, offer_id, created_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(id), next, t.ID, string(t.Role), t.Text, string(t.Source), string(t.Language),
			string(t.Intent), t.OfferID, t.Timestamp.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}
	return nil
}

func upsertOffers(ctx context.Context, tx *sql.Tx, id models.ConversationID, offers []models.OfferRecord) error {
	for _, o := range offers {
		findings, err := json.Marshal(o.Findings)
		if err != nil {
			return fmt.Errorf("encode findings for offer %s: %w", o.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO offers (conv_id, offer_id, ordinal, state, query, findings_json, summary, case_count, language, created_at_ms, updated_at_ms)
			VALUES (?, ?, (SELECT COUNT(*) FROM offers WHERE conv_id = ?), ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conv_id, offer_id) DO UPDATE SET
				state = excluded.state,
				findings_json = excluded.findings_json,
				updated_at_ms = excluded.updated_at_ms`,
			string(id), o.ID, string(id), string(o.State), o.Query, string(findings), o.Summary, o.CaseCount,
			string(o.Language), o.CreatedAt.UnixMilli(), o.UpdatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("upsert offer %s: %w", o.ID, err)
		}
	}
	return nil
}
