package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/pkg/chat"
)

// SQLite is the durable Store implementation.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLite opens (or creates) the database at path and initializes the
// schema. WAL mode is enabled for concurrent readers.
func NewSQLite(path string, logger zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLite{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("Session store opened")
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner, updated_at);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			mode TEXT,
			persona_id TEXT,
			error_flag INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession allocates a new session row for owner.
func (s *SQLite) CreateSession(ctx context.Context, owner, title string) (string, error) {
	if owner == "" {
		return "", chat.NewStorageError("create", errors.New("owner cannot be empty"))
	}
	if title == "" {
		title = chat.DefaultTitle
	}

	id := uuid.New().String()
	now := time.Now().UnixMilli()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, owner, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, owner, title, now, now)
	if err != nil {
		return "", chat.NewStorageError("create", err)
	}

	s.logger.Debug().Str("session_id", id).Str("owner", owner).Msg("Session created")
	return id, nil
}

// AppendMessage appends msg to the session and bumps updated_at, in one
// transaction so a listing never sees a count without the timestamp.
func (s *SQLite) AppendMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.NewStorageError("append", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return chat.NewStorageError("append", err)
	}
	if exists == 0 {
		return chat.NewStorageError("append", chat.ErrSessionNotFound)
	}

	if msg.ID == "" {
		msg.ID = chat.NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, seq, role, content, mode, persona_id, error_flag, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?), ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, sessionID, string(msg.Role), msg.Content, msg.Mode, msg.PersonaID,
		boolToInt(msg.ErrorFlag), msg.CreatedAt.UnixMilli())
	if err != nil {
		return chat.NewStorageError("append", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), sessionID)
	if err != nil {
		return chat.NewStorageError("append", err)
	}

	if err := tx.Commit(); err != nil {
		return chat.NewStorageError("append", err)
	}
	return nil
}

// ListSessions returns owner's sessions newest-first with message counts.
func (s *SQLite) ListSessions(ctx context.Context, owner string) ([]chat.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.updated_at, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON m.session_id = s.id
		WHERE s.owner = ?
		GROUP BY s.id, s.title, s.updated_at
		ORDER BY s.updated_at DESC`, owner)
	if err != nil {
		return nil, chat.NewStorageError("list", err)
	}
	defer rows.Close()

	var out []chat.SessionSummary
	for rows.Next() {
		var sum chat.SessionSummary
		var updated int64
		if err := rows.Scan(&sum.ID, &sum.Title, &updated, &sum.MessageCount); err != nil {
			return nil, chat.NewStorageError("list", err)
		}
		sum.UpdatedAt = time.UnixMilli(updated)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, chat.NewStorageError("list", err)
	}
	return out, nil
}

// LoadSession returns the ordered message history for sessionID.
func (s *SQLite) LoadSession(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return nil, chat.NewStorageError("load", err)
	}
	if exists == 0 {
		return nil, chat.NewStorageError("load", chat.ErrSessionNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, COALESCE(mode, ''), COALESCE(persona_id, ''), error_flag, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, chat.NewStorageError("load", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		var role string
		var flag int
		var created int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Mode, &m.PersonaID, &flag, &created); err != nil {
			return nil, chat.NewStorageError("load", err)
		}
		m.Role = chat.Role(role)
		m.ErrorFlag = flag != 0
		m.CreatedAt = time.UnixMilli(created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, chat.NewStorageError("load", err)
	}
	return out, nil
}

// UpdateTitle replaces the session title and bumps updated_at.
func (s *SQLite) UpdateTitle(ctx context.Context, sessionID, title string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UnixMilli(), sessionID)
	if err != nil {
		return chat.NewStorageError("update_title", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return chat.NewStorageError("update_title", err)
	}
	if n == 0 {
		return chat.NewStorageError("update_title", chat.ErrSessionNotFound)
	}
	return nil
}

// RemoveLastAssistant deletes the highest-seq message when it has the
// assistant role. No rows affected is fine; the caller treats a user
// tail as a no-op.
func (s *SQLite) RemoveLastAssistant(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE session_id = ?
		  AND seq = (SELECT MAX(seq) FROM messages WHERE session_id = ?)
		  AND role = ?`,
		sessionID, sessionID, string(chat.RoleAssistant))
	if err != nil {
		return chat.NewStorageError("remove_last_assistant", err)
	}
	return nil
}

// DeleteSession removes the session; messages cascade.
func (s *SQLite) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return chat.NewStorageError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return chat.NewStorageError("delete", err)
	}
	if n == 0 {
		return chat.NewStorageError("delete", chat.ErrSessionNotFound)
	}
	s.logger.Debug().Str("session_id", sessionID).Msg("Session deleted")
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
