// Package store persists chat context per conversation in a local SQLite
// database, so branch and ticket references survive process restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"devagents/internal/domain"
	"devagents/internal/infra/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_contexts (
	conversation_id TEXT PRIMARY KEY,
	context         TEXT NOT NULL,
	updated_at      INTEGER NOT NULL
);
`

// SQLiteStore implements domain.ContextStore on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.ContextStore = (*SQLiteStore)(nil)

// Open creates or opens the store at cfg.Path and ensures the schema.
func Open(cfg config.StoreConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, domain.NewDomainError("store.Open", domain.ErrConfigInvalid, "store.path is required")
	}
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, domain.NewDomainError("store.Open", domain.ErrStoreUnavailable, err.Error())
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent agents.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, domain.NewDomainError("store.Open", domain.ErrStoreUnavailable, err.Error())
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save upserts the chat context for a conversation.
func (s *SQLiteStore) Save(ctx context.Context, conversationID string, cc domain.ChatContext) error {
	if conversationID == "" {
		return domain.NewDomainError("store.Save", domain.ErrInvalidInput, "conversation id is required")
	}
	payload, err := json.Marshal(cc)
	if err != nil {
		return domain.NewDomainError("store.Save", domain.ErrStoreUnavailable, err.Error())
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_contexts (conversation_id, context, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (conversation_id) DO UPDATE SET
			context = excluded.context,
			updated_at = excluded.updated_at`,
		conversationID, string(payload), time.Now().Unix())
	if err != nil {
		return domain.NewDomainError("store.Save", domain.ErrStoreUnavailable, err.Error())
	}
	s.logger.Debug("saved chat context", "conversation", conversationID)
	return nil
}

// Load returns the stored context for a conversation, or the zero value
// when none has been saved yet.
func (s *SQLiteStore) Load(ctx context.Context, conversationID string) (domain.ChatContext, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT context FROM chat_contexts WHERE conversation_id = ?`, conversationID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChatContext{}, nil
	}
	if err != nil {
		return domain.ChatContext{}, domain.NewDomainError("store.Load", domain.ErrStoreUnavailable, err.Error())
	}
	var cc domain.ChatContext
	if err := json.Unmarshal([]byte(payload), &cc); err != nil {
		return domain.ChatContext{}, domain.NewDomainError("store.Load", domain.ErrStoreUnavailable,
			fmt.Sprintf("corrupt context for %s: %v", conversationID, err))
	}
	return cc, nil
}

// Prune deletes contexts not updated within maxAge. A zero maxAge
// disables pruning.
func (s *SQLiteStore) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_contexts WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, domain.NewDomainError("store.Prune", domain.ErrStoreUnavailable, err.Error())
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("pruned stale chat contexts", "removed", n)
	}
	return n, nil
}
