package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteTimeout = 5 * time.Second

// SQLite is the SQLite backend. Music state is stored as one JSON document
// per guild; command history gets its own table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates, unless readOnly) the database at path.
func OpenSQLite(path string, readOnly bool) (*SQLite, error) {
	dsn := "file:" + path + "?_busy_timeout=5000"
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		dsn += "&mode=ro"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if !readOnly {
		if err := s.migrate(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS music_state (
			guild_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS command_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			record TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_command_history_guild ON command_history (guild_id, id)`,
	}
	for _, q := range tableQueries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) LoadMusicState(guildID string) (MusicState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM music_state WHERE guild_id = ?", guildID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultMusicState(), nil
	}
	if err != nil {
		return DefaultMusicState(), err
	}

	var state MusicState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return DefaultMusicState(), fmt.Errorf("decode music state: %w", err)
	}
	return state, nil
}

func (s *SQLite) SaveMusicState(guildID string, state MusicState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode music state: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO music_state (guild_id, state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(guild_id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`,
		guildID, string(raw))
	return err
}

func (s *SQLite) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	raw, err := json.Marshal(command)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "INSERT INTO command_history (guild_id, record) VALUES (?, ?)", guildID, string(raw)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM command_history WHERE guild_id = ? AND id NOT IN (
			SELECT id FROM command_history WHERE guild_id = ? ORDER BY id DESC LIMIT ?
		)`, guildID, guildID, commandHistoryLimit); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT record FROM command_history WHERE guild_id = ? ORDER BY id", guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []CommandHistoryRecord{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec CommandHistoryRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode command history: %w", err)
		}
		history = append(history, rec)
	}
	return history, rows.Err()
}

func (s *SQLite) GuildIDs() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id FROM music_state
		UNION SELECT DISTINCT guild_id FROM command_history
		ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
