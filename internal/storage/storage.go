// Package storage persists per-guild state. Two backends exist: the JSON
// datastore (default) and SQLite.
package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/keshon/muse/datastore"
	"github.com/rs/zerolog"
)

const commandHistoryLimit int = 20

// Driver names accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Backend is what the rest of the bot needs from persistence.
type Backend interface {
	LoadMusicState(guildID string) (MusicState, error)
	SaveMusicState(guildID string, state MusicState) error
	AppendCommandToHistory(guildID string, command CommandHistoryRecord) error
	FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error)
	GuildIDs() ([]string, error)
	Close() error
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

// Record is the per-guild document kept in the JSON datastore.
type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	Music               *MusicState            `json:"music,omitempty"`
}

// Options configure Open.
type Options struct {
	Driver   string
	Path     string
	ReadOnly bool
	Logger   zerolog.Logger
}

// Open returns the backend selected by opts.Driver.
func Open(opts Options) (Backend, error) {
	switch opts.Driver {
	case "", DriverJSON:
		cfg := datastore.DefaultConfig(opts.Path)
		cfg.ReadOnly = opts.ReadOnly
		cfg.Logger = opts.Logger
		ds, err := datastore.NewWithConfig(cfg)
		if err != nil {
			return nil, err
		}
		return &Storage{ds: ds, log: opts.Logger}, nil
	case DriverSQLite:
		return OpenSQLite(opts.Path, opts.ReadOnly)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// Storage is the JSON datastore backend.
type Storage struct {
	mu sync.Mutex // serialises read-modify-write of guild records
	ds  *datastore.DataStore
	log zerolog.Logger
}

// New opens a JSON backend at filePath with default settings.
func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds, log: zerolog.Nop()}, nil
}

func (s *Storage) Close() error {
	s.log.Debug().Fields(s.ds.Stats()).Msg("closing datastore")
	return s.ds.Close()
}

// getOrCreateGuildRecord loads the guild's record, or an empty one.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, err
	}
	if record.CommandsHistoryList == nil {
		record.CommandsHistoryList = []CommandHistoryRecord{}
	}
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	return &record, nil
}

// LoadMusicState returns the guild's music state, or the defaults.
func (s *Storage) LoadMusicState(guildID string) (MusicState, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return DefaultMusicState(), err
	}
	if record.Music == nil {
		return DefaultMusicState(), nil
	}
	return *record.Music, nil
}

// SaveMusicState replaces the guild's music state.
func (s *Storage) SaveMusicState(guildID string, state MusicState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.Music = &state
	return s.ds.Put(guildID, record)
}

// AppendCommandToHistory appends a command history record for a guild
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.CommandsHistoryList = append(record.CommandsHistoryList, command)
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	return s.ds.Put(guildID, record)
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

// GuildIDs lists every guild with a stored record.
func (s *Storage) GuildIDs() ([]string, error) {
	return s.ds.Keys(), nil
}
