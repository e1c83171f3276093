// Package datastore is a small JSON file key/value store. Values are kept as
// raw JSON documents in memory and flushed to disk atomically, either on a
// timer or on Close.
package datastore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrClosed      = errors.New("datastore is closed")
	ErrReadOnly    = errors.New("datastore is read-only")
	ErrMemoryLimit = errors.New("datastore memory limit exceeded")
)

// Config holds configuration options for the DataStore
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration // 0 disables autosave
	MaxMemorySize    int64         // bytes of stored JSON, 0 = unlimited
	BackupCount      int           // backups kept on each changed save
	ReadOnly         bool          // no writes, no autosave, no save on Close
	Logger           zerolog.Logger
}

// DefaultConfig returns a default configuration
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		MaxMemorySize:    100 * 1024 * 1024,
		BackupCount:      3,
		Logger:           zerolog.Nop(),
	}
}

type DataStore struct {
	mu           sync.RWMutex
	data         map[string]json.RawMessage
	size         int64
	lastChecksum string
	closed       bool

	cfg    *Config
	log    zerolog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens filePath with the default configuration.
func New(filePath string) (*DataStore, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig opens or creates the store described by cfg.
func NewWithConfig(cfg *Config) (*DataStore, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.FilePath == "" {
		return nil, errors.New("file path cannot be empty")
	}

	ds := &DataStore{
		data: make(map[string]json.RawMessage),
		cfg:  cfg,
		log:  cfg.Logger.With().Str("component", "datastore").Str("file", cfg.FilePath).Logger(),
	}

	_, err := os.Stat(cfg.FilePath)
	switch {
	case err == nil:
		if err := ds.load(); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && cfg.ReadOnly:
		return nil, fmt.Errorf("open %s: %w", cfg.FilePath, err)
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		if err := ds.writeFileAtomic([]byte("{}")); err != nil {
			return nil, fmt.Errorf("create empty store: %w", err)
		}
	default:
		return nil, fmt.Errorf("stat %s: %w", cfg.FilePath, err)
	}

	if !cfg.ReadOnly && cfg.AutoSaveInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		ds.cancel = cancel
		ds.wg.Add(1)
		go ds.autoSave(ctx)
	}
	return ds, nil
}

// Put stores v under key as JSON.
func (ds *DataStore) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return ErrClosed
	}
	if ds.cfg.ReadOnly {
		return ErrReadOnly
	}

	newSize := ds.size - int64(len(ds.data[key])) + int64(len(raw))
	if ds.cfg.MaxMemorySize > 0 && newSize > ds.cfg.MaxMemorySize {
		return ErrMemoryLimit
	}
	ds.size = newSize
	ds.data[key] = raw
	return nil
}

// Get decodes the value stored under key into out. It reports false when
// the key is absent.
func (ds *DataStore) Get(key string, out any) (bool, error) {
	ds.mu.RLock()
	raw, ok := ds.data[key]
	closed := ds.closed
	ds.mu.RUnlock()

	if closed {
		return false, ErrClosed
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Keys returns all keys in sorted order.
func (ds *DataStore) Keys() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	keys := make([]string, 0, len(ds.data))
	for k := range ds.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close stops autosave and flushes pending changes.
func (ds *DataStore) Close() error {
	ds.mu.Lock()
	if ds.closed {
		ds.mu.Unlock()
		return nil
	}
	ds.closed = true
	ds.mu.Unlock()

	if ds.cancel != nil {
		ds.cancel()
	}
	ds.wg.Wait()

	if ds.cfg.ReadOnly {
		return nil
	}
	return ds.save()
}

// Stats returns statistics about the DataStore
func (ds *DataStore) Stats() map[string]any {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return map[string]any{
		"keys":        len(ds.data),
		"memory_size": ds.size,
		"file_path":   ds.cfg.FilePath,
		"last_save":   ds.lastChecksum != "",
	}
}

func (ds *DataStore) save() error {
	ds.mu.RLock()
	data, err := json.MarshalIndent(ds.data, "", "  ")
	last := ds.lastChecksum
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	sum := checksum(data)
	if sum == last {
		return nil
	}

	if ds.cfg.BackupCount > 0 {
		if err := ds.createBackup(); err != nil {
			ds.log.Warn().Err(err).Msg("backup failed")
		}
	}
	if err := ds.writeFileAtomic(data); err != nil {
		return err
	}
	if err := ds.verifyFile(data); err != nil {
		return fmt.Errorf("verify write: %w", err)
	}

	ds.mu.Lock()
	ds.lastChecksum = sum
	ds.mu.Unlock()
	return nil
}

func (ds *DataStore) load() error {
	raw, err := os.ReadFile(ds.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}
	data := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("invalid JSON in %s: %w", ds.cfg.FilePath, err)
		}
	}

	var size int64
	for _, v := range data {
		size += int64(len(v))
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.data = data
	ds.size = size
	ds.lastChecksum = checksum(raw)
	return nil
}

// writeFileAtomic writes to a temp file, syncs it and renames it into place.
func (ds *DataStore) writeFileAtomic(data []byte) error {
	tmp := ds.cfg.FilePath + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmp, ds.cfg.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (ds *DataStore) verifyFile(expected []byte) error {
	actual, err := os.ReadFile(ds.cfg.FilePath)
	if err != nil {
		return err
	}
	if checksum(actual) != checksum(expected) {
		return errors.New("file checksum mismatch")
	}
	return nil
}

func (ds *DataStore) createBackup() error {
	src, err := os.Open(ds.cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup.%s", ds.cfg.FilePath, time.Now().Format("20060102_150405"))
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	ds.pruneBackups()
	return nil
}

func (ds *DataStore) pruneBackups() {
	matches, err := filepath.Glob(ds.cfg.FilePath + ".backup.*")
	if err != nil || len(matches) <= ds.cfg.BackupCount {
		return
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	var files []backup
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil {
			files = append(files, backup{m, info.ModTime()})
		}
	}
	slices.SortFunc(files, func(a, b backup) int { return a.modTime.Compare(b.modTime) })

	for _, f := range files[:max(0, len(files)-ds.cfg.BackupCount)] {
		if err := os.Remove(f.path); err != nil {
			ds.log.Debug().Err(err).Str("backup", f.path).Msg("remove old backup")
		}
	}
}

func (ds *DataStore) autoSave(ctx context.Context) {
	defer ds.wg.Done()

	ticker := time.NewTicker(ds.cfg.AutoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ds.save(); err != nil {
				ds.log.Error().Err(err).Msg("auto-save failed")
			}
		}
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
