package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/taskmcp/taskmcp/internal/types"
)

const syncStateVersion = "1.0"

// SyncEntry records where one entity was last written in the vault.
type SyncEntry struct {
	Path         string          `json:"path"`
	EntityType   types.EntityType `json:"entityType"`
	LastModified time.Time       `json:"lastModified"`
}

// syncStateDoc is the on-disk shape of .sync-state.json, per spec.md §6.
type syncStateDoc struct {
	Version  string               `json:"version"`
	LastSync time.Time            `json:"lastSync"`
	Entities map[string]SyncEntry `json:"entities"`
}

// SyncState is the in-memory, mutex-guarded mirror of .sync-state.json. It
// is the basis for rename/move detection (§4.5): the path recorded here is
// compared against a freshly resolved path before every write.
type SyncState struct {
	mu       sync.Mutex
	path     string
	entities map[string]SyncEntry
}

// LoadSyncState reads vaultPath's .sync-state.json. A missing or
// unparseable file falls back to an empty index (logged), per spec.md
// §4.5's "parse failure falls back to an empty index; the next full export
// rebuilds it".
func LoadSyncState(vaultPath string, logger *slog.Logger) *SyncState {
	statePath := filepath.Join(vaultPath, ".sync-state.json")
	state := &SyncState{path: statePath, entities: map[string]SyncEntry{}}

	data, err := os.ReadFile(statePath)
	if err != nil {
		return state
	}
	var doc syncStateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("sync state parse failure, starting from empty index", "path", statePath, "error", err)
		return state
	}
	if doc.Entities != nil {
		state.entities = doc.Entities
	}
	return state
}

// Get returns the recorded entry for id, if any.
func (s *SyncState) Get(id types.ID) (SyncEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id.String()]
	return e, ok
}

// Record upserts id's entry and persists the index atomically.
func (s *SyncState) Record(id types.ID, entry SyncEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[id.String()] = entry
	return s.flushLocked()
}

// Remove deletes id's entry (if present) and persists the index atomically.
func (s *SyncState) Remove(id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id.String()]; !ok {
		return nil
	}
	delete(s.entities, id.String())
	return s.flushLocked()
}

// flushLocked writes the index atomically via temp-file-then-rename.
func (s *SyncState) flushLocked() error {
	doc := syncStateDoc{Version: syncStateVersion, LastSync: time.Now().UTC(), Entities: s.entities}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sync state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating vault directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sync-state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp sync state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp sync state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp sync state file into place: %w", err)
	}
	return nil
}
