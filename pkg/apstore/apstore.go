// Package apstore implements Assignment Persistence (AP): the durable
// record of (agent -> task) bindings that survives process restarts.
// Grounded on the teacher's pkg/infrastructure/persistence JSONStore[T]
// idiom (file-per-entity, in-memory cache plus disk), but upgraded from a
// direct os.WriteFile to a write-temp/fsync/rename sequence — spec.md §4.2
// requires atomic writes and the teacher's JSONStore.Put does not provide
// that.
package apstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/logger"
)

// Record is one active assignment, keyed by agent id in the store.
type Record struct {
	AgentID        string           `json:"agent_id"`
	TaskID         string           `json:"task_id"`
	Name           string           `json:"name"`
	Priority       string           `json:"priority"`
	EstimatedHours float64          `json:"estimated_hours"`
	AssignedAt     domain.Timestamp `json:"assigned_at"`
}

// Store is the Assignment Persistence component. Storage format is
// opaque to the core per spec.md §6; this implementation uses one JSON
// file per agent under baseDir.
type Store struct {
	baseDir string
	mu      sync.RWMutex
	items   map[string]*Record
	log     *logger.Logger
}

// Open loads (or creates) the assignment directory at baseDir.
func Open(baseDir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("apstore: create dir: %w", err)
	}
	s := &Store{baseDir: baseDir, items: make(map[string]*Record), log: log}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("apstore: read dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.log.WarnCF("apstore", "skipping corrupt assignment record", logger.Fields{"file": entry.Name()})
			continue
		}
		s.items[rec.AgentID] = &rec
	}
	return nil
}

func (s *Store) path(agentID string) string {
	return filepath.Join(s.baseDir, agentID+".json")
}

// Save durably records an assignment for agentID. The write is atomic:
// the record is written to a temp file in the same directory, fsynced,
// then renamed over the final path — a rename within one filesystem is
// atomic, so a crash mid-write never leaves a half-written record visible.
func (s *Store) Save(agentID, taskID string, meta Record) error {
	meta.AgentID = agentID
	meta.TaskID = taskID
	if meta.AssignedAt.Time.IsZero() {
		meta.AssignedAt = domain.Now()
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("apstore: marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := atomicWrite(s.path(agentID), data); err != nil {
		return err
	}
	rec := meta
	s.items[agentID] = &rec
	return nil
}

func atomicWrite(finalPath string, data []byte) error {
	dir := filepath.Dir(finalPath)
	tmp, err := os.CreateTemp(dir, ".apstore-*.tmp")
	if err != nil {
		return fmt.Errorf("apstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("apstore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("apstore: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("apstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("apstore: rename temp file: %w", err)
	}
	return nil
}

// Remove atomically deletes the assignment record for agentID, if any.
func (s *Store) Remove(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, agentID)
	if err := os.Remove(s.path(agentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("apstore: remove: %w", err)
	}
	return nil
}

// Get returns the assignment record for an agent, if any.
func (s *Store) Get(agentID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[agentID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// GetAllAssignedTaskIDs returns the set of task ids currently bound in AP.
func (s *Store) GetAllAssignedTaskIDs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.items))
	for _, rec := range s.items {
		out[rec.TaskID] = true
	}
	return out
}

// All returns every assignment record, for reconciliation and status
// reporting.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.items))
	for _, rec := range s.items {
		out = append(out, *rec)
	}
	return out
}

// Cleanup flushes pending writes on shutdown. Since every Save/Remove
// above is already synchronous and atomic, there is nothing buffered to
// flush; Cleanup exists to match spec.md §4.2's operation list and as the
// hook a future buffered implementation would need.
func (s *Store) Cleanup() error { return nil }
