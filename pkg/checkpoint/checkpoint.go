package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Checkpoint tracks corpus-encoding progress for one evaluation run so an
// interrupted run can resume without re-embedding finished documents
type Checkpoint struct {
	mu sync.RWMutex

	TaskName       string `json:"task_name"`
	ChunkedPooling bool   `json:"chunked_pooling"`

	// Progress tracking
	LastProcessedDoc string `json:"last_processed_doc"`
	DocsProcessed    int64  `json:"docs_processed"`
	ChunksEmbedded   int64  `json:"chunks_embedded"`
	LastUpdated      int64  `json:"last_updated"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	checkpoint     *Checkpoint
}

// NewManager creates a checkpoint manager for a run, stored next to the
// run's output directory. An existing checkpoint for the same task and
// pooling mode is resumed; anything else starts fresh.
func NewManager(outputDir, taskName string, chunkedPooling bool) (*Manager, error) {
	mgr := &Manager{
		checkpointPath: outputDir + ".checkpoint.json",
		checkpoint: &Checkpoint{
			TaskName:       taskName,
			ChunkedPooling: chunkedPooling,
			LastUpdated:    time.Now().Unix(),
		},
	}

	if err := mgr.Load(); err == nil {
		if mgr.checkpoint.TaskName != taskName || mgr.checkpoint.ChunkedPooling != chunkedPooling {
			mgr.checkpoint = &Checkpoint{
				TaskName:       taskName,
				ChunkedPooling: chunkedPooling,
				LastUpdated:    time.Now().Unix(),
			}
		}
	}

	return mgr, nil
}

// Load reads the checkpoint from disk
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no checkpoint file found")
		}
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	m.checkpoint.mu.Lock()
	defer m.checkpoint.mu.Unlock()

	if err := json.Unmarshal(data, m.checkpoint); err != nil {
		return fmt.Errorf("failed to parse checkpoint: %w", err)
	}

	return nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save() error {
	m.checkpoint.mu.RLock()
	m.checkpoint.LastUpdated = time.Now().Unix()
	data, err := json.MarshalIndent(m.checkpoint, "", "  ")
	m.checkpoint.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Write to temp file then rename for atomicity
	tempPath := m.checkpointPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	return nil
}

// MarkDoc records a finished document
func (m *Manager) MarkDoc(docID string, chunks int) {
	m.checkpoint.mu.Lock()
	defer m.checkpoint.mu.Unlock()

	m.checkpoint.LastProcessedDoc = docID
	m.checkpoint.DocsProcessed++
	m.checkpoint.ChunksEmbedded += int64(chunks)
	m.checkpoint.LastUpdated = time.Now().Unix()
}

// DocsProcessed returns the number of documents already finished
func (m *Manager) DocsProcessed() int64 {
	m.checkpoint.mu.RLock()
	defer m.checkpoint.mu.RUnlock()

	return m.checkpoint.DocsProcessed
}

// Get returns a copy of the current checkpoint
func (m *Manager) Get() Checkpoint {
	m.checkpoint.mu.RLock()
	defer m.checkpoint.mu.RUnlock()

	return Checkpoint{
		TaskName:         m.checkpoint.TaskName,
		ChunkedPooling:   m.checkpoint.ChunkedPooling,
		LastProcessedDoc: m.checkpoint.LastProcessedDoc,
		DocsProcessed:    m.checkpoint.DocsProcessed,
		ChunksEmbedded:   m.checkpoint.ChunksEmbedded,
		LastUpdated:      m.checkpoint.LastUpdated,
	}
}

// Reset discards recorded progress, keeping the run identity. Used when a
// resumed checkpoint no longer matches the corpus it was written against.
func (m *Manager) Reset() {
	m.checkpoint = &Checkpoint{
		TaskName:       m.checkpoint.TaskName,
		ChunkedPooling: m.checkpoint.ChunkedPooling,
		LastUpdated:    time.Now().Unix(),
	}
}

// Clear removes the checkpoint file after a completed run
func (m *Manager) Clear() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}
