// Package file implements a file-backed vector index: an append-only JSONL
// log in the data directory, fully loaded into memory, searched by
// brute-force cosine scan. A write is fsynced before Store returns.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cortexnotes/cortex/internal/domain"
	"github.com/cortexnotes/cortex/internal/index"
	"github.com/cortexnotes/cortex/internal/metrics"
)

const logFileName = "notes.jsonl"

// Compile-time check: Store implements index.Index.
var _ index.Index = (*Store)(nil)

// record is one line of the append-only log. Replace writes append a new
// record for an existing id; the latest record for an id wins on load.
type record struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Vector    []float32         `json:"vector"`
	Model     string            `json:"model"`
}

// Store is a file-backed vector index scoped to one data directory.
// The mutex serializes writes per index instance; reads take the read lock.
type Store struct {
	mu      sync.RWMutex
	file    *os.File
	entries map[string]record
	order   []string // insertion order for deterministic iteration
	dims    int
}

// Open loads (or creates) the index log under dataDir.
func Open(dataDir string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dims)
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dataDir, logFileName)
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open index log: %w", err)
	}

	s := &Store{
		file:    f,
		entries: make(map[string]record),
		dims:    dims,
	}
	if err := s.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// load replays the log into memory. The latest record per id wins.
func (s *Store) load() error {
	scanner := bufio.NewScanner(s.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("corrupt index log at line %d: %w", line, err)
		}
		if len(rec.Vector) != s.dims {
			return fmt.Errorf("index log line %d: %w", line, domain.NewDimensionMismatch(len(rec.Vector), s.dims))
		}
		if _, ok := s.entries[rec.ID]; !ok {
			s.order = append(s.order, rec.ID)
		}
		s.entries[rec.ID] = rec
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read index log: %w", err)
	}
	return nil
}

// Dimensions implements index.Index.
func (s *Store) Dimensions() int { return s.dims }

// Store appends the note and its vector to the log. The write is fsynced
// before return; a failed write leaves the in-memory state untouched.
func (s *Store) Store(_ context.Context, note domain.Note, vector domain.EmbeddingVector, replace bool) error {
	if len(vector.Dims) != s.dims {
		return domain.NewDimensionMismatch(len(vector.Dims), s.dims)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[note.ID]; exists && !replace {
		metrics.IndexDocumentsTotal.WithLabelValues("store", "rejected").Inc()
		return fmt.Errorf("note %q: %w", note.ID, domain.ErrDuplicateID)
	}

	rec := record{
		ID:        note.ID,
		Text:      note.Text,
		Metadata:  note.Metadata,
		CreatedAt: note.CreatedAt,
		Vector:    vector.Dims,
		Model:     vector.ModelName,
	}

	if err := s.append(rec); err != nil {
		metrics.IndexDocumentsTotal.WithLabelValues("store", "error").Inc()
		return fmt.Errorf("append note %q: %v: %w", note.ID, err, domain.ErrStorageFailure)
	}

	if _, ok := s.entries[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.entries[rec.ID] = rec

	metrics.IndexDocumentsTotal.WithLabelValues("store", "success").Inc()
	return nil
}

func (s *Store) append(rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return s.file.Sync()
}

// Search scans all entries, scores them by cosine similarity, and returns
// the top k matching the metadata filters, highest score first.
func (s *Store) Search(_ context.Context, vector []float32, k int, filters map[string]string) ([]index.Hit, error) {
	if len(vector) != s.dims {
		return nil, domain.NewDimensionMismatch(len(vector), s.dims)
	}
	if k <= 0 {
		return []index.Hit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]index.Hit, 0, len(s.order))
	for _, id := range s.order {
		rec := s.entries[id]
		if !index.MatchesFilters(rec.Metadata, filters) {
			continue
		}
		hits = append(hits, index.Hit{
			Note: domain.Note{
				ID:        rec.ID,
				Text:      rec.Text,
				Metadata:  rec.Metadata,
				CreatedAt: rec.CreatedAt,
			},
			Score: index.Cosine(vector, rec.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count implements index.Index.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close closes the underlying log file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close index log: %w", err)
	}
	return nil
}
