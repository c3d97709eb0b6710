package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bdougie/cropcurator/internal/models"
)

// ErrJournalClosed is returned by Record after Close
var ErrJournalClosed = errors.New("journal is closed")

// Journal keeps a history of confirmed saves and deletes
type Journal interface {
	// Record appends one entry
	Record(ctx context.Context, entry models.JournalEntry) error

	// SimilarRegions returns saved crops whose boxes are closest to bbox
	SimilarRegions(ctx context.Context, bbox models.BBox, limit int) ([]RegionMatch, error)

	// Close flushes pending entries and releases resources
	Close() error
}

// RegionMatch is a saved crop found by SimilarRegions
type RegionMatch struct {
	VideoName  string
	FrameIndex int
	Label      string
	Ref        string
	BBox       models.BBox
	Distance   float64
}

// Open picks the journal backend: Postgres when databaseURL is set, a JSON
// file when path is set, nothing otherwise.
func Open(ctx context.Context, databaseURL, path string, batchSize int, logger *slog.Logger) (Journal, error) {
	switch {
	case databaseURL != "":
		if err := InitSchema(ctx, databaseURL); err != nil {
			return nil, err
		}
		pg, err := NewPostgresJournal(ctx, databaseURL, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case path != "":
		return NewFileJournal(path, batchSize), nil
	default:
		return nil, nil
	}
}

// FileJournal batches entries in memory and appends them to a JSON file
type FileJournal struct {
	mu        sync.Mutex
	pending   []models.JournalEntry
	path      string
	batchSize int
	closed    bool
}

func NewFileJournal(path string, batchSize int) *FileJournal {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &FileJournal{path: path, batchSize: batchSize}
}

// Record adds an entry to the batch and writes the batch once it is full
func (j *FileJournal) Record(ctx context.Context, entry models.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	j.pending = append(j.pending, entry)

	if len(j.pending) >= j.batchSize {
		if err := j.flush(); err != nil {
			return fmt.Errorf("failed to flush journal: %w", err)
		}
	}
	return nil
}

// Flush writes all pending entries to disk
func (j *FileJournal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flush()
}

func (j *FileJournal) flush() error {
	if len(j.pending) == 0 {
		return nil
	}

	existing, err := j.load()
	if err != nil {
		return err
	}
	all := append(existing, j.pending...)

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for journal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.path), ".journal-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("failed to replace journal: %w", err)
	}

	j.pending = nil
	return nil
}

func (j *FileJournal) load() ([]models.JournalEntry, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	var entries []models.JournalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	return entries, nil
}

// Entries returns everything recorded so far, written or pending
func (j *FileJournal) Entries() ([]models.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := j.load()
	if err != nil {
		return nil, err
	}
	return append(entries, j.pending...), nil
}

// SimilarRegions ranks every saved crop by euclidean distance between boxes
func (j *FileJournal) SimilarRegions(ctx context.Context, bbox models.BBox, limit int) ([]RegionMatch, error) {
	entries, err := j.Entries()
	if err != nil {
		return nil, err
	}
	var matches []RegionMatch
	for _, e := range entries {
		if e.Action != models.ActionSave {
			continue
		}
		for _, it := range e.Items {
			if it.BBox == nil {
				continue
			}
			matches = append(matches, RegionMatch{
				VideoName:  e.VideoName,
				FrameIndex: e.FrameIndex,
				Label:      e.Label,
				Ref:        it.Ref,
				BBox:       *it.BBox,
				Distance:   distance(bbox, *it.BBox),
			})
		}
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Distance < matches[b].Distance })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func distance(a, b models.BBox) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Close writes pending entries; later Records fail with ErrJournalClosed
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.flush()
}
