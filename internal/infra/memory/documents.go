package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/ledger"
)

// InsertDocument implements extraction.DocumentRepository.
func (s *Store) InsertDocument(ctx context.Context, d *extraction.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[d.ID]; exists {
		return fmt.Errorf("document %s: %w", d.ID, ledger.ErrDuplicate)
	}
	cp := *d
	s.documents[d.ID] = &cp
	return nil
}

// GetDocument implements extraction.DocumentRepository.
func (s *Store) GetDocument(ctx context.Context, id string) (*extraction.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.documents[id]
	if !exists {
		return nil, fmt.Errorf("document %s: %w", id, ledger.ErrNotFound)
	}
	d := *rec
	return &d, nil
}

// SetLatestRun implements extraction.DocumentRepository.
func (s *Store) SetLatestRun(ctx context.Context, docID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.documents[docID]
	if !exists {
		return fmt.Errorf("document %s: %w", docID, ledger.ErrNotFound)
	}
	rec.LatestExtractionRunID = runID
	return nil
}

// InsertRun implements extraction.DocumentRepository.
func (s *Store) InsertRun(ctx context.Context, r *extraction.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[r.ID]; exists {
		return fmt.Errorf("extraction run %s: %w", r.ID, ledger.ErrDuplicate)
	}
	cp := *r
	s.runs[r.ID] = &cp
	return nil
}

// GetRun implements extraction.DocumentRepository.
func (s *Store) GetRun(ctx context.Context, id string) (*extraction.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("extraction run %s: %w", id, ledger.ErrNotFound)
	}
	r := *rec
	return &r, nil
}

// FinishRun implements extraction.DocumentRepository.
func (s *Store) FinishRun(ctx context.Context, runID string, status extraction.RunStatus, result *extraction.Result, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.runs[runID]
	if !exists {
		return fmt.Errorf("extraction run %s: %w", runID, ledger.ErrNotFound)
	}
	now := time.Now().UTC()
	rec.Status = status
	rec.Result = result
	rec.Error = errMsg
	rec.FinishedAt = &now
	return nil
}

// Get implements extraction.BlobStore.
func (s *Store) Get(ctx context.Context, blobID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.blobs[blobID]
	if !exists {
		return nil, fmt.Errorf("blob %s: %w", blobID, ledger.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Put implements extraction.BlobStore.
func (s *Store) Put(ctx context.Context, blobID string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[blobID] = append([]byte(nil), data...)
	return nil
}

// SetPrompt stores the prompt for a document kind.
func (s *Store) SetPrompt(ctx context.Context, kind, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts[kind] = prompt
	return nil
}

// GetPrompt implements extraction.PromptRepository.
func (s *Store) GetPrompt(ctx context.Context, kind string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.prompts[kind]
	if !exists {
		return "", fmt.Errorf("prompt %s: %w", kind, ledger.ErrNotFound)
	}
	return p, nil
}

var (
	_ extraction.DocumentRepository = (*Store)(nil)
	_ extraction.BlobStore          = (*Store)(nil)
	_ extraction.PromptRepository   = (*Store)(nil)
)
