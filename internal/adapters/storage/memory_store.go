package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/zatekoja/carebook/backend/internal/domain/providers"
)

// MemoryStore keeps artifacts in memory. Used when no storage is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(ctx context.Context, bookingID, fileName string, r io.Reader) (*providers.StoredArtifact, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	id := fmt.Sprintf("%s/%s", bookingID, publicID(fileName))

	s.mu.Lock()
	s.files[id] = buf.Bytes()
	s.mu.Unlock()

	return &providers.StoredArtifact{URL: "memory://" + id, StorageID: id}, nil
}

// Get returns a stored artifact's contents.
func (s *MemoryStore) Get(storageID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[storageID]
	return b, ok
}

var _ providers.ArtifactStore = (*MemoryStore)(nil)
