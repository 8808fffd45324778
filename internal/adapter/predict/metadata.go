package predict

import (
	"context"
	"sync"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

// MetadataStore caches the most recent model metadata: the summary seen on a
// prediction response and the details read from the model info endpoint.
// Implementations only need to eventually reflect the latest value.
type MetadataStore interface {
	SaveModelInfo(ctx context.Context, info domain.ModelInfo) error
	LatestModelInfo(ctx context.Context) (domain.ModelInfo, bool, error)
	SaveModelDetails(ctx context.Context, details domain.ModelDetails) error
	LatestModelDetails(ctx context.Context) (domain.ModelDetails, bool, error)
}

// MemoryStore is an in-process MetadataStore.
type MemoryStore struct {
	mu         sync.RWMutex
	info       domain.ModelInfo
	infoSet    bool
	details    domain.ModelDetails
	detailsSet bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveModelInfo(_ context.Context, info domain.ModelInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
	s.infoSet = true
	return nil
}

func (s *MemoryStore) LatestModelInfo(_ context.Context) (domain.ModelInfo, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.infoSet, nil
}

func (s *MemoryStore) SaveModelDetails(_ context.Context, details domain.ModelDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details = details
	s.detailsSet = true
	return nil
}

func (s *MemoryStore) LatestModelDetails(_ context.Context) (domain.ModelDetails, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.details, s.detailsSet, nil
}
