package storage

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/maneesh/mediadrop/internal/models"
)

var tracer = otel.Tracer("mediadrop-storage")

var (
	// ErrNotFound is returned by Get for a token that was never written.
	ErrNotFound = errors.New("bundle not found")
	// ErrDuplicateToken is returned by Put when the token already exists.
	ErrDuplicateToken = errors.New("bundle token already exists")
	// ErrEmptyBundle is returned by Put for an empty attachment list.
	ErrEmptyBundle = errors.New("bundle has no attachments")
)

// BundleStore is the durable token -> attachments mapping. Tokens are
// write-once and a stored bundle never changes.
type BundleStore interface {
	Put(ctx context.Context, token string, attachments []models.Attachment) error
	Get(ctx context.Context, token string) ([]models.Attachment, error)
}

// MemoryBundleStore keeps bundles in process memory.
type MemoryBundleStore struct {
	mu      sync.RWMutex
	bundles map[string][]models.Attachment
}

func NewMemoryBundleStore() *MemoryBundleStore {
	return &MemoryBundleStore{bundles: make(map[string][]models.Attachment)}
}

func (m *MemoryBundleStore) Put(_ context.Context, token string, attachments []models.Attachment) error {
	if len(attachments) == 0 {
		return ErrEmptyBundle
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bundles[token]; exists {
		return ErrDuplicateToken
	}
	m.bundles[token] = models.CloneAttachments(attachments)
	return nil
}

func (m *MemoryBundleStore) Get(_ context.Context, token string) ([]models.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	atts, ok := m.bundles[token]
	if !ok {
		return nil, ErrNotFound
	}
	return models.CloneAttachments(atts), nil
}
