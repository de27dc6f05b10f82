package mealstorage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/yanqian/meal-insight/internal/domain/meal"
)

// MemoryStorage keeps photos in memory. Useful for tests and local dev.
type MemoryStorage struct {
	mu            sync.RWMutex
	blobs         map[string]storedBlob
	publicBaseURL string
}

type storedBlob struct {
	data     []byte
	mimeType string
	etag     string
}

// NewMemoryStorage constructs storage. publicBaseURL may be empty, in which
// case a mem:// pseudo scheme is used.
func NewMemoryStorage(publicBaseURL string) *MemoryStorage {
	return &MemoryStorage{
		blobs:         make(map[string]storedBlob),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Put stores the blob and returns metadata.
func (s *MemoryStorage) Put(_ context.Context, key string, data []byte, mimeType string) (meal.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := md5.Sum(data)
	etag := hex.EncodeToString(hash[:])
	s.blobs[key] = storedBlob{data: data, mimeType: mimeType, etag: etag}
	return meal.StoredObject{
		Key:      key,
		Size:     int64(len(data)),
		MimeType: mimeType,
		ETag:     etag,
	}, nil
}

// Get returns a reader for the stored blob.
func (s *MemoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(blob.data)), nil
}

// Delete removes the blob.
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// PublicURL resolves a key under the configured prefix.
func (s *MemoryStorage) PublicURL(key string) string {
	if s.publicBaseURL == "" {
		return "mem://" + key
	}
	return s.publicBaseURL + "/" + key
}

var _ meal.ObjectStorage = (*MemoryStorage)(nil)
