package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

type storedPhoto struct {
	contentType string
	data        []byte
}

// MemoryPhotoStore keeps photos in process; references use the memory:// scheme.
type MemoryPhotoStore struct {
	mu     sync.RWMutex
	photos map[string]storedPhoto
}

func NewMemoryPhotoStore() *MemoryPhotoStore {
	return &MemoryPhotoStore{photos: map[string]storedPhoto{}}
}

func (m *MemoryPhotoStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if key == "" {
		return "", errors.New("put photo: key is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read photo %q: %w", key, err)
	}

	m.mu.Lock()
	m.photos[key] = storedPhoto{contentType: contentType, data: buf.Bytes()}
	m.mu.Unlock()

	return "memory://" + key, nil
}

// Get returns a stored photo and its content type.
func (m *MemoryPhotoStore) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[key]
	return p.data, p.contentType, ok
}
