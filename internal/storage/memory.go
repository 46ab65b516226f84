package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/transport"
)

const memoryPageSize = 50

// MemoryStorage keeps everything in process memory. Used for development
// and as the fallback when no database is configured.
type MemoryStorage struct {
	mu         sync.RWMutex
	messages   map[string][]models.RawMessage
	identities map[string]models.Identity
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages:   make(map[string][]models.RawMessage),
		identities: make(map[string]models.Identity),
	}
}

func (s *MemoryStorage) SaveMessage(_ context.Context, chatID string, msg models.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[chatID] = append(s.messages[chatID], msg)
	return nil
}

func (s *MemoryStorage) SaveIdentity(_ context.Context, identity models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.ID] = identity
	return nil
}

// FetchPage serves messages in arrival order. The cursor is a plain offset.
func (s *MemoryStorage) FetchPage(_ context.Context, chatID, cursor string) (transport.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return transport.Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = n
	}

	all := s.messages[chatID]
	if offset >= len(all) {
		return transport.Page{}, nil
	}

	end := offset + memoryPageSize
	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	} else {
		end = len(all)
	}

	records := make([]models.RawMessage, end-offset)
	copy(records, all[offset:end])
	return transport.Page{Records: records, NextCursor: next}, nil
}

func (s *MemoryStorage) LookupOne(_ context.Context, id string) (models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return models.Identity{}, fmt.Errorf("identity not found: %s", id)
	}
	return identity, nil
}

// LookupMany is not implemented for the in-memory backend; callers fall
// back to sequential lookups.
func (s *MemoryStorage) LookupMany(_ context.Context, _ []string) (map[string]models.Identity, error) {
	return nil, transport.ErrBatchUnsupported
}

func (s *MemoryStorage) Close() error {
	return nil
}
