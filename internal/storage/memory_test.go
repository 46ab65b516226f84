package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/transport"
)

func TestMemoryStoragePaging(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		err := s.SaveMessage(ctx, "chat1", models.RawMessage{
			ID:          fmt.Sprintf("m%03d", i),
			TimestampMs: int64(1700000000000 + i*1000),
			SenderID:    "u1",
			Type:        "text",
			Body:        `{"text":"hi"}`,
		})
		require.NoError(t, err)
	}

	var all []models.RawMessage
	cursor := ""
	pages := 0
	for {
		page, err := s.FetchPage(ctx, "chat1", cursor)
		require.NoError(t, err)
		all = append(all, page.Records...)
		pages++
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, 3, pages)
	require.Len(t, all, 120)
	// Arrival order is preserved across page boundaries.
	for i, msg := range all {
		assert.Equal(t, fmt.Sprintf("m%03d", i), msg.ID)
	}
}

func TestMemoryStorageEmptyChat(t *testing.T) {
	s := NewMemoryStorage()

	page, err := s.FetchPage(context.Background(), "nobody", "")
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.NextCursor)
}

func TestMemoryStorageInvalidCursor(t *testing.T) {
	s := NewMemoryStorage()

	_, err := s.FetchPage(context.Background(), "chat1", "not-a-number")
	assert.Error(t, err)
}

func TestMemoryStorageIdentities(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	err := s.SaveIdentity(ctx, models.Identity{ID: "u1", Name: "Alice", FetchedAt: time.Now()})
	require.NoError(t, err)

	ident, err := s.LookupOne(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", ident.Name)

	_, err = s.LookupOne(ctx, "u2")
	assert.Error(t, err)

	_, err = s.LookupMany(ctx, []string{"u1"})
	assert.ErrorIs(t, err, transport.ErrBatchUnsupported)
}
