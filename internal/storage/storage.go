package storage

import (
	"context"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/transport"
)

// Storage persists captured chat history and sender identities, and serves
// them back through the transport interfaces the pipeline reads.
type Storage interface {
	transport.MessageTransport
	transport.IdentityTransport

	SaveMessage(ctx context.Context, chatID string, msg models.RawMessage) error
	SaveIdentity(ctx context.Context, identity models.Identity) error
	Close() error
}
