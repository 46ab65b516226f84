package transport

import (
	"context"
	"errors"

	"github.com/xaenox/chatlens/internal/models"
)

// ErrBatchUnsupported is returned by IdentityTransport.LookupMany when the
// backend has no batch endpoint; callers fall back to sequential LookupOne.
var ErrBatchUnsupported = errors.New("batch lookup not supported")

// ErrUnavailable indicates a transport that cannot be reached at all.
var ErrUnavailable = errors.New("transport unavailable")

// Page is one page of raw message history.
type Page struct {
	Records    []models.RawMessage
	NextCursor string
}

// MessageTransport serves chat history in the platform's pagination order.
// An empty cursor starts from the beginning; an empty NextCursor ends the scan.
type MessageTransport interface {
	FetchPage(ctx context.Context, chatID, cursor string) (Page, error)
}

// IdentityTransport resolves opaque sender ids to display identities.
type IdentityTransport interface {
	LookupOne(ctx context.Context, id string) (models.Identity, error)
	LookupMany(ctx context.Context, ids []string) (map[string]models.Identity, error)
}

// LLMTransport is an opaque text completion backend. Usage is reported even
// when the completion is unusable; a transport-level failure reports zero.
type LLMTransport interface {
	Complete(ctx context.Context, prompt string) (string, models.TokenUsage, error)
}

// RenderTransport turns HTML into image or PDF bytes. PDFAvailable reports
// whether the PDF path can be attempted at all.
type RenderTransport interface {
	RenderImage(ctx context.Context, html string) ([]byte, error)
	RenderPDF(ctx context.Context, html string) ([]byte, error)
	PDFAvailable() bool
}
