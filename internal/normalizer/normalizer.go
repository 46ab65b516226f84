package normalizer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xaenox/chatlens/internal/identity"
	"github.com/xaenox/chatlens/internal/models"
	"go.uber.org/zap"
)

// Normalizer converts raw platform records into NormalizedMessages,
// enriching each with its sender's resolved identity.
type Normalizer struct {
	resolver *identity.Resolver
	logger   *zap.Logger
}

// Result carries the normalized batch plus the parse diagnostics the
// caller reports (parsed vs dropped vs retained-unparsed).
type Result struct {
	Messages      []models.NormalizedMessage
	ParsedCount   int
	UnparsedCount int
	DroppedCount  int
}

func New(resolver *identity.Resolver, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		resolver: resolver,
		logger:   logger,
	}
}

// NormalizeBatch normalizes records in input order. Sender identities are
// resolved through one batch call over the unique sender ids, not one
// lookup per message.
func (n *Normalizer) NormalizeBatch(ctx context.Context, records []models.RawMessage) Result {
	seen := make(map[string]struct{}, len(records))
	var senderIDs []string
	for _, rec := range records {
		if rec.SenderID == "" {
			continue
		}
		if _, ok := seen[rec.SenderID]; ok {
			continue
		}
		seen[rec.SenderID] = struct{}{}
		senderIDs = append(senderIDs, rec.SenderID)
	}
	identities := n.resolver.ResolveBatch(ctx, senderIDs)

	result := Result{Messages: make([]models.NormalizedMessage, 0, len(records))}
	for _, rec := range records {
		msg, ok := n.normalize(ctx, rec, identities)
		if !ok {
			result.DroppedCount++
			continue
		}
		if msg.Type == models.TypeUnparsed {
			result.UnparsedCount++
		} else {
			result.ParsedCount++
		}
		result.Messages = append(result.Messages, msg)
	}
	return result
}

func (n *Normalizer) normalize(ctx context.Context, rec models.RawMessage, identities map[string]models.Identity) (models.NormalizedMessage, bool) {
	msg := models.NormalizedMessage{
		MessageID:  rec.ID,
		Timestamp:  toSeconds(rec.TimestampMs),
		SenderID:   rec.SenderID,
		RawContent: rec.Body,
		ReplyToID:  rec.ReplyToID,
	}

	ident, ok := identities[rec.SenderID]
	if !ok || ident.Name == "" {
		ident = identity.Fallback(rec.SenderID)
	}
	msg.SenderName = ident.Name
	msg.SenderAvatar = ident.AvatarURL

	switch rec.Type {
	case "text":
		content, err := parseTextBody(rec.Body)
		if err != nil {
			n.logger.Warn("Failed to decode text message body",
				zap.Error(err),
				zap.String("message_id", rec.ID))
			msg.Type = models.TypeUnparsed
			msg.Content = ""
			return msg, true
		}
		msg.Type = models.TypeText
		msg.Content = content
	case "post":
		content, err := parsePostBody(rec.Body)
		if err != nil {
			n.logger.Warn("Failed to decode post message body",
				zap.Error(err),
				zap.String("message_id", rec.ID))
			msg.Type = models.TypeUnparsed
			msg.Content = ""
			return msg, true
		}
		msg.Type = models.TypeStructured
		msg.Content = content
	case "system":
		msg.Type = models.TypeSystem
		msg.Content = n.parseSystemBody(ctx, rec.Body)
	default:
		n.logger.Warn("Unsupported message type, dropping message",
			zap.String("message_id", rec.ID),
			zap.String("type", rec.Type))
		return models.NormalizedMessage{}, false
	}

	return msg, true
}

func toSeconds(ts int64) int64 {
	// Transports report milliseconds, but tolerate already-converted values.
	if ts > 1_000_000_000_000 {
		return ts / 1000
	}
	return ts
}

type textBody struct {
	Text string `json:"text"`
}

func parseTextBody(body string) (string, error) {
	var tb textBody
	if err := json.Unmarshal([]byte(body), &tb); err != nil {
		return "", err
	}
	return tb.Text, nil
}

// postBody mirrors the platform's rich "post" payload: per-language blocks
// of runs, each run a tagged element that may carry text.
type postBody map[string]postContent

type postContent struct {
	Title   string       `json:"title"`
	Content [][]postElem `json:"content"`
}

type postElem struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// parsePostBody walks every block in document order and concatenates the
// extractable text runs, title first, blocks separated by newlines.
func parsePostBody(body string) (string, error) {
	var pb postBody
	if err := json.Unmarshal([]byte(body), &pb); err != nil {
		return "", err
	}

	// Prefer well-known language keys, fall back to any present.
	var content postContent
	found := false
	for _, lang := range []string{"zh_cn", "en_us", "ja_jp"} {
		if c, ok := pb[lang]; ok {
			content = c
			found = true
			break
		}
	}
	if !found {
		for _, c := range pb {
			content = c
			found = true
			break
		}
	}
	if !found {
		return "", nil
	}

	var parts []string
	if content.Title != "" {
		parts = append(parts, content.Title)
	}
	for _, block := range content.Content {
		var runs []string
		for _, elem := range block {
			if elem.Text != "" {
				runs = append(runs, elem.Text)
			}
		}
		if len(runs) > 0 {
			parts = append(parts, strings.Join(runs, " "))
		}
	}
	return strings.Join(parts, "\n"), nil
}

type systemBody struct {
	Template  string            `json:"template"`
	Text      string            `json:"text"`
	Variables map[string]string `json:"variables"`
}

// parseSystemBody substitutes template placeholders with the resolved
// display names of the referenced identities. A placeholder whose identity
// cannot be resolved falls back to the raw identifier.
func (n *Normalizer) parseSystemBody(ctx context.Context, body string) string {
	var sb systemBody
	if err := json.Unmarshal([]byte(body), &sb); err != nil {
		n.logger.Warn("Failed to decode system message body", zap.Error(err))
		return body
	}
	if sb.Template == "" {
		return sb.Text
	}

	result := sb.Template
	for name, id := range sb.Variables {
		placeholder := "{" + name + "}"
		if !strings.Contains(result, placeholder) {
			continue
		}
		replacement := id
		if ident, ok := n.resolver.ResolveOK(ctx, id); ok {
			replacement = ident.Name
		}
		result = strings.ReplaceAll(result, placeholder, replacement)
	}
	return result
}
