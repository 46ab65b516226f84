package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/chatlens/internal/models"
	"go.uber.org/zap"
)

type quoteEntry struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
	Reason  string `json:"reason"`
}

const quotesPromptFormat = `Pick the %d most striking, memorable quotes from the chat log
below: original lines with surprising logic, bold claims, sharp humor, or a
strong sense of contrast. Skip plain meme references and filler.

For each quote provide:
1. The original content, copied EXACTLY as it appears in the log
2. The sender's name
3. Why this line stands out

Chat log:
%s

Return ONLY a JSON array in exactly this format:
[
  {"content": "the quote, verbatim", "sender": "sender name", "reason": "why it was picked"}
]`

// AnalyzeQuotes picks memorable quotes from the batch. A quote whose
// content cannot be traced back to an actual message verbatim is discarded;
// the matching message supplies the timestamp, sender, and avatar.
func (a *Analyzer) AnalyzeQuotes(ctx context.Context, messages []models.NormalizedMessage) ([]models.Quote, models.TokenUsage, Outcome) {
	var lines []string
	for _, msg := range messages {
		if !quotable(msg) {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			a.formatClock(msg.Timestamp), msg.SenderName, cleanContent(msg.Content)))
	}
	if len(lines) == 0 {
		return []models.Quote{}, models.TokenUsage{}, OutcomeSuccess
	}

	prompt := fmt.Sprintf(quotesPromptFormat, a.cfg.MaxQuotes, strings.Join(lines, "\n"))
	text, usage, err := a.completeWithRetry(ctx, prompt)
	if err != nil {
		a.logger.Error("Quote analysis failed after retries", zap.Error(err))
		return []models.Quote{}, usage, OutcomeDegraded
	}

	entries, ok := parseQuoteEntries(text)
	if !ok {
		a.logger.Error("Failed to parse quote analysis response",
			zap.String("response", text))
		return []models.Quote{}, usage, OutcomeDegraded
	}

	quotes := make([]models.Quote, 0, len(entries))
	for _, entry := range entries {
		if entry.Content == "" {
			continue
		}
		source, found := findSource(messages, entry.Content)
		if !found {
			a.logger.Warn("Discarding quote with no matching message",
				zap.String("content", entry.Content))
			continue
		}
		quotes = append(quotes, models.Quote{
			Content:      entry.Content,
			SenderName:   source.SenderName,
			SenderAvatar: source.SenderAvatar,
			Timestamp:    source.Timestamp,
			Reason:       entry.Reason,
		})
		if len(quotes) == a.cfg.MaxQuotes {
			break
		}
	}
	return quotes, usage, OutcomeSuccess
}

func parseQuoteEntries(text string) ([]quoteEntry, bool) {
	raw, found := extractJSONArray(text)
	if !found {
		return nil, false
	}
	var entries []quoteEntry
	if err := json.Unmarshal([]byte(raw), &entries); err == nil {
		return entries, true
	}
	if err := json.Unmarshal([]byte(repairJSON(raw)), &entries); err == nil {
		return entries, true
	}
	return nil, false
}

// findSource locates the message a quote was lifted from. Exact content
// matches win; a containment match covers quotes lifted from longer
// messages.
func findSource(messages []models.NormalizedMessage, content string) (models.NormalizedMessage, bool) {
	for _, msg := range messages {
		if msg.Content == content {
			return msg, true
		}
	}
	for _, msg := range messages {
		if msg.Content != "" && strings.Contains(msg.Content, content) {
			return msg, true
		}
	}
	return models.NormalizedMessage{}, false
}

func quotable(msg models.NormalizedMessage) bool {
	if msg.Type == models.TypeUnparsed || msg.Content == "" {
		return false
	}
	length := utf8.RuneCountInString(msg.Content)
	if length < 5 || length > 100 {
		return false
	}
	for _, prefix := range []string{"http", "www", "/"} {
		if strings.HasPrefix(msg.Content, prefix) {
			return false
		}
	}
	return true
}
