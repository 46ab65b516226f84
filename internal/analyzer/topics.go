package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/chatlens/internal/models"
	"go.uber.org/zap"
)

type topicEntry struct {
	Topic        string   `json:"topic"`
	Contributors []string `json:"contributors"`
	Detail       string   `json:"detail"`
}

const topicsPromptFormat = `You are an assistant that summarizes group chat discussions.
Analyze the chat log below and extract up to %d main discussion topics.

For each topic provide:
1. A concise topic title
2. The main participants (at most 5 names, exactly as they appear in the log)
3. A detailed description covering the key points and any conclusions reached

Chat log:
%s

Return ONLY a JSON array in exactly this format, using standard double quotes
and no markdown fences:
[
  {"topic": "topic title", "contributors": ["name1", "name2"], "detail": "what was discussed and concluded"}
]`

// AnalyzeTopics extracts discussion topics from the batch. Entries missing
// a title or with no participants are discarded before inclusion.
func (a *Analyzer) AnalyzeTopics(ctx context.Context, messages []models.NormalizedMessage) ([]models.Topic, models.TokenUsage, Outcome) {
	lines := a.formatChatLog(messages)
	if len(lines) == 0 {
		return []models.Topic{}, models.TokenUsage{}, OutcomeSuccess
	}

	prompt := fmt.Sprintf(topicsPromptFormat, a.cfg.MaxTopics, strings.Join(lines, "\n"))
	text, usage, err := a.completeWithRetry(ctx, prompt)
	if err != nil {
		a.logger.Error("Topic analysis failed after retries", zap.Error(err))
		return []models.Topic{}, usage, OutcomeDegraded
	}

	entries, ok := parseTopicEntries(text)
	if !ok {
		a.logger.Error("Failed to parse topic analysis response",
			zap.String("response", text))
		return []models.Topic{}, usage, OutcomeDegraded
	}

	perSender := make(map[string]int)
	for _, msg := range messages {
		perSender[msg.SenderName]++
	}

	topics := make([]models.Topic, 0, len(entries))
	for _, entry := range entries {
		if entry.Topic == "" || len(entry.Contributors) == 0 {
			continue
		}
		participants := entry.Contributors
		if len(participants) > 5 {
			participants = participants[:5]
		}
		count := 0
		for _, name := range participants {
			count += perSender[name]
		}
		topics = append(topics, models.Topic{
			Title:        entry.Topic,
			Participants: participants,
			Description:  entry.Detail,
			MessageCount: count,
		})
		if len(topics) == a.cfg.MaxTopics {
			break
		}
	}
	return topics, usage, OutcomeSuccess
}

// parseTopicEntries tries strict JSON, repaired JSON, then a regex sweep.
func parseTopicEntries(text string) ([]topicEntry, bool) {
	raw, found := extractJSONArray(text)
	if found {
		var entries []topicEntry
		if err := json.Unmarshal([]byte(raw), &entries); err == nil {
			return entries, true
		}
		if err := json.Unmarshal([]byte(repairJSON(raw)), &entries); err == nil {
			return entries, true
		}
	}
	if entries := extractTopicsWithRegex(text); len(entries) > 0 {
		return entries, true
	}
	return nil, false
}

var (
	topicPattern  = regexp.MustCompile(`"topic"\s*:\s*"([^"]+)"[^}]*?"contributors"\s*:\s*\[([^\]]*)\][^}]*?"detail"\s*:\s*"([^"]*)"`)
	quotedPattern = regexp.MustCompile(`"([^"]+)"`)
)

func extractTopicsWithRegex(text string) []topicEntry {
	var entries []topicEntry
	for _, match := range topicPattern.FindAllStringSubmatch(text, -1) {
		var contributors []string
		for _, q := range quotedPattern.FindAllStringSubmatch(match[2], -1) {
			contributors = append(contributors, strings.TrimSpace(q[1]))
		}
		entries = append(entries, topicEntry{
			Topic:        strings.TrimSpace(match[1]),
			Contributors: contributors,
			Detail:       strings.TrimSpace(match[3]),
		})
	}
	return entries
}

// formatChatLog renders messages as "[HH:MM] sender: content" lines,
// skipping unparsed, trivially short, and command-like content.
func (a *Analyzer) formatChatLog(messages []models.NormalizedMessage) []string {
	var lines []string
	for _, msg := range messages {
		if msg.Type == models.TypeUnparsed || msg.Content == "" {
			continue
		}
		if utf8.RuneCountInString(msg.Content) <= 2 || strings.HasPrefix(msg.Content, "/") {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			a.formatClock(msg.Timestamp), msg.SenderName, cleanContent(msg.Content)))
	}
	return lines
}
