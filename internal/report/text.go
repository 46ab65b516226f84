package report

import (
	"fmt"
	"strings"

	"github.com/xaenox/chatlens/internal/models"
)

// RenderText produces the plain-text report. It has no external
// dependencies and is the universal fallback target of the chain.
func RenderText(result *models.AnalysisResult) string {
	if result == nil {
		return "Report generation failed: no analysis result."
	}

	var b strings.Builder
	b.WriteString("Group Chat Analysis Report\n")
	fmt.Fprintf(&b, "Period: %s - %s\n\n",
		result.PeriodStart.Format("2006-01-02 15:04"),
		result.PeriodEnd.Format("2006-01-02 15:04"))

	stats := result.Statistics
	if stats.MessageCount == 0 {
		b.WriteString("No messages in the selected period - nothing to analyze.\n")
		return b.String()
	}

	b.WriteString("Statistics\n")
	fmt.Fprintf(&b, "- Messages: %d\n", stats.MessageCount)
	fmt.Fprintf(&b, "- Participants: %d\n", stats.ParticipantCount)
	fmt.Fprintf(&b, "- Characters: %d\n", stats.CharCount)
	fmt.Fprintf(&b, "- Emoji: %d\n", stats.EmojiStats.TotalCount)
	fmt.Fprintf(&b, "- Most active hours: %s\n\n", formatPeakHours(stats.PeakHours))

	b.WriteString("Hot Topics\n")
	if len(result.Topics) == 0 {
		b.WriteString(sectionNote(result, "topics"))
	}
	for i, topic := range result.Topics {
		fmt.Fprintf(&b, "%d. %s\n", i+1, topic.Title)
		fmt.Fprintf(&b, "   Participants: %s\n", strings.Join(topic.Participants, ", "))
		fmt.Fprintf(&b, "   %s\n\n", topic.Description)
	}

	b.WriteString("Member Titles\n")
	if len(result.UserTitles) == 0 {
		b.WriteString(sectionNote(result, "user_titles"))
	}
	for _, title := range result.UserTitles {
		fmt.Fprintf(&b, "- %s - %s (%s)\n", title.Name, title.Title, title.PersonalityTag)
		fmt.Fprintf(&b, "  %s\n\n", title.Reason)
	}

	b.WriteString("Quotes of the Day\n")
	if len(result.Quotes) == 0 {
		b.WriteString(sectionNote(result, "quotes"))
	}
	for i, quote := range result.Quotes {
		fmt.Fprintf(&b, "%d. %q - %s\n", i+1, quote.Content, quote.SenderName)
		fmt.Fprintf(&b, "   %s\n\n", quote.Reason)
	}

	fmt.Fprintf(&b, "Token usage: %d prompt + %d completion = %d total\n",
		result.TokenUsage.PromptTokens,
		result.TokenUsage.CompletionTokens,
		result.TokenUsage.TotalTokens)
	if result.Truncated {
		b.WriteString("Note: analysis hit the time limit; some sections show partial results.\n")
	}
	return b.String()
}

// sectionNote tells the reader whether a section is empty because analysis
// degraded or simply because nothing qualified.
func sectionNote(result *models.AnalysisResult, category string) string {
	for _, degraded := range result.Degraded {
		if degraded == category {
			return "(section unavailable: analysis failed)\n\n"
		}
	}
	return "(no data)\n\n"
}

func formatPeakHours(hours []int) string {
	if len(hours) == 0 {
		return "no data"
	}
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = fmt.Sprintf("%02d:00-%02d:00", h, (h+1)%24)
	}
	return strings.Join(parts, ", ")
}
