package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/stats"
	"go.uber.org/zap"
)

type titleEntry struct {
	Name        string `json:"name"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Personality string `json:"personality"`
	Reason      string `json:"reason"`
}

const titlesPromptFormat = `Assign a fitting title and a personality tag to each of the
group members below. Each member gets exactly one title and each title goes
to at most one member.

Suggested titles (extend freely when none fits):
- Chatterbox: posts constantly, keeps things light
- Tech Sage: steers discussions toward technical topics
- Night Owl: most active in the small hours
- Meme Arsenal: communicates mainly in emoji
- Icebreaker: regularly opens new threads of conversation
- The Essayist: writes unusually long messages
- Reply Machine: answers everyone

Member data:
%s

Return ONLY a JSON array in exactly this format:
[
  {"name": "member name", "user_id": "member id", "title": "title", "personality": "short personality tag", "reason": "why this title fits"}
]`

// AnalyzeUserTitles assigns behavioral titles to the most active senders.
// Senders below the activity threshold are excluded before prompting, and
// entries whose user_id is not a known candidate are dropped after parsing;
// identity fields and metrics always come from our own data, never from
// the model.
func (a *Analyzer) AnalyzeUserTitles(ctx context.Context, profiles map[string]stats.SenderProfile) ([]models.UserTitle, models.TokenUsage, Outcome) {
	candidates := make([]stats.SenderProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.Metrics.MessageCount >= a.cfg.MinActivity {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return []models.UserTitle{}, models.TokenUsage{}, OutcomeSuccess
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Metrics.MessageCount != candidates[j].Metrics.MessageCount {
			return candidates[i].Metrics.MessageCount > candidates[j].Metrics.MessageCount
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > a.cfg.MaxUserTitles {
		candidates = candidates[:a.cfg.MaxUserTitles]
	}

	var lines []string
	for _, p := range candidates {
		m := p.Metrics
		night := 0
		for h := 0; h < 6; h++ {
			night += m.HourlyDistribution[h]
		}
		total := float64(m.MessageCount)
		lines = append(lines, fmt.Sprintf(
			"- %s (id:%s): %d messages, %.1f chars average, emoji ratio %.2f, night ratio %.2f, reply ratio %.2f",
			p.Name, p.ID, m.MessageCount, m.AvgMessageLength,
			float64(m.EmojiCount)/total, float64(night)/total, float64(m.ReplyCount)/total))
	}

	prompt := fmt.Sprintf(titlesPromptFormat, strings.Join(lines, "\n"))
	text, usage, err := a.completeWithRetry(ctx, prompt)
	if err != nil {
		a.logger.Error("User title analysis failed after retries", zap.Error(err))
		return []models.UserTitle{}, usage, OutcomeDegraded
	}

	entries, ok := parseTitleEntries(text)
	if !ok {
		a.logger.Error("Failed to parse user title response",
			zap.String("response", text))
		return []models.UserTitle{}, usage, OutcomeDegraded
	}

	titles := make([]models.UserTitle, 0, len(entries))
	for _, entry := range entries {
		profile, known := profiles[entry.UserID]
		if !known || entry.Title == "" {
			continue
		}
		titles = append(titles, models.UserTitle{
			ID:             profile.ID,
			Name:           profile.Name,
			AvatarURL:      profile.Avatar,
			Title:          entry.Title,
			PersonalityTag: entry.Personality,
			Reason:         entry.Reason,
			Metrics:        profile.Metrics,
		})
		if len(titles) == a.cfg.MaxUserTitles {
			break
		}
	}
	return titles, usage, OutcomeSuccess
}

func parseTitleEntries(text string) ([]titleEntry, bool) {
	raw, found := extractJSONArray(text)
	if !found {
		return nil, false
	}
	var entries []titleEntry
	if err := json.Unmarshal([]byte(raw), &entries); err == nil {
		return entries, true
	}
	if err := json.Unmarshal([]byte(repairJSON(raw)), &entries); err == nil {
		return entries, true
	}
	return nil, false
}
