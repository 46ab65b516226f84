// Package stats computes deterministic activity statistics over normalized
// messages. Everything here is pure: no I/O, no caching, safe to call
// concurrently with the LLM analyses reading the same slice.
package stats

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/xaenox/chatlens/internal/models"
)

// SenderProfile pairs a sender's identity fields with their metrics for
// the run. The titles analysis consumes these directly.
type SenderProfile struct {
	ID      string
	Name    string
	Avatar  string
	Metrics models.UserMetrics
}

// Calculate produces group statistics for the batch. Unparsed and
// empty-content messages are excluded from every count. Empty input yields
// all-zero fields, never an error.
func Calculate(messages []models.NormalizedMessage, tzOffsetHours int, policy EmojiPolicy) models.Statistics {
	s := models.Statistics{
		PeakHours: []int{},
		EmojiStats: models.EmojiStats{
			TopEmojis: make(map[string]int),
			PerUser:   make(map[string]int),
		},
	}

	zone := time.FixedZone("analysis", tzOffsetHours*3600)
	senders := make(map[string]struct{})

	for _, msg := range messages {
		if !countable(msg) {
			continue
		}
		s.MessageCount++
		s.CharCount += utf8.RuneCountInString(msg.Content)
		senders[msg.SenderID] = struct{}{}

		hour := time.Unix(msg.Timestamp, 0).In(zone).Hour()
		s.HourlyDistribution[hour]++

		for _, emoji := range policy.Scan(msg.Content) {
			s.EmojiStats.TotalCount++
			s.EmojiStats.TopEmojis[emoji]++
			s.EmojiStats.PerUser[msg.SenderID]++
		}
	}

	s.ParticipantCount = len(senders)
	s.EmojiStats.UniqueCount = len(s.EmojiStats.TopEmojis)
	s.PeakHours = peakHours(s.HourlyDistribution, 3)
	return s
}

// AnalyzeUsers aggregates per-sender metrics for the batch, keyed by
// sender id. Reply counts come from messages that reference another one.
func AnalyzeUsers(messages []models.NormalizedMessage, tzOffsetHours int, policy EmojiPolicy) map[string]SenderProfile {
	zone := time.FixedZone("analysis", tzOffsetHours*3600)
	profiles := make(map[string]SenderProfile)

	for _, msg := range messages {
		if !countable(msg) {
			continue
		}
		p, ok := profiles[msg.SenderID]
		if !ok {
			p = SenderProfile{
				ID:     msg.SenderID,
				Name:   msg.SenderName,
				Avatar: msg.SenderAvatar,
			}
		}

		p.Metrics.MessageCount++
		p.Metrics.CharCount += utf8.RuneCountInString(msg.Content)
		p.Metrics.EmojiCount += len(policy.Scan(msg.Content))
		if msg.ReplyToID != "" {
			p.Metrics.ReplyCount++
		}
		hour := time.Unix(msg.Timestamp, 0).In(zone).Hour()
		p.Metrics.HourlyDistribution[hour]++

		profiles[msg.SenderID] = p
	}

	for id, p := range profiles {
		if p.Metrics.MessageCount > 0 {
			p.Metrics.AvgMessageLength = float64(p.Metrics.CharCount) / float64(p.Metrics.MessageCount)
		}
		profiles[id] = p
	}
	return profiles
}

func countable(msg models.NormalizedMessage) bool {
	return msg.Type != models.TypeUnparsed && msg.Content != ""
}

// peakHours returns up to n hours ranked by descending count, ties broken
// by the earlier hour. Zero-count hours never appear.
func peakHours(dist [24]int, n int) []int {
	var hours []int
	for h := 0; h < 24; h++ {
		if dist[h] > 0 {
			hours = append(hours, h)
		}
	}
	sort.Slice(hours, func(i, j int) bool {
		if dist[hours[i]] != dist[hours[j]] {
			return dist[hours[i]] > dist[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	if hours == nil {
		hours = []int{}
	}
	return hours
}
