package models

import "time"

// MessageType is the closed set of normalized message variants.
type MessageType string

const (
	TypeText       MessageType = "text"
	TypeStructured MessageType = "structured"
	TypeSystem     MessageType = "system"
	TypeUnparsed   MessageType = "unparsed"
)

// RawMessage is a single record as delivered by the message transport,
// before any parsing. Body carries the platform's JSON payload.
type RawMessage struct {
	ID          string `json:"id"`
	TimestampMs int64  `json:"timestamp_ms"`
	SenderID    string `json:"sender_id"`
	Type        string `json:"type"`
	Body        string `json:"body"`
	ReplyToID   string `json:"reply_to_id,omitempty"`
}

// NormalizedMessage is the uniform record all analysis stages read.
// It is created once by the normalizer and never mutated afterwards.
type NormalizedMessage struct {
	MessageID    string      `json:"message_id"`
	Timestamp    int64       `json:"timestamp"`
	SenderID     string      `json:"sender_id"`
	SenderName   string      `json:"sender_name"`
	SenderAvatar string      `json:"sender_avatar"`
	Content      string      `json:"content"`
	Type         MessageType `json:"type"`
	RawContent   string      `json:"raw_content"`
	ReplyToID    string      `json:"reply_to_id,omitempty"`
}

// Identity is the resolved human-facing representation of a sender id.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// UserMetrics holds per-sender activity aggregates for one run.
type UserMetrics struct {
	MessageCount       int     `json:"message_count"`
	CharCount          int     `json:"char_count"`
	AvgMessageLength   float64 `json:"avg_message_length"`
	EmojiCount         int     `json:"emoji_count"`
	ReplyCount         int     `json:"reply_count"`
	HourlyDistribution [24]int `json:"hourly_distribution"`
}

// Topic is one discussion topic extracted by the LLM.
type Topic struct {
	Title        string   `json:"title"`
	Participants []string `json:"participants"`
	Description  string   `json:"description"`
	MessageCount int      `json:"message_count"`
}

// UserTitle is a behavioral title assigned to one active sender.
type UserTitle struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	AvatarURL      string      `json:"avatar_url"`
	Title          string      `json:"title"`
	PersonalityTag string      `json:"personality_tag"`
	Reason         string      `json:"reason"`
	Metrics        UserMetrics `json:"metrics"`
}

// Quote is a memorable message picked by the LLM. Content always matches
// a normalized message verbatim; timestamp and avatar come from that message.
type Quote struct {
	Content      string `json:"content"`
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar"`
	Timestamp    int64  `json:"timestamp"`
	Reason       string `json:"reason"`
}

// EmojiStats aggregates emoji usage across the analyzed messages.
type EmojiStats struct {
	TotalCount  int            `json:"total_count"`
	UniqueCount int            `json:"unique_count"`
	TopEmojis   map[string]int `json:"top_emojis"`
	PerUser     map[string]int `json:"per_user"`
}

// Statistics is the deterministic half of the analysis result.
type Statistics struct {
	MessageCount       int        `json:"message_count"`
	CharCount          int        `json:"char_count"`
	ParticipantCount   int        `json:"participant_count"`
	HourlyDistribution [24]int    `json:"hourly_distribution"`
	PeakHours          []int      `json:"peak_hours"`
	EmojiStats         EmojiStats `json:"emoji_stats"`
}

// TokenUsage tracks LLM token consumption across analyses.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the sum of two usages.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// AnalysisResult is the complete output of one pipeline invocation and the
// sole input to report generation. Assembled once, read-only afterwards.
type AnalysisResult struct {
	Topics      []Topic     `json:"topics"`
	UserTitles  []UserTitle `json:"user_titles"`
	Quotes      []Quote     `json:"quotes"`
	Statistics  Statistics  `json:"statistics"`
	TokenUsage  TokenUsage  `json:"token_usage"`
	PeriodStart time.Time   `json:"period_start"`
	PeriodEnd   time.Time   `json:"period_end"`
	// Truncated is set when the soft run deadline expired before every
	// analysis finished; the completed parts are still included.
	Truncated bool `json:"truncated"`
	// Degraded names the sections that fell back to empty results.
	Degraded []string `json:"degraded,omitempty"`
}
