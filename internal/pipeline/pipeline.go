package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/chatlens/internal/analyzer"
	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/normalizer"
	"github.com/xaenox/chatlens/internal/report"
	"github.com/xaenox/chatlens/internal/stats"
	"github.com/xaenox/chatlens/internal/transport"
)

// Config carries the collection parameters for one pipeline run. Values are
// validated at load time; the pipeline trusts them.
type Config struct {
	Days           int
	MaxMessages    int
	TimezoneOffset int
	// SelfID filters out the pipeline owner's own messages.
	SelfID string
	Emoji  stats.EmojiPolicy
}

// Pipeline runs the full analysis flow: fetch history, normalize, compute
// statistics, run the LLM analyses and render the report.
type Pipeline struct {
	messages   transport.MessageTransport
	normalizer *normalizer.Normalizer
	analyzer   *analyzer.Analyzer
	generator  *report.Generator
	cfg        Config
	logger     *zap.Logger
}

func New(messages transport.MessageTransport, n *normalizer.Normalizer, a *analyzer.Analyzer,
	g *report.Generator, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.Days <= 0 {
		cfg.Days = 1
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 1000
	}
	return &Pipeline{
		messages:   messages,
		normalizer: n,
		analyzer:   a,
		generator:  g,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetSelfID sets the owner's sender id once it is known. The bot learns its
// own id only after connecting.
func (p *Pipeline) SetSelfID(id string) {
	p.cfg.SelfID = id
}

// Run analyzes one chat and renders the report in the requested format.
// A history fetch that fails before delivering any page is fatal; a failure
// mid-scan degrades the run to whatever was already collected.
func (p *Pipeline) Run(ctx context.Context, chatID string, format report.Format) (*models.AnalysisResult, *report.Outcome, error) {
	end := time.Now()
	start := end.Add(-time.Duration(p.cfg.Days) * 24 * time.Hour)

	raw, historyDegraded, err := p.collect(ctx, chatID, start, end)
	if err != nil {
		return nil, nil, err
	}

	norm := p.normalizer.NormalizeBatch(ctx, raw)
	p.logger.Info("Normalized chat history",
		zap.String("chat_id", chatID),
		zap.Int("parsed", norm.ParsedCount),
		zap.Int("unparsed", norm.UnparsedCount),
		zap.Int("dropped", norm.DroppedCount))

	statistics := stats.Calculate(norm.Messages, p.cfg.TimezoneOffset, p.cfg.Emoji)
	profiles := stats.AnalyzeUsers(norm.Messages, p.cfg.TimezoneOffset, p.cfg.Emoji)

	analysis := p.analyzer.Analyze(ctx, norm.Messages, profiles)

	result := &models.AnalysisResult{
		Topics:      analysis.Topics,
		UserTitles:  analysis.UserTitles,
		Quotes:      analysis.Quotes,
		Statistics:  statistics,
		TokenUsage:  analysis.TokenUsage,
		PeriodStart: start,
		PeriodEnd:   end,
		Truncated:   analysis.Truncated,
		Degraded:    analysis.Degraded,
	}
	if historyDegraded {
		result.Degraded = append(result.Degraded, "history")
		sort.Strings(result.Degraded)
	}

	outcome := p.generator.Generate(ctx, result, format)
	return result, outcome, nil
}

// collect pages through the chat history and returns the in-window messages,
// newest MaxMessages of them, in transport order. The bool reports whether
// the scan stopped early on a transport error.
func (p *Pipeline) collect(ctx context.Context, chatID string, start, end time.Time) ([]models.RawMessage, bool, error) {
	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	var kept []models.RawMessage
	cursor := ""
	fetched := 0

	for {
		page, err := p.messages.FetchPage(ctx, chatID, cursor)
		if err != nil {
			if fetched == 0 {
				return nil, false, fmt.Errorf("failed to fetch chat history: %w", err)
			}
			p.logger.Warn("History scan stopped early",
				zap.String("chat_id", chatID),
				zap.Int("fetched", fetched),
				zap.Error(err))
			return kept, true, nil
		}
		fetched += len(page.Records)

		for _, rec := range page.Records {
			if p.cfg.SelfID != "" && rec.SenderID == p.cfg.SelfID {
				continue
			}
			ms := normalizeMillis(rec.TimestampMs)
			if ms < startMs || ms > endMs {
				continue
			}
			kept = append(kept, rec)
			if len(kept) > p.cfg.MaxMessages {
				kept = kept[1:]
			}
		}

		if page.NextCursor == "" {
			return kept, false, nil
		}
		cursor = page.NextCursor
	}
}

// normalizeMillis accepts second or millisecond precision.
func normalizeMillis(ts int64) int64 {
	if ts > 1_000_000_000_000 {
		return ts
	}
	return ts * 1000
}
