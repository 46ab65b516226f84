package analyzer

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result aggregates the three analyses of one run. Degraded lists the
// categories that fell back to empty results; Truncated is set when the
// soft deadline expired before all three finished.
type Result struct {
	Topics     []models.Topic
	UserTitles []models.UserTitle
	Quotes     []models.Quote
	TokenUsage models.TokenUsage
	Degraded   []string
	Truncated  bool
}

// Analyze runs topics, user titles, and quotes concurrently over the same
// read-only message set and joins their results. The analyses are
// independent: each degrades on its own without affecting the others. The
// configured soft deadline bounds the whole phase; whatever finished in
// time is returned.
func (a *Analyzer) Analyze(ctx context.Context, messages []models.NormalizedMessage, profiles map[string]stats.SenderProfile) Result {
	result := Result{
		Topics:     []models.Topic{},
		UserTitles: []models.UserTitle{},
		Quotes:     []models.Quote{},
	}
	if len(messages) == 0 {
		return result
	}

	runCtx := ctx
	if a.cfg.SoftDeadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.cfg.SoftDeadline)
		defer cancel()
	}

	var mu sync.Mutex
	record := func(category string, usage models.TokenUsage, outcome Outcome) {
		mu.Lock()
		defer mu.Unlock()
		result.TokenUsage = result.TokenUsage.Add(usage)
		if outcome == OutcomeDegraded {
			result.Degraded = append(result.Degraded, category)
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		topics, usage, outcome := a.AnalyzeTopics(runCtx, messages)
		record("topics", usage, outcome)
		if outcome == OutcomeSuccess {
			result.Topics = topics
		}
		return nil
	})
	g.Go(func() error {
		titles, usage, outcome := a.AnalyzeUserTitles(runCtx, profiles)
		record("user_titles", usage, outcome)
		if outcome == OutcomeSuccess {
			result.UserTitles = titles
		}
		return nil
	})
	g.Go(func() error {
		quotes, usage, outcome := a.AnalyzeQuotes(runCtx, messages)
		record("quotes", usage, outcome)
		if outcome == OutcomeSuccess {
			result.Quotes = quotes
		}
		return nil
	})
	g.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.Truncated = true
		a.logger.Warn("Analysis soft deadline exceeded, returning partial results",
			zap.Strings("degraded", result.Degraded))
	}
	sort.Strings(result.Degraded)
	return result
}
