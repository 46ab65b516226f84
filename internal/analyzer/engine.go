// Package analyzer runs the three LLM-backed analyses (topics, user titles,
// quotes) over a normalized message set. All three share one execution
// shape: build prompt, call the transport with retry and backoff, parse the
// JSON response with a repair-then-regex fallback, and degrade to an empty
// result rather than failing the invocation.
package analyzer

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/transport"
	"go.uber.org/zap"
)

// Outcome distinguishes a real (possibly empty) result from a degraded one
// produced after transport or parse failure.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDegraded
)

type Config struct {
	Timeout time.Duration
	// MaxRetries is the total attempt budget; zero still makes one attempt.
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	MaxTopics      int
	MaxUserTitles  int
	MaxQuotes      int
	MinActivity    int
	TimezoneOffset int
	SoftDeadline   time.Duration
}

type Analyzer struct {
	llm    transport.LLMTransport
	cfg    Config
	logger *zap.Logger
}

func New(llm transport.LLMTransport, cfg Config, logger *zap.Logger) *Analyzer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.MaxTopics <= 0 {
		cfg.MaxTopics = 5
	}
	if cfg.MaxUserTitles <= 0 {
		cfg.MaxUserTitles = 8
	}
	if cfg.MaxQuotes <= 0 {
		cfg.MaxQuotes = 5
	}
	if cfg.MinActivity < 1 {
		cfg.MinActivity = 5
	}
	return &Analyzer{llm: llm, cfg: cfg, logger: logger}
}

// completeWithRetry calls the LLM transport with a per-attempt timeout and
// exponential backoff between attempts. Usage accumulates across attempts:
// a billed-but-unusable response still counts, a dead transport adds zero.
func (a *Analyzer) completeWithRetry(ctx context.Context, prompt string) (string, models.TokenUsage, error) {
	var usage models.TokenUsage
	var lastErr error

	for attempt := 0; attempt < a.cfg.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		text, u, err := a.llm.Complete(callCtx, prompt)
		cancel()

		usage = usage.Add(u)
		if err == nil {
			return text, usage, nil
		}
		lastErr = err
		a.logger.Warn("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", a.cfg.MaxRetries))

		if attempt == a.cfg.MaxRetries-1 {
			break
		}
		delay := a.cfg.BackoffBase << uint(attempt)
		if delay > a.cfg.BackoffCap {
			delay = a.cfg.BackoffCap
		}
		select {
		case <-ctx.Done():
			return "", usage, ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", usage, lastErr
}

// extractJSONArray returns the outermost bracketed slice of text.
func extractJSONArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

var (
	fenceOpen     = regexp.MustCompile("```(?:json)?\\s*")
	multiSpace    = regexp.MustCompile(`\s+`)
	missingComma  = regexp.MustCompile(`}\s*{`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
)

// repairJSON fixes the malformations models actually produce: markdown
// fences, smart quotes, literal newlines, missing or trailing commas,
// unquoted keys, and truncated arrays.
func repairJSON(text string) string {
	text = fenceOpen.ReplaceAllString(text, "")
	text = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"\n", " ", "\r", " ", "\t", " ",
	).Replace(text)
	text = multiSpace.ReplaceAllString(text, " ")
	text = missingComma.ReplaceAllString(text, "}, {")
	text = bareKey.ReplaceAllString(text, `$1"$2":`)
	text = trailingComma.ReplaceAllString(text, "$1")

	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, "]") {
		if last := strings.LastIndex(text, "}"); last > 0 {
			text = text[:last+1] + "]"
		}
	}
	return text
}

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// cleanContent strips characters that break prompt formatting or the
// model's JSON output.
func cleanContent(content string) string {
	content = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"\n", " ", "\r", " ", "\t", " ",
	).Replace(content)
	content = controlChars.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

func (a *Analyzer) formatClock(ts int64) string {
	zone := time.FixedZone("analysis", a.cfg.TimezoneOffset*3600)
	return time.Unix(ts, 0).In(zone).Format("15:04")
}
