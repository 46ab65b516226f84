// Package report renders an AnalysisResult into text, image, or PDF.
// Higher-fidelity formats degrade down an explicit chain, pdf → image →
// text, one step at a time, and every step taken is recorded on the
// outcome so callers can tell the user what they actually received.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/transport"
	"go.uber.org/zap"
)

type Format string

const (
	FormatText  Format = "text"
	FormatImage Format = "image"
	FormatPDF   Format = "pdf"
)

// ParseFormat maps a user-supplied format name to a Format, ignoring case
// and surrounding whitespace. Unknown names report false and map to text.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return FormatText, true
	case "image":
		return FormatImage, true
	case "pdf":
		return FormatPDF, true
	}
	return FormatText, false
}

// FallbackStep records one degradation from a format to the next.
type FallbackStep struct {
	From   Format
	To     Format
	Reason string
}

func (s FallbackStep) String() string {
	return fmt.Sprintf("%s -> %s: %s", s.From, s.To, s.Reason)
}

// Outcome is the delivered artifact plus the degradation trail that
// produced it. Data holds image/PDF bytes; Text always carries the text
// rendering, whatever format was delivered.
type Outcome struct {
	Requested Format
	Delivered Format
	Data      []byte
	Text      string
	Fallbacks []FallbackStep
}

// Fallback reports whether the delivered format differs from the request.
func (o *Outcome) Fallback() bool {
	return len(o.Fallbacks) > 0
}

type Generator struct {
	renderer transport.RenderTransport
	logger   *zap.Logger
}

// NewGenerator builds a report generator. A nil renderer disables the
// image and PDF paths; requests for them fall through to text.
func NewGenerator(renderer transport.RenderTransport, logger *zap.Logger) *Generator {
	return &Generator{renderer: renderer, logger: logger}
}

// Generate renders result in the requested format, walking the fallback
// chain on failure. It never fails outright: text is always producible.
func (g *Generator) Generate(ctx context.Context, result *models.AnalysisResult, format Format) *Outcome {
	// Callers pass config- or user-supplied names; normalize so "PDF" walks
	// the pdf chain instead of falling through to text.
	format, _ = ParseFormat(string(format))
	outcome := &Outcome{Requested: format}

	chain := fallbackChain(format)
	for i, attempt := range chain {
		data, err := g.render(ctx, result, attempt)
		if err == nil {
			outcome.Delivered = attempt
			if attempt == FormatText {
				outcome.Text = string(data)
			} else {
				outcome.Data = data
				// Text stays available even for binary deliveries; it is
				// the fallback when the upload itself fails downstream.
				outcome.Text = RenderText(result)
			}
			return outcome
		}

		// Text cannot fail, so i+1 always exists here.
		step := FallbackStep{From: attempt, To: chain[i+1], Reason: err.Error()}
		outcome.Fallbacks = append(outcome.Fallbacks, step)
		g.logger.Warn("Report format failed, falling back",
			zap.String("from", string(step.From)),
			zap.String("to", string(step.To)),
			zap.Error(err))
	}

	// Unreachable: the chain always ends in text.
	outcome.Delivered = FormatText
	outcome.Text = RenderText(result)
	return outcome
}

// fallbackChain is strictly ordered and never skips a step.
func fallbackChain(format Format) []Format {
	switch format {
	case FormatPDF:
		return []Format{FormatPDF, FormatImage, FormatText}
	case FormatImage:
		return []Format{FormatImage, FormatText}
	default:
		return []Format{FormatText}
	}
}

func (g *Generator) render(ctx context.Context, result *models.AnalysisResult, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return []byte(RenderText(result)), nil
	case FormatImage:
		if g.renderer == nil {
			return nil, fmt.Errorf("no render transport configured")
		}
		html, err := RenderHTML(result)
		if err != nil {
			return nil, fmt.Errorf("failed to build report HTML: %w", err)
		}
		return g.renderer.RenderImage(ctx, html)
	case FormatPDF:
		if g.renderer == nil {
			return nil, fmt.Errorf("no render transport configured")
		}
		if !g.renderer.PDFAvailable() {
			return nil, fmt.Errorf("pdf renderer unavailable")
		}
		html, err := RenderHTML(result)
		if err != nil {
			return nil, fmt.Errorf("failed to build report HTML: %w", err)
		}
		return g.renderer.RenderPDF(ctx, html)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}
