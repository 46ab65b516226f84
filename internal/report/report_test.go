package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/chatlens/internal/models"
)

type fakeRenderer struct {
	imageErr     error
	pdfErr       error
	pdfAvailable bool
	imageCalls   int
	pdfCalls     int
}

func (f *fakeRenderer) RenderImage(_ context.Context, html string) ([]byte, error) {
	f.imageCalls++
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return []byte("png-bytes"), nil
}

func (f *fakeRenderer) RenderPDF(_ context.Context, html string) ([]byte, error) {
	f.pdfCalls++
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return []byte("pdf-bytes"), nil
}

func (f *fakeRenderer) PDFAvailable() bool {
	return f.pdfAvailable
}

func sampleResult() *models.AnalysisResult {
	start := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	return &models.AnalysisResult{
		Topics: []models.Topic{
			{Title: "Deploy freeze", Participants: []string{"alice", "bob"}, Description: "freeze until friday", MessageCount: 6},
		},
		UserTitles: []models.UserTitle{
			{ID: "u_alice", Name: "alice", Title: "Chatterbox", PersonalityTag: "upbeat", Reason: "posts constantly"},
		},
		Quotes: []models.Quote{
			{Content: "famous last words", SenderName: "bob", Reason: "irony"},
		},
		Statistics: models.Statistics{
			MessageCount:     42,
			CharCount:        900,
			ParticipantCount: 3,
			PeakHours:        []int{14, 9, 23},
		},
		TokenUsage:  models.TokenUsage{PromptTokens: 300, CompletionTokens: 150, TotalTokens: 450},
		PeriodStart: start,
		PeriodEnd:   start.Add(24 * time.Hour),
	}
}

func emptyResult() *models.AnalysisResult {
	start := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	return &models.AnalysisResult{
		Topics:      []models.Topic{},
		UserTitles:  []models.UserTitle{},
		Quotes:      []models.Quote{},
		PeriodStart: start,
		PeriodEnd:   start.Add(24 * time.Hour),
	}
}

func TestGenerateTextDirect(t *testing.T) {
	g := NewGenerator(&fakeRenderer{}, zap.NewNop())

	outcome := g.Generate(context.Background(), sampleResult(), FormatText)

	assert.Equal(t, FormatText, outcome.Delivered)
	assert.False(t, outcome.Fallback())
	assert.Contains(t, outcome.Text, "Deploy freeze")
	assert.Contains(t, outcome.Text, "famous last words")
}

func TestGenerateImageSuccess(t *testing.T) {
	r := &fakeRenderer{}
	g := NewGenerator(r, zap.NewNop())

	outcome := g.Generate(context.Background(), sampleResult(), FormatImage)

	assert.Equal(t, FormatImage, outcome.Delivered)
	assert.Equal(t, []byte("png-bytes"), outcome.Data)
	assert.False(t, outcome.Fallback())
	assert.Equal(t, 1, r.imageCalls)
}

func TestGeneratePDFUnavailableFallsToImage(t *testing.T) {
	r := &fakeRenderer{pdfAvailable: false}
	g := NewGenerator(r, zap.NewNop())

	outcome := g.Generate(context.Background(), sampleResult(), FormatPDF)

	assert.Equal(t, FormatPDF, outcome.Requested)
	assert.Equal(t, FormatImage, outcome.Delivered)
	assert.True(t, outcome.Fallback())
	require.Len(t, outcome.Fallbacks, 1)
	assert.Equal(t, FormatPDF, outcome.Fallbacks[0].From)
	assert.Equal(t, FormatImage, outcome.Fallbacks[0].To)
	assert.Zero(t, r.pdfCalls, "unavailable pdf renderer must not be invoked")
}

func TestGenerateFullCascadeToText(t *testing.T) {
	r := &fakeRenderer{
		pdfAvailable: true,
		pdfErr:       fmt.Errorf("browser crashed"),
		imageErr:     fmt.Errorf("browser still down"),
	}
	g := NewGenerator(r, zap.NewNop())

	outcome := g.Generate(context.Background(), sampleResult(), FormatPDF)

	assert.Equal(t, FormatText, outcome.Delivered)
	assert.NotEmpty(t, outcome.Text)
	require.Len(t, outcome.Fallbacks, 2)
	assert.Equal(t, "pdf -> image: browser crashed", outcome.Fallbacks[0].String())
	assert.Equal(t, FormatImage, outcome.Fallbacks[1].From)
	assert.Equal(t, FormatText, outcome.Fallbacks[1].To)
}

func TestGenerateNormalizesFormatCase(t *testing.T) {
	r := &fakeRenderer{pdfAvailable: true}
	g := NewGenerator(r, zap.NewNop())

	outcome := g.Generate(context.Background(), sampleResult(), Format("PDF"))

	assert.Equal(t, FormatPDF, outcome.Requested)
	assert.Equal(t, FormatPDF, outcome.Delivered)
	assert.Equal(t, 1, r.pdfCalls)
	assert.False(t, outcome.Fallback())
}

func TestGenerateFillsTextForBinaryFormats(t *testing.T) {
	g := NewGenerator(&fakeRenderer{}, zap.NewNop())

	outcome := g.Generate(context.Background(), sampleResult(), FormatImage)

	assert.Equal(t, FormatImage, outcome.Delivered)
	assert.Equal(t, []byte("png-bytes"), outcome.Data)
	assert.Contains(t, outcome.Text, "Deploy freeze")
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{
		"text":  FormatText,
		"IMAGE": FormatImage,
		" Pdf ": FormatPDF,
	} {
		got, ok := ParseFormat(input)
		assert.True(t, ok, "input %q", input)
		assert.Equal(t, want, got)
	}

	got, ok := ParseFormat("docx")
	assert.False(t, ok)
	assert.Equal(t, FormatText, got)
}

func TestGenerateNilRendererFallsToText(t *testing.T) {
	g := NewGenerator(nil, zap.NewNop())

	outcome := g.Generate(context.Background(), sampleResult(), FormatImage)

	assert.Equal(t, FormatText, outcome.Delivered)
	require.Len(t, outcome.Fallbacks, 1)
	assert.Equal(t, FormatImage, outcome.Fallbacks[0].From)
}

func TestRenderTextNoData(t *testing.T) {
	text := RenderText(emptyResult())

	assert.Contains(t, text, "No messages in the selected period")
	assert.NotContains(t, text, "Hot Topics")
}

func TestRenderTextDegradedSectionNote(t *testing.T) {
	result := sampleResult()
	result.Topics = []models.Topic{}
	result.Degraded = []string{"topics"}

	text := RenderText(result)

	assert.Contains(t, text, "Hot Topics\n(section unavailable: analysis failed)")
	// Quotes are present, so no note there.
	assert.Contains(t, text, "famous last words")
}

func TestRenderTextEmptySectionWithoutDegradation(t *testing.T) {
	result := sampleResult()
	result.Quotes = []models.Quote{}

	text := RenderText(result)

	assert.Contains(t, text, "Quotes of the Day\n(no data)")
}

func TestRenderTextTokenUsageAndTruncation(t *testing.T) {
	result := sampleResult()
	result.Truncated = true

	text := RenderText(result)

	assert.Contains(t, text, "Token usage: 300 prompt + 150 completion = 450 total")
	assert.Contains(t, text, "hit the time limit")
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(sampleResult())
	require.NoError(t, err)

	assert.Contains(t, html, "Deploy freeze")
	assert.Contains(t, html, "Chatterbox")
	assert.Contains(t, html, "famous last words")
	assert.Contains(t, html, "14:00-15:00")
}

func TestRenderHTMLNoData(t *testing.T) {
	html, err := RenderHTML(emptyResult())
	require.NoError(t, err)

	assert.Contains(t, html, "No messages in the selected period")
	assert.NotContains(t, html, "Hot Topics")
}

func TestFormatPeakHours(t *testing.T) {
	assert.Equal(t, "14:00-15:00, 09:00-10:00, 23:00-00:00", formatPeakHours([]int{14, 9, 23}))
	assert.Equal(t, "no data", formatPeakHours(nil))
}
