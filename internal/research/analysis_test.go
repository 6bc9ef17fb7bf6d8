package research

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/extract"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

func TestAnalyze(t *testing.T) {
	transcript := transcriptFor(testPersonas)
	llm := newFakeLLM(reply{content: "```json\n" + mustJSON(t, validReport()) + "\n```", tokens: 900})
	svc := newTestService(llm)

	report, tokens, err := svc.Analyze(context.Background(), transcript, "invoice tool", []string{"Would you use this?"})
	require.NoError(t, err)
	assert.Equal(t, 900, tokens)

	want := &models.AnalysisReport{
		EmotionalTone:    map[string]float64{"positive": 0.6, "neutral": 0.2, "negative": 0.1, "skeptical": 0.3, "excited": 0.4},
		EmotionalSummary: "Cautiously optimistic.",
		Themes:           map[string]int{"Time savings": 8, "Price": 6},
		ThemeDetails: map[string]string{
			"Time savings": "Everyone mentioned chasing invoices.",
			"Price":        "Monthly fees compete with existing tools.",
		},
		Objections:           []string{"Another subscription"},
		Praise:               []string{"Automatic reminders"},
		Pricing:              models.Pricing{Sensitivity: 0.7, MinPrice: 5, MaxPrice: 15, Notes: "Prefers annual billing"},
		ParticipantAlignment: map[string]string{"Maya": "supportive"},
		Summary:              "Strong interest at a low price point.",
		Recommendations:      []string{"Offer a free tier"},
	}
	got := *report
	require.NotNil(t, got.LexiconSentiment)
	got.LexiconSentiment = nil
	if diff := cmp.Diff(want, &got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	req := llm.requests[0]
	assert.True(t, req.Options.StructuredOutput)
	assert.InDelta(t, 0.3, req.Options.Temperature, 1e-6)
	assert.Contains(t, req.User, transcript)
}

func TestAnalyzeCoercesNumeralStrings(t *testing.T) {
	raw := validReport()
	raw["emotional_tone"] = map[string]any{"Positive": "0.75"}
	raw["themes"] = map[string]any{"Time savings": "7", "Price": 6.0}
	raw["pricing"] = map[string]any{"sensitivity": "0.4", "min_price": "$1,000", "max_price": "1500.50", "notes": nil}
	raw["objections"] = nil
	raw["praise"] = "Clean design"

	report, err := parseReport(decodeMap(t, mustJSON(t, raw)))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"positive": 0.75}, report.EmotionalTone)
	assert.Equal(t, map[string]int{"Time savings": 7, "Price": 6}, report.Themes)
	assert.Equal(t, models.Pricing{Sensitivity: 0.4, MinPrice: 1000, MaxPrice: 1500.5}, report.Pricing)
	assert.Empty(t, report.Objections)
	assert.NotNil(t, report.Objections)
	assert.Equal(t, []string{"Clean design"}, report.Praise)
}

func TestAnalyzeSchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r map[string]any)
		field  string
	}{
		{"missing key", func(r map[string]any) { delete(r, "summary") }, "summary"},
		{"max below min", func(r map[string]any) {
			r["pricing"] = map[string]any{"sensitivity": 0.5, "min_price": 20, "max_price": 10}
		}, "pricing.max_price"},
		{"price not numeric", func(r map[string]any) {
			r["pricing"] = map[string]any{"sensitivity": 0.5, "min_price": "cheap", "max_price": 10}
		}, "pricing.min_price"},
		{"negative price", func(r map[string]any) {
			r["pricing"] = map[string]any{"sensitivity": 0.5, "min_price": -1, "max_price": 10}
		}, "pricing.min_price"},
		{"sensitivity out of range", func(r map[string]any) {
			r["pricing"] = map[string]any{"sensitivity": 1.5, "min_price": 1, "max_price": 10}
		}, "pricing.sensitivity"},
		{"theme without details", func(r map[string]any) {
			r["theme_details"] = map[string]any{"Time savings": "x"}
		}, "theme_details.Price"},
		{"details without theme", func(r map[string]any) {
			r["themes"] = map[string]any{"Time savings": 8}
		}, "themes.Price"},
		{"fractional frequency", func(r map[string]any) {
			r["themes"] = map[string]any{"Time savings": 8.5, "Price": 6}
		}, "themes.Time savings"},
		{"frequency out of range", func(r map[string]any) {
			r["themes"] = map[string]any{"Time savings": 11, "Price": 6}
		}, "themes.Time savings"},
		{"unknown emotion", func(r map[string]any) {
			r["emotional_tone"] = map[string]any{"angry": 0.2}
		}, "emotional_tone.angry"},
		{"emotion score out of range", func(r map[string]any) {
			r["emotional_tone"] = map[string]any{"positive": 2}
		}, "emotional_tone.positive"},
		{"empty emotions", func(r map[string]any) { r["emotional_tone"] = map[string]any{} }, "emotional_tone"},
		{"emotion label repeated in another case", func(r map[string]any) {
			r["emotional_tone"] = map[string]any{"Positive": 0.9, "positive": 0.1}
		}, "emotional_tone.positive"},
		{"list of objects", func(r map[string]any) { r["objections"] = []any{map[string]any{"a": 1}} }, "objections[0]"},
		{"alignment not an object", func(r map[string]any) { r["participant_alignment"] = []any{"Maya"} }, "participant_alignment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validReport()
			tt.mutate(raw)
			svc := newTestService(newFakeLLM(reply{content: mustJSON(t, raw), tokens: 5}))

			report, tokens, err := svc.Analyze(context.Background(), "Maya: hi", "concept", []string{"q"})
			require.Error(t, err)
			assert.Nil(t, report)
			assert.Equal(t, 5, tokens)
			e, ok := errs.As(err)
			require.True(t, ok)
			assert.Equal(t, errs.KindSchemaViolation, e.Kind)
			assert.Equal(t, tt.field, e.Field)
			assert.Equal(t, models.StageAnalysis, e.Stage)
		})
	}
}

func TestAnalyzeMalformed(t *testing.T) {
	svc := newTestService(newFakeLLM(reply{content: "The group liked it overall."}))

	_, _, err := svc.Analyze(context.Background(), "Maya: hi", "concept", []string{"q"})
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindMalformedResponse, e.Kind)
	assert.Equal(t, "The group liked it overall.", e.Raw)
}

func TestAnalyzeInvalidInput(t *testing.T) {
	llm := newFakeLLM()
	svc := newTestService(llm)

	_, _, err := svc.Analyze(context.Background(), "", "concept", []string{"q"})
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
	_, _, err = svc.Analyze(context.Background(), "Maya: hi", "", []string{"q"})
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
	assert.Zero(t, llm.calls())
}

func decodeMap(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	_, err := extract.Decode(s, &m)
	require.NoError(t, err)
	return m
}
