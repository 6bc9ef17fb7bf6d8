package research

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

var testPersonas = []models.Persona{
	{Name: "Maya Chen", Age: 31, Occupation: "Brand designer", Background: strings.Repeat("Long career in agencies. ", 40), CommunicationStyle: "Blunt"},
	{Name: "Leo Park", Age: 27, Occupation: "Illustrator"},
}

func TestSimulateDiscussion(t *testing.T) {
	want := transcriptFor(testPersonas)
	llm := newFakeLLM(reply{content: want, tokens: 1500})
	svc := newTestService(llm)

	transcript, tokens, err := svc.SimulateDiscussion(context.Background(), testPersonas,
		"a subscription tool for invoice automation", []string{"Would you use this?", "What would you pay?"})
	require.NoError(t, err)
	assert.Equal(t, want, transcript)
	assert.Equal(t, 1500, tokens)

	require.Equal(t, 1, llm.calls())
	req := llm.requests[0]
	assert.False(t, req.Options.StructuredOutput)
	assert.Contains(t, req.User, "1. Would you use this?")
	assert.Contains(t, req.User, "2. What would you pay?")
	for _, p := range testPersonas {
		assert.Contains(t, req.User, p.Name)
	}
	assert.Contains(t, req.User, "Leo Park, 27, Illustrator")
	assert.NotContains(t, req.User, testPersonas[0].Background, "background is truncated")
}

func TestSimulateDiscussionKeepsTruncatedTranscript(t *testing.T) {
	svc := newTestService(newFakeLLM(reply{content: "Moderator: Welcome.\nMaya Chen: I think", tokens: 8192, truncated: true}))

	transcript, tokens, err := svc.SimulateDiscussion(context.Background(), testPersonas, "concept", []string{"q"})
	require.NoError(t, err)
	assert.Equal(t, 8192, tokens)
	assert.True(t, strings.HasSuffix(transcript, "I think"))
}

func TestSimulateDiscussionEmptyTranscript(t *testing.T) {
	svc := newTestService(newFakeLLM(reply{content: "  \n ", tokens: 3}))

	_, tokens, err := svc.SimulateDiscussion(context.Background(), testPersonas, "concept", []string{"q"})
	require.Error(t, err)
	assert.Equal(t, 3, tokens)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUpstream, e.Kind)
	assert.Equal(t, models.StageFocusGroup, e.Stage)
}

func TestSimulateDiscussionInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		personas  []models.Persona
		concept   string
		questions []string
	}{
		{"no personas", nil, "concept", []string{"q"}},
		{"no concept", testPersonas, " ", []string{"q"}},
		{"no questions", testPersonas, "concept", nil},
		{"too many questions", testPersonas, "concept", []string{"1", "2", "3", "4", "5", "6"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newFakeLLM()
			_, _, err := newTestService(llm).SimulateDiscussion(context.Background(), tt.personas, tt.concept, tt.questions)
			assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
			assert.Zero(t, llm.calls())
		})
	}
}

func TestBriefing(t *testing.T) {
	p := models.Persona{Name: "Ana", Age: 40, Background: "Grew up in Lisbon and moved to Berlin"}
	assert.Equal(t, "Ana, 40, N/A. Background: Grew up in...", briefing(p, 11))
	assert.Equal(t, "Ana, 40, N/A. Background: Grew up in Lisbon and moved to Berlin", briefing(p, 0))
}
