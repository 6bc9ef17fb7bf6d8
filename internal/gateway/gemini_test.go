package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
)

func TestMissingCredentialFailsBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	client, err := NewGeminiClient(ctx, Credential{APIKey: "   "}, "")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Invoke(ctx, Request{System: "s", User: "u", Options: Options{Temperature: 0.5}})
	require.Error(t, err)
	assert.Equal(t, errs.KindAuthentication, errs.KindOf(err))

	ok, msg := client.ValidateCredential(ctx)
	assert.False(t, ok)
	assert.Contains(t, msg, "No API key")
}

func TestConfigure(t *testing.T) {
	model := &genai.GenerativeModel{}
	configure(model, Request{
		System: "You are a persona designer.",
		User:   "ignored here",
		Options: Options{
			Temperature:      0.8,
			StructuredOutput: true,
			MaxOutputTokens:  4096,
		},
	})

	require.NotNil(t, model.Temperature)
	assert.InDelta(t, 0.8, *model.Temperature, 1e-6)
	require.NotNil(t, model.MaxOutputTokens)
	assert.Equal(t, int32(4096), *model.MaxOutputTokens)
	assert.Equal(t, "application/json", model.ResponseMIMEType)
	require.NotNil(t, model.SystemInstruction)
	assert.Equal(t, []genai.Part{genai.Text("You are a persona designer.")}, model.SystemInstruction.Parts)
}

func TestConfigurePlainTextLeavesDefaults(t *testing.T) {
	model := &genai.GenerativeModel{}
	configure(model, Request{User: "u", Options: Options{Temperature: 0.3}})

	assert.Nil(t, model.MaxOutputTokens)
	assert.Empty(t, model.ResponseMIMEType)
	assert.Nil(t, model.SystemInstruction)
}

func TestReadResponse(t *testing.T) {
	t.Run("joins text parts and counts tokens", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content:      &genai.Content{Parts: []genai.Part{genai.Text("Moderator: "), genai.Text("Welcome.")}},
				FinishReason: genai.FinishReasonStop,
			}},
			UsageMetadata: &genai.UsageMetadata{TotalTokenCount: 321},
		}
		out, err := readResponse(resp)
		require.NoError(t, err)
		assert.Equal(t, "Moderator: Welcome.", out.Content)
		assert.Equal(t, 321, out.Tokens)
		assert.False(t, out.Truncated)
	})

	t.Run("max tokens marks truncation", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content:      &genai.Content{Parts: []genai.Part{genai.Text("Maya: I think the pri")}},
				FinishReason: genai.FinishReasonMaxTokens,
			}},
		}
		out, err := readResponse(resp)
		require.NoError(t, err)
		assert.True(t, out.Truncated)
		assert.Equal(t, 0, out.Tokens)
	})

	t.Run("no candidates is upstream", func(t *testing.T) {
		_, err := readResponse(&genai.GenerateContentResponse{})
		assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
	})

	t.Run("blocked prompt is upstream", func(t *testing.T) {
		_, err := readResponse(&genai.GenerateContentResponse{
			PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
		})
		require.Error(t, err)
		assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
		assert.Contains(t, err.Error(), "blocked")
	})
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"unauthorized", &googleapi.Error{Code: 401, Message: "unauthorized"}, errs.KindAuthentication},
		{"forbidden", &googleapi.Error{Code: 403, Message: "permission denied"}, errs.KindAuthentication},
		{"invalid key as bad request", &googleapi.Error{Code: 400, Message: "API key not valid. Please pass a valid API key."}, errs.KindAuthentication},
		{"other bad request", &googleapi.Error{Code: 400, Message: "invalid argument"}, errs.KindUpstream},
		{"rate limited", &googleapi.Error{Code: 429, Message: "quota"}, errs.KindUpstream},
		{"wrapped auth", fmt.Errorf("generate: %w", &googleapi.Error{Code: 401}), errs.KindAuthentication},
		{"transport", errors.New("dial tcp: connection refused"), errs.KindUpstream},
		{"transport timeout", fmt.Errorf("post: %w", context.DeadlineExceeded), errs.KindUpstream},
		{"cancelled below", fmt.Errorf("post: %w", context.Canceled), errs.KindCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(ctx, tt.err).Kind)
		})
	}
}

func TestClassifyCancelledContextWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := classify(ctx, &googleapi.Error{Code: 500})
	assert.Equal(t, errs.KindCancelled, got.Kind)
	assert.ErrorIs(t, got, context.Canceled)
}
