package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
)

const DefaultModel = "gemini-2.5-flash"

type GeminiClient struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiClient creates a client for cred. An empty credential yields a
// client whose calls fail with an authentication error without touching the
// network.
func NewGeminiClient(ctx context.Context, cred Credential, defaultModel string) (*GeminiClient, error) {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	g := &GeminiClient{defaultModel: defaultModel}
	if cred.Empty() {
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(cred.APIKey)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// GeminiDialer returns a Dialer producing Gemini clients.
func GeminiDialer(defaultModel string) Dialer {
	return func(ctx context.Context, cred Credential) (Client, error) {
		return NewGeminiClient(ctx, cred, defaultModel)
	}
}

func (g *GeminiClient) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	if g.client == nil {
		return nil, errs.New(errs.KindAuthentication, "no API key configured")
	}
	if t := req.Options.Temperature; t < 0 || t > 1 {
		return nil, errs.InvalidInput("temperature %.2f outside [0, 1]", t)
	}

	name := req.Options.Model
	if name == "" {
		name = g.defaultModel
	}
	model := g.client.GenerativeModel(name)
	configure(model, req)

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return nil, classify(ctx, err)
	}
	return readResponse(resp)
}

func (g *GeminiClient) ValidateCredential(ctx context.Context) (bool, string) {
	if g.client == nil {
		return false, "No API key provided. Add a Gemini API key and try again."
	}

	it := g.client.ListModels(ctx)
	_, err := it.Next()
	if err == nil || errors.Is(err, iterator.Done) {
		return true, "API key is valid."
	}

	switch classify(ctx, err).Kind {
	case errs.KindAuthentication:
		return false, "Invalid API key: the backend rejected it. Check the key and try again."
	case errs.KindCancelled:
		return false, "Validation was cancelled before the backend answered."
	default:
		return false, fmt.Sprintf("Could not reach the Gemini API (the key was not checked): %v", err)
	}
}

// configure applies request options to a model handle. It depends only on
// the options, never on the prompt text.
func configure(model *genai.GenerativeModel, req Request) {
	model.SetTemperature(req.Options.Temperature)
	if req.Options.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.Options.MaxOutputTokens)
	}
	if req.Options.StructuredOutput {
		model.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
}

func readResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	out := &Response{}
	if resp == nil {
		return nil, errs.New(errs.KindUpstream, "empty response from backend")
	}
	if resp.UsageMetadata != nil {
		out.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return nil, errs.New(errs.KindUpstream, "prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, errs.New(errs.KindUpstream, "no content generated")
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		out.Content = b.String()
	}
	out.Truncated = cand.FinishReason == genai.FinishReasonMaxTokens

	if out.Content == "" && !out.Truncated {
		return nil, errs.New(errs.KindUpstream, "no content generated (finish reason %s)", cand.FinishReason)
	}
	return out, nil
}

// classify maps a backend error onto the failure taxonomy.
func classify(ctx context.Context, err error) *errs.Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.Wrap(errs.KindCancelled, ctxErr, "call aborted")
	}
	// A deadline hit inside the transport is a timeout, not a host abort.
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindCancelled, err, "call aborted")
	}
	if isAuthError(err) {
		return errs.Wrap(errs.KindAuthentication, err, "credential rejected")
	}
	return errs.Wrap(errs.KindUpstream, err, "backend call failed")
}

func isAuthError(err error) bool {
	if apiErr, ok := apierror.FromError(err); ok {
		switch apiErr.HTTPCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
		if apiErr.Reason() == "API_KEY_INVALID" {
			return true
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		case http.StatusBadRequest:
			return strings.Contains(strings.ToLower(gErr.Message), "api key not valid")
		}
	}
	return false
}
