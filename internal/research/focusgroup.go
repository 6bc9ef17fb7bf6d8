package research

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/extract"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

// SimulateDiscussion produces an opaque focus-group transcript. A reply cut
// off at the output cap is returned as-is.
func (s *Service) SimulateDiscussion(ctx context.Context, personas []models.Persona, concept string, questions []string) (string, int, error) {
	const stage = models.StageFocusGroup
	concept = strings.TrimSpace(concept)
	switch {
	case len(personas) == 0:
		return "", 0, errs.WithStage(errs.InvalidInput("no personas to seat in the focus group"), stage)
	case concept == "":
		return "", 0, errs.WithStage(errs.InvalidInput("missing product concept"), stage)
	case len(questions) == 0:
		return "", 0, errs.WithStage(errs.InvalidInput("missing research questions"), stage)
	case len(questions) > models.MaxQuestions:
		return "", 0, errs.WithStage(errs.InvalidInput("at most %d research questions are allowed", models.MaxQuestions), stage)
	}

	s.log.Info("simulating focus group", zap.Int("personas", len(personas)), zap.Int("questions", len(questions)))
	user := focusGroupUserPrompt(personas, concept, questions, s.cfg.BackgroundLimit)
	resp, err := s.invoke(ctx, stage, focusGroupSystemPrompt, user)
	if err != nil {
		return "", 0, err
	}

	res, err := extract.Extract(resp.Content, extract.PlainText)
	if err != nil {
		return "", resp.Tokens, errs.WithStage(err, stage)
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", resp.Tokens, errs.WithStage(errs.New(errs.KindUpstream, "backend returned an empty transcript"), stage)
	}
	if resp.Truncated {
		s.log.Warn("transcript truncated at output token cap",
			zap.Int32("max_output_tokens", s.Options(stage).MaxOutputTokens),
			zap.Int("chars", len(res.Text)),
		)
	}

	s.log.Info("simulated focus group", zap.Int("tokens", resp.Tokens), zap.Int("chars", len(res.Text)))
	return res.Text, resp.Tokens, nil
}
