// Package research implements the three backend-calling stages (persona
// generation, focus-group simulation, transcript analysis) and the pipeline
// that chains them.
package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/BerylCAtieno/market-research-agent/internal/config"
	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/gateway"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

// Service runs individual stages against one gateway.Invoker. A Service is
// cheap to build; hosts create one per credential.
type Service struct {
	llm gateway.Invoker
	cfg config.Research
	log *zap.Logger
}

func NewService(llm gateway.Invoker, cfg config.Research, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{llm: llm, cfg: cfg, log: log}
}

// Options returns the backend options for a stage. They depend on the stage
// alone, never on the request content.
func (s *Service) Options(stage string) gateway.Options {
	switch stage {
	case models.StagePersonas:
		return stageOptions(s.cfg.Personas, true)
	case models.StageFocusGroup:
		return stageOptions(s.cfg.FocusGroup, false)
	case models.StageAnalysis:
		return stageOptions(s.cfg.Analysis, true)
	}
	return gateway.Options{}
}

func stageOptions(st config.Stage, structured bool) gateway.Options {
	return gateway.Options{
		Model:            st.Model,
		Temperature:      st.Temperature,
		StructuredOutput: structured,
		MaxOutputTokens:  st.MaxOutputTokens,
	}
}

func (s *Service) invoke(ctx context.Context, stage, system, user string) (*gateway.Response, error) {
	opts := s.Options(stage)
	s.log.Debug("invoking backend",
		zap.String("stage", stage),
		zap.String("model", opts.Model),
		zap.Float32("temperature", opts.Temperature),
		zap.Bool("structured", opts.StructuredOutput),
		zap.Int32("max_output_tokens", opts.MaxOutputTokens),
	)
	resp, err := s.llm.Invoke(ctx, gateway.Request{System: system, User: user, Options: opts})
	if err != nil {
		return nil, errs.WithStage(err, stage)
	}
	return resp, nil
}
