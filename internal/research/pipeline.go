package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

type State string

const (
	StateIdle                 State = "idle"
	StateGeneratingPersonas   State = "generating_personas"
	StateSimulatingDiscussion State = "simulating_discussion"
	StateAnalyzing            State = "analyzing"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// Run is the outcome of one pipeline invocation. On failure it still holds
// every output produced before the failing stage.
type Run struct {
	Request     models.ResearchRequest `json:"request"`
	State       State                  `json:"state"`
	FailedStage string                 `json:"failed_stage,omitempty"`
	Personas    []models.Persona       `json:"personas,omitempty"`
	Transcript  string                 `json:"transcript,omitempty"`
	Report      *models.AnalysisReport `json:"analysis,omitempty"`
	Tokens      models.TokenCount      `json:"token_count"`
}

// Pipeline chains the three stages. It holds no per-run state and may be
// shared by concurrent runs if Observe is safe for concurrent use.
type Pipeline struct {
	svc          *Service
	personaCount int
	log          *zap.Logger

	// Observe, when set, is called on every state transition.
	Observe func(from, to State)
}

func NewPipeline(svc *Service, personaCount int) *Pipeline {
	return &Pipeline{svc: svc, personaCount: personaCount, log: svc.log}
}

// Run executes persona generation, discussion and analysis in order and
// stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, req models.ResearchRequest) (*Run, error) {
	req = req.Normalize()
	run := &Run{Request: req, State: StateIdle}
	if err := req.Validate(); err != nil {
		p.transition(run, StateFailed)
		return run, err
	}

	p.log.Info("starting research run",
		zap.Int("personas", p.personaCount),
		zap.Int("questions", len(req.Questions)),
	)

	steps := []struct {
		state State
		stage string
		exec  func(ctx context.Context) (int, error)
	}{
		{StateGeneratingPersonas, models.StagePersonas, func(ctx context.Context) (int, error) {
			personas, tokens, err := p.svc.GeneratePersonas(ctx, req.Segment, p.personaCount)
			run.Personas = personas
			return tokens, err
		}},
		{StateSimulatingDiscussion, models.StageFocusGroup, func(ctx context.Context) (int, error) {
			transcript, tokens, err := p.svc.SimulateDiscussion(ctx, run.Personas, req.Concept, req.Questions)
			run.Transcript = transcript
			return tokens, err
		}},
		{StateAnalyzing, models.StageAnalysis, func(ctx context.Context) (int, error) {
			report, tokens, err := p.svc.Analyze(ctx, run.Transcript, req.Concept, req.Questions)
			run.Report = report
			return tokens, err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return p.fail(run, step.stage, errs.Wrap(errs.KindCancelled, err, "run cancelled"))
		}
		p.transition(run, step.state)
		tokens, err := step.exec(ctx)
		run.Tokens.Add(step.stage, tokens)
		if err != nil {
			return p.fail(run, step.stage, err)
		}
	}

	p.transition(run, StateDone)
	p.log.Info("research run complete", zap.Int("total_tokens", run.Tokens.Total))
	return run, nil
}

func (p *Pipeline) fail(run *Run, stage string, err error) (*Run, error) {
	serr := errs.WithStage(err, stage)
	run.FailedStage = stage
	p.transition(run, StateFailed)
	p.log.Error("research run failed",
		zap.String("stage", stage),
		zap.String("kind", string(serr.Kind)),
		zap.Int("total_tokens", run.Tokens.Total),
		zap.Error(serr),
	)
	return run, serr
}

func (p *Pipeline) transition(run *Run, to State) {
	from := run.State
	run.State = to
	if p.Observe != nil {
		p.Observe(from, to)
	}
}
