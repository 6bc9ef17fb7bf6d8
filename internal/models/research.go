package models

import (
	"strings"
	"time"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
)

// MaxQuestions is the largest number of research questions a request may carry.
const MaxQuestions = 5

type Persona struct {
	Name               string `json:"name"`
	Age                int    `json:"age"`
	Occupation         string `json:"occupation"`
	Background         string `json:"background"`
	Interests          string `json:"interests"`
	MediaHabits        string `json:"media_habits"`
	Values             string `json:"values"`
	SpendingHabits     string `json:"spending_habits"`
	PainPoints         string `json:"pain_points"`
	CommunicationStyle string `json:"communication_style"`
}

type ResearchRequest struct {
	Concept   string   `json:"product_concept"`
	Segment   string   `json:"target_segment"`
	Questions []string `json:"research_questions"`
}

// Normalize trims every field and drops blank questions.
func (r ResearchRequest) Normalize() ResearchRequest {
	out := ResearchRequest{
		Concept: strings.TrimSpace(r.Concept),
		Segment: strings.TrimSpace(r.Segment),
	}
	for _, q := range r.Questions {
		if q = strings.TrimSpace(q); q != "" {
			out.Questions = append(out.Questions, q)
		}
	}
	return out
}

func (r ResearchRequest) Validate() error {
	var missing []string
	if r.Concept == "" {
		missing = append(missing, "product_concept")
	}
	if r.Segment == "" {
		missing = append(missing, "target_segment")
	}
	if len(r.Questions) == 0 {
		missing = append(missing, "research_questions")
	}
	if len(missing) > 0 {
		return errs.InvalidInput("missing required fields: %s", strings.Join(missing, ", "))
	}
	if len(r.Questions) > MaxQuestions {
		return errs.InvalidInput("at most %d research questions are allowed, got %d", MaxQuestions, len(r.Questions))
	}
	return nil
}

type Pricing struct {
	Sensitivity float64 `json:"sensitivity"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	Notes       string  `json:"notes"`
}

// LexiconSentiment is a locally computed polarity score over the transcript.
// It is advisory and never replaces the model-derived tone.
type LexiconSentiment struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
	Compound float64 `json:"compound"`
}

type AnalysisReport struct {
	EmotionalTone        map[string]float64 `json:"emotional_tone"`
	EmotionalSummary     string             `json:"emotional_summary"`
	Themes               map[string]int     `json:"themes"`
	ThemeDetails         map[string]string  `json:"theme_details"`
	Objections           []string           `json:"objections"`
	Praise               []string           `json:"praise"`
	Pricing              Pricing            `json:"pricing"`
	ParticipantAlignment map[string]string  `json:"participant_alignment"`
	Summary              string             `json:"summary"`
	Recommendations      []string           `json:"recommendations"`
	LexiconSentiment     *LexiconSentiment  `json:"lexicon_sentiment,omitempty"`
}

type TokenCount struct {
	Personas   int `json:"personas"`
	FocusGroup int `json:"focus_group"`
	Analysis   int `json:"analysis"`
	Total      int `json:"total"`
}

// Add records n tokens for stage and keeps Total in sync.
func (t *TokenCount) Add(stage string, n int) {
	switch stage {
	case StagePersonas:
		t.Personas += n
	case StageFocusGroup:
		t.FocusGroup += n
	case StageAnalysis:
		t.Analysis += n
	}
	t.Total = t.Personas + t.FocusGroup + t.Analysis
}

// Stage names used in logs, errors and token accounting.
const (
	StagePersonas   = "personas"
	StageFocusGroup = "focus_group"
	StageAnalysis   = "analysis"
)

// Project is a saved research run.
type Project struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CreatedAt  time.Time       `json:"created_at"`
	Concept    string          `json:"product_concept"`
	Segment    string          `json:"target_segment"`
	Questions  []string        `json:"research_questions"`
	Personas   []Persona       `json:"personas"`
	Transcript string          `json:"transcript"`
	Analysis   *AnalysisReport `json:"analysis,omitempty"`
}

// ProjectSummary is the listing view of a Project.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Concept   string    `json:"product_concept"`
	Segment   string    `json:"target_segment"`
}
