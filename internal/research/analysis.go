package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/extract"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

// EmotionLabels is the fixed label set allowed in emotional_tone.
var EmotionLabels = []string{"positive", "neutral", "negative", "skeptical", "excited"}

const (
	minThemeFrequency = 1
	maxThemeFrequency = 10
)

var requiredReportKeys = []string{
	"emotional_tone",
	"emotional_summary",
	"themes",
	"theme_details",
	"objections",
	"praise",
	"pricing",
	"participant_alignment",
	"summary",
	"recommendations",
}

// Analyze turns a transcript into a validated AnalysisReport. The report
// carries a lexicon sentiment score computed locally over the transcript.
func (s *Service) Analyze(ctx context.Context, transcript, concept string, questions []string) (*models.AnalysisReport, int, error) {
	const stage = models.StageAnalysis
	if strings.TrimSpace(transcript) == "" {
		return nil, 0, errs.WithStage(errs.InvalidInput("missing transcript"), stage)
	}
	if strings.TrimSpace(concept) == "" {
		return nil, 0, errs.WithStage(errs.InvalidInput("missing product concept"), stage)
	}
	if len(questions) > models.MaxQuestions {
		return nil, 0, errs.WithStage(errs.InvalidInput("at most %d research questions are allowed", models.MaxQuestions), stage)
	}

	s.log.Info("analyzing transcript", zap.Int("chars", len(transcript)))
	resp, err := s.invoke(ctx, stage, analysisSystemPrompt, analysisUserPrompt(transcript, concept, questions))
	if err != nil {
		return nil, 0, err
	}

	var raw map[string]any
	strategy, err := extract.Decode(resp.Content, &raw)
	if err != nil {
		return nil, resp.Tokens, errs.WithStage(err, stage)
	}
	report, err := parseReport(raw)
	if err != nil {
		return nil, resp.Tokens, errs.WithStage(err, stage)
	}
	sentiment := ScoreSentiment(transcript)
	report.LexiconSentiment = &sentiment

	s.log.Info("analyzed transcript",
		zap.Int("themes", len(report.Themes)),
		zap.Int("tokens", resp.Tokens),
		zap.String("extraction", string(strategy)),
		zap.Float64("lexicon_compound", sentiment.Compound),
	)
	return report, resp.Tokens, nil
}

// parseReport validates a decoded analysis object. Numeral strings are
// coerced to numbers; anything else non-numeric in a numeric field fails
// with a schema violation naming that field.
func parseReport(raw map[string]any) (*models.AnalysisReport, error) {
	if raw == nil {
		return nil, errs.Schema("analysis", "expected an object, got null")
	}
	var missing []string
	for _, k := range requiredReportKeys {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, errs.Schema(missing[0], "missing required keys: %s", strings.Join(missing, ", "))
	}

	var (
		r   models.AnalysisReport
		err error
	)
	if r.EmotionalTone, err = parseTone(raw["emotional_tone"]); err != nil {
		return nil, err
	}
	r.EmotionalSummary = text(raw["emotional_summary"])
	if r.Themes, err = parseThemes(raw["themes"]); err != nil {
		return nil, err
	}
	if r.ThemeDetails, err = stringMap("theme_details", raw["theme_details"]); err != nil {
		return nil, err
	}
	if err := sameKeys(r.Themes, r.ThemeDetails); err != nil {
		return nil, err
	}
	if r.Objections, err = stringList("objections", raw["objections"]); err != nil {
		return nil, err
	}
	if r.Praise, err = stringList("praise", raw["praise"]); err != nil {
		return nil, err
	}
	if r.Pricing, err = parsePricing(raw["pricing"]); err != nil {
		return nil, err
	}
	if r.ParticipantAlignment, err = stringMap("participant_alignment", raw["participant_alignment"]); err != nil {
		return nil, err
	}
	r.Summary = text(raw["summary"])
	if r.Recommendations, err = stringList("recommendations", raw["recommendations"]); err != nil {
		return nil, err
	}
	return &r, nil
}

func isEmotionLabel(label string) bool {
	for _, l := range EmotionLabels {
		if l == label {
			return true
		}
	}
	return false
}

func parseTone(v any) (map[string]float64, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.Schema("emotional_tone", "expected an object, got %T", v)
	}
	if len(m) == 0 {
		return nil, errs.Schema("emotional_tone", "no emotion scores")
	}
	out := make(map[string]float64, len(m))
	for _, k := range sortedKeys(m) {
		label := strings.ToLower(strings.TrimSpace(k))
		field := "emotional_tone." + k
		if !isEmotionLabel(label) {
			return nil, errs.Schema(field, "unknown emotion label %q", k)
		}
		score, ok := toFloat(m[k])
		if !ok {
			return nil, errs.Schema(field, "score %v is not a number", m[k])
		}
		if score < 0 || score > 1 {
			return nil, errs.Schema(field, "score %v is outside [0, 1]", score)
		}
		if _, dup := out[label]; dup {
			return nil, errs.Schema(field, "emotion label %q appears more than once", label)
		}
		out[label] = score
	}
	return out, nil
}

func parseThemes(v any) (map[string]int, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.Schema("themes", "expected an object, got %T", v)
	}
	out := make(map[string]int, len(m))
	for _, k := range sortedKeys(m) {
		field := "themes." + k
		n, ok := toInt(m[k])
		if !ok {
			return nil, errs.Schema(field, "frequency %v is not an integer", m[k])
		}
		if n < minThemeFrequency || n > maxThemeFrequency {
			return nil, errs.Schema(field, "frequency %d is outside [%d, %d]", n, minThemeFrequency, maxThemeFrequency)
		}
		out[k] = n
	}
	return out, nil
}

func sameKeys(themes map[string]int, details map[string]string) error {
	for _, k := range sortedKeys(themes) {
		if _, ok := details[k]; !ok {
			return errs.Schema("theme_details."+k, "theme %q has no details", k)
		}
	}
	for _, k := range sortedKeys(details) {
		if _, ok := themes[k]; !ok {
			return errs.Schema("themes."+k, "details given for unknown theme %q", k)
		}
	}
	return nil
}

func parsePricing(v any) (models.Pricing, error) {
	var p models.Pricing
	m, ok := v.(map[string]any)
	if !ok {
		return p, errs.Schema("pricing", "expected an object, got %T", v)
	}
	num := func(key string) (float64, error) {
		field := "pricing." + key
		raw, ok := m[key]
		if !ok {
			return 0, errs.Schema(field, "missing")
		}
		f, ok := toFloat(raw)
		if !ok {
			return 0, errs.Schema(field, "value %v is not a number", raw)
		}
		return f, nil
	}

	var err error
	if p.Sensitivity, err = num("sensitivity"); err != nil {
		return p, err
	}
	if p.Sensitivity < 0 || p.Sensitivity > 1 {
		return p, errs.Schema("pricing.sensitivity", "value %v is outside [0, 1]", p.Sensitivity)
	}
	if p.MinPrice, err = num("min_price"); err != nil {
		return p, err
	}
	if p.MaxPrice, err = num("max_price"); err != nil {
		return p, err
	}
	if p.MinPrice < 0 {
		return p, errs.Schema("pricing.min_price", "negative price %v", p.MinPrice)
	}
	if p.MaxPrice < p.MinPrice {
		return p, errs.Schema("pricing.max_price", "max_price %v is below min_price %v", p.MaxPrice, p.MinPrice)
	}
	p.Notes = text(m["notes"])
	return p, nil
}

// stringList accepts a list of strings. Null is an empty list and a lone
// string is a one-item list.
func stringList(field string, v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}, nil
		}
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, errs.Schema(fmt.Sprintf("%s[%d]", field, i), "expected text, got %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, errs.Schema(field, "expected a list, got %T", v)
}

// stringMap accepts an object whose values are flattened to text. Null is an
// empty map.
func stringMap(field string, v any) (map[string]string, error) {
	switch t := v.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = text(val)
		}
		return out, nil
	}
	return nil, errs.Schema(field, "expected an object, got %T", v)
}
