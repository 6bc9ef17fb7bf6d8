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

const maxPersonaAge = 120

// GeneratePersonas asks the backend for exactly count personas matching
// segment. Tokens consumed are returned even when validation fails.
func (s *Service) GeneratePersonas(ctx context.Context, segment string, count int) ([]models.Persona, int, error) {
	const stage = models.StagePersonas
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return nil, 0, errs.WithStage(errs.InvalidInput("missing target segment"), stage)
	}
	if count < 1 {
		return nil, 0, errs.WithStage(errs.InvalidInput("persona count must be positive, got %d", count), stage)
	}

	s.log.Info("generating personas", zap.Int("count", count), zap.String("segment", segment))
	resp, err := s.invoke(ctx, stage, personaSystemPrompt, personaUserPrompt(segment, count))
	if err != nil {
		return nil, 0, err
	}

	var raw any
	strategy, err := extract.Decode(resp.Content, &raw)
	if err != nil {
		return nil, resp.Tokens, errs.WithStage(err, stage)
	}
	items, err := personaList(raw)
	if err != nil {
		return nil, resp.Tokens, errs.WithStage(err, stage)
	}
	if len(items) != count {
		return nil, resp.Tokens, errs.WithStage(errs.CountMismatch(count, len(items)), stage)
	}
	personas, err := normalizePersonas(items)
	if err != nil {
		return nil, resp.Tokens, errs.WithStage(err, stage)
	}

	s.log.Info("generated personas",
		zap.Int("count", len(personas)),
		zap.Int("tokens", resp.Tokens),
		zap.String("extraction", string(strategy)),
	)
	return personas, resp.Tokens, nil
}

func normalizePersonas(items []any) ([]models.Persona, error) {
	out := make([]models.Persona, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errs.Schema(fmt.Sprintf("personas[%d]", i), "persona is not an object")
		}
		p, err := personaFromMap(i, m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// personaList accepts a bare list, a list of objects wrapped under a field,
// or a single persona object.
func personaList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if list, ok := v["personas"].([]any); ok {
			return list, nil
		}
		if isPersonaObject(v) {
			return []any{v}, nil
		}
		var lists [][]any
		for _, k := range sortedKeys(v) {
			if list, ok := v[k].([]any); ok && objectList(list) {
				lists = append(lists, list)
			}
		}
		if len(lists) == 1 {
			return lists[0], nil
		}
		return nil, errs.Schema("personas", "expected a list of personas, found an object with %d lists of objects", len(lists))
	}
	return nil, errs.Schema("personas", "expected a list of personas, got %T", raw)
}

func isPersonaObject(m map[string]any) bool {
	for k := range m {
		switch normalizeKey(k) {
		case "name", "full_name", "age":
			return true
		}
	}
	return false
}

func objectList(list []any) bool {
	if len(list) == 0 {
		return false
	}
	for _, item := range list {
		if _, ok := item.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// personaFields maps each Persona field to the key spellings seen in
// backend replies, most specific first. Prefixes catch verbose variants
// such as "spending_habits_and_income_level".
var personaFields = []struct {
	name     string
	keys     []string
	prefixes []string
}{
	{name: "occupation", keys: []string{"occupation", "job", "job_title", "profession"}},
	{name: "background", keys: []string{"background"}, prefixes: []string{"background"}},
	{name: "interests", keys: []string{"interests", "hobbies"}, prefixes: []string{"interests", "hobbies"}},
	{name: "media_habits", keys: []string{"media_habits"}, prefixes: []string{"media"}},
	{name: "values", keys: []string{"values", "core_values"}, prefixes: []string{"values", "core_values"}},
	{name: "spending_habits", keys: []string{"spending_habits"}, prefixes: []string{"spending"}},
	{name: "pain_points", keys: []string{"pain_points"}, prefixes: []string{"pain"}},
	{name: "communication_style", keys: []string{"communication_style"}, prefixes: []string{"communication"}},
}

func personaFromMap(i int, m map[string]any) (models.Persona, error) {
	norm := make(map[string]any, len(m))
	for k, v := range m {
		norm[normalizeKey(k)] = v
	}

	p := models.Persona{Name: text(firstOf(norm, "name", "full_name"))}
	if p.Name == "" {
		return p, errs.Schema(fmt.Sprintf("personas[%d].name", i), "persona has no name")
	}

	ageRaw, ok := norm["age"]
	if !ok {
		return p, errs.Schema(fmt.Sprintf("personas[%d].age", i), "persona %q has no age", p.Name)
	}
	age, ok := leadingInt(ageRaw)
	if !ok || age < 1 || age > maxPersonaAge {
		return p, errs.Schema(fmt.Sprintf("personas[%d].age", i), "age %v is not a plausible integer", ageRaw)
	}
	p.Age = age

	values := make(map[string]string, len(personaFields))
	for _, f := range personaFields {
		values[f.name] = text(lookup(norm, f.keys, f.prefixes))
	}
	p.Occupation = values["occupation"]
	p.Background = values["background"]
	p.Interests = values["interests"]
	p.MediaHabits = values["media_habits"]
	p.Values = values["values"]
	p.SpendingHabits = values["spending_habits"]
	p.PainPoints = values["pain_points"]
	p.CommunicationStyle = values["communication_style"]
	return p, nil
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func lookup(m map[string]any, keys, prefixes []string) any {
	if v := firstOf(m, keys...); v != nil {
		return v
	}
	for _, k := range sortedKeys(m) {
		for _, prefix := range prefixes {
			if strings.HasPrefix(k, prefix) {
				return m[k]
			}
		}
	}
	return nil
}
