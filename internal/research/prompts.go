package research

import (
	"fmt"
	"strings"

	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

const personaSystemPrompt = `You are an expert market research consultant and persona designer with a deep understanding of consumer demographics, psychographics and behavior.

You create realistic, diverse and internally consistent personas for a target market segment. Every persona must feel like a real person whose traits, background and habits fit together.

Respond with a single JSON object of the form {"personas": [...]} and nothing else. Each persona object has exactly these keys:
  "name": full name (string)
  "age": age in years (integer, not a string)
  "occupation": job or main activity (string)
  "background": education, family situation and life context (string)
  "interests": interests and hobbies (string)
  "media_habits": media consumption habits and preferred channels (string)
  "values": core values and motivations (string)
  "spending_habits": spending habits, income level and price sensitivity (string)
  "pain_points": pain points relevant to the product category (string)
  "communication_style": how this person talks and argues (string)`

func personaUserPrompt(segment string, count int) string {
	return fmt.Sprintf(`Generate exactly %d personas that represent this target segment:

Target segment: %s

The personas must:
- be demographically and psychographically appropriate for the segment
- differ from each other in background, needs and preferences while still fitting the segment
- include realistic details that would affect their purchasing decisions
- represent different perspectives within the segment

Return exactly %d entries in the "personas" list.`, count, segment, count)
}

const focusGroupSystemPrompt = `You are an experienced market research moderator who writes realistic focus group transcripts.

For every research question:
1. The Moderator introduces the question.
2. Each participant answers in their own voice, prefixed with their name (for example "Maya: ...").
3. Include follow-up questions and natural back-and-forth between participants.
4. Keep every participant consistent with their background, values and communication style.
5. Show real group dynamics: agreement, disagreement, people building on each other's points.

Open with a short introduction from the Moderator and close with a brief wrap-up. Write plain text, not JSON.`

func focusGroupUserPrompt(personas []models.Persona, concept string, questions []string, backgroundLimit int) string {
	var b strings.Builder
	b.WriteString("Simulate a focus group discussion about this product/service concept.\n\n")
	fmt.Fprintf(&b, "PRODUCT/SERVICE CONCEPT:\n%s\n\n", concept)
	fmt.Fprintf(&b, "RESEARCH QUESTIONS:\n%s\n\n", numbered(questions))
	b.WriteString("PARTICIPANTS:\n")
	for i, p := range personas {
		fmt.Fprintf(&b, "%d. %s\n", i+1, briefing(p, backgroundLimit))
	}
	b.WriteString("\nEvery participant must speak at least once. Cover all research questions in order and include both positive and negative feedback.")
	return b.String()
}

// briefing renders a persona as one line for the moderator prompt.
func briefing(p models.Persona, backgroundLimit int) string {
	line := fmt.Sprintf("%s, %d, %s", p.Name, p.Age, orNA(p.Occupation))
	if bg := truncateRunes(strings.TrimSpace(p.Background), backgroundLimit); bg != "" {
		line += ". Background: " + bg
	}
	if p.CommunicationStyle != "" {
		line += ". Communication style: " + truncateRunes(p.CommunicationStyle, backgroundLimit)
	}
	return line
}

const analysisSystemPrompt = `You are a market research analysis expert who extracts detailed, objective insights from focus group transcripts. Every insight must be supported by the transcript.`

func analysisUserPrompt(transcript, concept string, questions []string) string {
	return fmt.Sprintf(`Analyze this focus group transcript.

PRODUCT/SERVICE CONCEPT:
%s

RESEARCH QUESTIONS:
%s

TRANSCRIPT:
%s

Respond with a single JSON object with exactly this structure:
{
  "emotional_tone": {"positive": 0.0-1.0, "neutral": 0.0-1.0, "negative": 0.0-1.0, "skeptical": 0.0-1.0, "excited": 0.0-1.0},
  "emotional_summary": "brief summary of the overall emotional response",
  "themes": {"<theme>": <frequency 1-10 as an integer>},
  "theme_details": {"<theme>": "explanation with examples from the transcript"},
  "objections": ["main objection", "..."],
  "praise": ["main praise point", "..."],
  "pricing": {
    "sensitivity": 0.0-1.0,
    "min_price": <suggested minimum price as a number>,
    "max_price": <suggested maximum price as a number, not below min_price>,
    "notes": "notes on the pricing discussion"
  },
  "participant_alignment": {"<participant name>": "their overall stance"},
  "summary": "overall summary of the findings",
  "recommendations": ["concrete recommendation", "..."]
}

Use only the five emotional_tone labels shown. Identify 3-5 themes; theme_details must have exactly the same keys as themes. All numeric values must be JSON numbers, not strings.`, concept, numbered(questions), transcript)
}

func numbered(items []string) string {
	lines := make([]string, len(items))
	for i, q := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, q)
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
