package research

import (
	"math"
	"strings"
	"sync"

	"github.com/jonreiter/govader"

	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

// The analyzer parses its lexicon on construction; it is read-only after that.
var sentimentAnalyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// ScoreSentiment computes VADER polarity scores over text, rounded the way
// NLTK reports them. Blank input scores zero on every axis.
func ScoreSentiment(text string) models.LexiconSentiment {
	words := strings.Fields(text)
	if len(words) == 0 {
		return models.LexiconSentiment{}
	}
	// The analyzer tokenizes on single spaces only.
	s := sentimentAnalyzer().PolarityScores(strings.Join(words, " "))
	return models.LexiconSentiment{
		Positive: round(s.Positive, 3),
		Neutral:  round(s.Neutral, 3),
		Negative: round(s.Negative, 3),
		Compound: round(s.Compound, 4),
	}
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
