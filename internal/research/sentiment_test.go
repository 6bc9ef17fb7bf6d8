package research

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

func TestScoreSentiment(t *testing.T) {
	assert.Equal(t, models.LexiconSentiment{}, ScoreSentiment(""))
	assert.Equal(t, models.LexiconSentiment{}, ScoreSentiment(" \n\t"))
	assert.Equal(t, models.LexiconSentiment{Neutral: 1}, ScoreSentiment("The meeting is on Tuesday."))

	pos := ScoreSentiment("I love it, the reminders are really great.")
	assert.Greater(t, pos.Compound, 0.5)
	assert.Greater(t, pos.Positive, pos.Negative)
	assert.InDelta(t, 1.0, pos.Positive+pos.Neutral+pos.Negative, 0.002)

	neg := ScoreSentiment("I hate it. Confusing and terrible, a real worry.")
	assert.Less(t, neg.Compound, -0.5)
	assert.Greater(t, neg.Negative, neg.Positive)
}

func TestScoreSentimentNegationAndBoosters(t *testing.T) {
	plain := ScoreSentiment("it is good")
	negated := ScoreSentiment("it is not good")
	boosted := ScoreSentiment("it is very good")

	assert.Greater(t, plain.Compound, 0.0)
	assert.Less(t, negated.Compound, 0.0)
	assert.Greater(t, boosted.Compound, plain.Compound)
}

func TestScoreSentimentAcrossLines(t *testing.T) {
	joined := ScoreSentiment("Maya: good idea. Leo: great price.")
	split := ScoreSentiment("Maya: good idea.\nLeo: great price.")
	assert.Equal(t, joined, split)
}

func TestScoreSentimentDeterministic(t *testing.T) {
	text := transcriptFor(testPersonas)
	assert.Equal(t, ScoreSentiment(text), ScoreSentiment(text))
	assert.LessOrEqual(t, ScoreSentiment(text).Compound, 1.0)
	assert.GreaterOrEqual(t, ScoreSentiment(text).Compound, -1.0)
}
