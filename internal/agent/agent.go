// Package agent holds the A2A agent card served at /.well-known/agent.json.
package agent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed agent.json
var cardJSON []byte

// AgentCardData is the validated card, set by LoadAgentCard.
var AgentCardData []byte

var (
	loadOnce sync.Once
	loadErr  error
)

// LoadAgentCard validates the embedded card once and publishes it in
// AgentCardData.
func LoadAgentCard() error {
	loadOnce.Do(func() {
		var card map[string]interface{}
		if err := json.Unmarshal(cardJSON, &card); err != nil {
			loadErr = fmt.Errorf("parse agent card: %w", err)
			return
		}
		for _, field := range []string{"name", "description", "version", "capabilities", "endpoints"} {
			if _, ok := card[field]; !ok {
				loadErr = fmt.Errorf("agent card is missing %q", field)
				return
			}
		}
		AgentCardData = cardJSON
	})
	return loadErr
}
