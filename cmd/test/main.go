// Command test is a smoke client for a running research server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
)

const (
	defaultConcept = "A subscription tool that automates invoicing for freelancers"
	defaultSegment = "Urban freelance designers, age 25-40"
)

var defaultQuestions = []string{
	"Would you use this product?",
	"What would you pay per month?",
}

type TestClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Research runs three backend calls, so the timeout is generous.
func NewTestClient(baseURL, apiKey string) *TestClient {
	return &TestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func main() {
	var (
		baseURL, testType, concept, segment, apiKey string
		questions                                   []string
	)
	cmd := &cobra.Command{
		Use:          "test",
		Short:        "Smoke-test a running Market Research Agent",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(questions) == 0 {
				questions = defaultQuestions
			}
			body := map[string]interface{}{
				"product_concept":    concept,
				"target_segment":     segment,
				"research_questions": questions,
			}
			tc := NewTestClient(baseURL, apiKey)

			printHeader("Market Research Agent - Test Suite")
			fmt.Printf("%sBase URL: %s%s\n\n", colorCyan, tc.baseURL, colorReset)

			tests := map[string]func() bool{
				"health":       tc.testHealthCheck,
				"agent-card":   tc.testAgentCard,
				"validate-key": tc.testValidateKey,
				"rest":         func() bool { return tc.testRESTResearch(body) },
				"a2a":          func() bool { return tc.testA2AResearch(body) },
			}
			if testType == "all" {
				return tc.runAll([]string{"health", "agent-card", "validate-key", "rest", "a2a"}, tests)
			}
			fn, ok := tests[testType]
			if !ok {
				return fmt.Errorf("unknown test type %q (available: all, health, agent-card, validate-key, rest, a2a)", testType)
			}
			if !fn() {
				return fmt.Errorf("%s test failed", testType)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the agent")
	f.StringVar(&testType, "test", "all", "test to run: all, health, agent-card, validate-key, rest, a2a")
	f.StringVar(&concept, "concept", defaultConcept, "product concept to research")
	f.StringVar(&segment, "segment", defaultSegment, "target segment")
	f.StringArrayVarP(&questions, "question", "q", nil, "research question (repeatable)")
	f.StringVar(&apiKey, "key", os.Getenv("GEMINI_API_KEY"), "API key sent in X-API-KEY")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (tc *TestClient) runAll(order []string, tests map[string]func() bool) error {
	passed := 0
	failed := 0
	for _, name := range order {
		if tests[name]() {
			passed++
		} else {
			failed++
		}
		fmt.Println()
	}

	printHeader("Test Summary")
	fmt.Printf("%sPassed: %d%s\n", colorGreen, passed, colorReset)
	fmt.Printf("%sFailed: %d%s\n", colorRed, failed, colorReset)
	fmt.Printf("Total: %d\n", passed+failed)

	if failed > 0 {
		return fmt.Errorf("%d tests failed", failed)
	}
	return nil
}

func (tc *TestClient) do(method, path string, payload interface{}) (int, []byte, error) {
	url := tc.baseURL + path
	fmt.Printf("%s %s\n", method, url)

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.apiKey != "" {
		req.Header.Set("X-API-KEY", tc.apiKey)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

func (tc *TestClient) testHealthCheck() bool {
	printTestHeader("Testing Health Check Endpoint")

	status, body, err := tc.do(http.MethodGet, "/health", nil)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	if status != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", status))
		return false
	}
	if string(body) != "OK" {
		printError(fmt.Sprintf("Expected body 'OK', got '%s'", string(body)))
		return false
	}

	printSuccess("Health check passed")
	return true
}

func (tc *TestClient) testAgentCard() bool {
	printTestHeader("Testing Agent Card Endpoint")

	status, body, err := tc.do(http.MethodGet, "/.well-known/agent.json", nil)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	if status != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", status))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var agentCard map[string]interface{}
	if err := json.Unmarshal(body, &agentCard); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}
	for _, field := range []string{"name", "description", "version", "capabilities", "endpoints"} {
		if _, ok := agentCard[field]; !ok {
			printError(fmt.Sprintf("Missing required field: %s", field))
			return false
		}
	}

	printSuccess("Agent card is valid")
	printJSON(body)
	return true
}

func (tc *TestClient) testValidateKey() bool {
	printTestHeader("Testing API Key Validation")

	status, body, err := tc.do(http.MethodPost, "/api/validate-key", nil)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	if status != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", status))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	printSuccess("API key accepted")
	return true
}

func (tc *TestClient) testRESTResearch(payload map[string]interface{}) bool {
	printTestHeader("Testing REST Research Pipeline")
	fmt.Printf("%sConcept:%s %s\n\n", colorCyan, colorReset, payload["product_concept"])

	status, body, err := tc.do(http.MethodPost, "/api/generate/research", payload)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}

	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}
	if status != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d (failed stage: %v)", status, response["failed_stage"]))
		fmt.Printf("Error: %v\n", response["error"])
		return false
	}

	personas, _ := response["personas"].([]interface{})
	fmt.Printf("%sPersonas:%s %d\n", colorGreen, colorReset, len(personas))
	if analysis, ok := response["analysis"].(map[string]interface{}); ok {
		fmt.Printf("%sSummary:%s %v\n", colorGreen, colorReset, analysis["summary"])
	}
	if tokens, ok := response["token_count"].(map[string]interface{}); ok {
		fmt.Printf("%sTokens:%s %v\n", colorGreen, colorReset, tokens["total"])
	}

	printSuccess("REST research completed successfully")
	return true
}

func (tc *TestClient) testA2AResearch(payload map[string]interface{}) bool {
	printTestHeader("Testing A2A Research Task")

	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "test-" + uuid.NewString(),
		"method":  "message/send",
		"params": map[string]interface{}{
			"message": map[string]interface{}{
				"kind": "message",
				"role": "user",
				"parts": []map[string]interface{}{
					{"kind": "data", "data": payload},
				},
			},
			"configuration": map[string]interface{}{
				"blocking":            true,
				"acceptedOutputModes": []string{"text", "data"},
			},
		},
	}

	jsonData, _ := json.MarshalIndent(request, "", "  ")
	fmt.Printf("%sRequest:%s\n", colorYellow, colorReset)
	fmt.Println(string(jsonData))
	fmt.Println()

	status, body, err := tc.do(http.MethodPost, "/a2a/research", request)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	if status != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", status))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}
	if errObj, ok := response["error"]; ok {
		printError("Request returned an error")
		errJSON, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Println(string(errJSON))
		return false
	}

	result, ok := response["result"].(map[string]interface{})
	if !ok {
		printError("Invalid result format")
		return false
	}
	taskStatus, ok := result["status"].(map[string]interface{})
	if !ok {
		printError("Invalid status format")
		return false
	}

	printMessage(taskStatus["message"])
	if state, _ := taskStatus["state"].(string); state != "completed" {
		printError(fmt.Sprintf("Expected state 'completed', got '%s'", state))
		return false
	}
	printSuccess("A2A research completed successfully")

	if artifacts, ok := result["artifacts"].([]interface{}); ok && len(artifacts) > 0 {
		fmt.Printf("\n%sArtifacts:%s\n", colorPurple, colorReset)
		for _, a := range artifacts {
			if m, ok := a.(map[string]interface{}); ok {
				fmt.Printf("  - %v\n", m["name"])
			}
		}
	}
	return true
}

func printMessage(msg interface{}) {
	m, ok := msg.(map[string]interface{})
	if !ok {
		return
	}
	parts, _ := m["parts"].([]interface{})
	fmt.Println(strings.Repeat("=", 80))
	for _, part := range parts {
		if p, ok := part.(map[string]interface{}); ok {
			if text, ok := p["text"].(string); ok {
				fmt.Println(text)
			}
		}
	}
	fmt.Println(strings.Repeat("=", 80))
}

func printHeader(text string) {
	fmt.Printf("\n%s%s%s\n", colorBlue, strings.Repeat("=", len(text)+4), colorReset)
	fmt.Printf("%s= %s =%s\n", colorBlue, text, colorReset)
	fmt.Printf("%s%s%s\n\n", colorBlue, strings.Repeat("=", len(text)+4), colorReset)
}

func printTestHeader(text string) {
	fmt.Printf("%s[TEST] %s%s\n", colorCyan, text, colorReset)
	fmt.Println(strings.Repeat("-", 80))
}

func printSuccess(text string) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, text, colorReset)
}

func printError(text string) {
	fmt.Printf("%s✗ %s%s\n", colorRed, text, colorReset)
}

func printJSON(data []byte) {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, data, "", "  "); err == nil {
		fmt.Printf("\n%sResponse:%s\n%s\n", colorYellow, colorReset, prettyJSON.String())
	}
}
