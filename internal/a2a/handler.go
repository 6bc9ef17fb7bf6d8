package a2a

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/market-research-agent/internal/agent"
	"github.com/BerylCAtieno/market-research-agent/internal/config"
	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/gateway"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
	"github.com/BerylCAtieno/market-research-agent/internal/research"
)

// APIKeyHeader carries the caller's backend credential.
const APIKeyHeader = "X-API-KEY"

type A2AHandler struct {
	dial     gateway.Dialer
	research config.Research
	log      *zap.Logger
}

func NewA2AHandler(dial gateway.Dialer, cfg config.Research, log *zap.Logger) *A2AHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &A2AHandler{dial: dial, research: cfg, log: log}
}

// RequestLoggingMiddleware logs every request, with bodies at debug level.
func RequestLoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil && log.Core().Enabled(zap.DebugLevel) {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		}
		log.Info("request", fields...)
		if len(body) > 0 {
			log.Debug("request body", zap.String("path", c.Request.URL.Path), zap.ByteString("body", body))
		}
	}
}

// HandleResearch processes A2A messages
func (h *A2AHandler) HandleResearch(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error("read request body", zap.Error(err))
		h.sendErrorResponse(c, "", "Failed to read request body", CodeParseError)
		return
	}

	var rpcReq JSONRPCRequest
	if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil || rpcReq.Method == "" {
		h.log.Debug("not a JSON-RPC request, trying direct message parsing")
		h.handleDirectMessage(c, bodyBytes)
		return
	}

	if rpcReq.JSONRPC != "2.0" {
		h.log.Warn("invalid JSON-RPC version", zap.String("jsonrpc", rpcReq.JSONRPC))
		h.sendErrorResponse(c, rpcReq.ID, "Invalid JSON-RPC version", CodeInvalidRequest)
		return
	}

	switch rpcReq.Method {
	case "agent/task", "message/send":
		h.handleTask(c, rpcReq)
	default:
		h.log.Warn("unknown method", zap.String("method", rpcReq.Method))
		h.sendErrorResponse(c, rpcReq.ID, fmt.Sprintf("Method not found: %s", rpcReq.Method), CodeMethodNotFound)
	}
}

// handleDirectMessage handles a message sent without the JSON-RPC wrapper.
func (h *A2AHandler) handleDirectMessage(c *gin.Context, bodyBytes []byte) {
	var msgParams MessageParams
	if err := json.Unmarshal(bodyBytes, &msgParams); err != nil || len(msgParams.Message.Parts) == 0 {
		h.sendErrorResponse(c, "", "Invalid request format", CodeParseError)
		return
	}
	h.runTask(c, "direct-message", msgParams.Message)
}

func (h *A2AHandler) handleTask(c *gin.Context, rpcReq JSONRPCRequest) {
	paramsJSON, err := json.Marshal(rpcReq.Params)
	if err != nil {
		h.sendErrorResponse(c, rpcReq.ID, "Failed to parse parameters", CodeInvalidParams)
		return
	}

	var msgParams MessageParams
	if err := json.Unmarshal(paramsJSON, &msgParams); err != nil {
		h.log.Warn("invalid params", zap.Error(err))
		h.sendErrorResponse(c, rpcReq.ID, "Invalid parameters", CodeInvalidParams)
		return
	}
	h.runTask(c, rpcReq.ID, msgParams.Message)
}

func (h *A2AHandler) runTask(c *gin.Context, taskID string, msg A2AMessage) {
	req, ok := h.extractRequest(msg)
	if !ok {
		h.sendSuccessResponse(c, taskID, h.createErrorTaskResult(taskID,
			"Please send a data part with product_concept, target_segment and research_questions.", nil))
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		h.sendSuccessResponse(c, taskID, h.createErrorTaskResult(taskID, err.Error(), nil))
		return
	}

	cred := gateway.Credential{APIKey: strings.TrimSpace(c.GetHeader(APIKeyHeader))}
	if cred.Empty() {
		h.sendSuccessResponse(c, taskID, h.createErrorTaskResult(taskID,
			fmt.Sprintf("Missing API key: send it in the %s header.", APIKeyHeader), nil))
		return
	}
	client, err := h.dial(c.Request.Context(), cred)
	if err != nil {
		h.sendSuccessResponse(c, taskID, h.createErrorTaskResult(taskID, err.Error(), nil))
		return
	}
	defer client.Close()

	h.log.Info("running research task", zap.String("task_id", taskID), zap.String("segment", req.Segment))
	svc := research.NewService(client, h.research, h.log)
	run, err := research.NewPipeline(svc, h.research.PersonaCount).Run(c.Request.Context(), req)
	if err != nil {
		h.log.Error("research task failed", zap.String("task_id", taskID), zap.Error(err))
		h.sendSuccessResponse(c, taskID, h.createErrorTaskResult(taskID, failureMessage(err), run))
		return
	}

	h.sendSuccessResponse(c, taskID, h.createSuccessTaskResult(taskID, run))
}

// ServeAgentCard serves the agent card using Gin
func (h *A2AHandler) ServeAgentCard(c *gin.Context) {
	if err := agent.LoadAgentCard(); err != nil {
		h.log.Error("load agent card", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent card not available"})
		return
	}
	c.Data(http.StatusOK, "application/json", agent.AgentCardData)
}

// extractRequest reads the research request from the message. Data parts
// win over text parts; a text part must hold the request as JSON.
func (h *A2AHandler) extractRequest(msg A2AMessage) (models.ResearchRequest, bool) {
	var texts []string
	for _, part := range msg.Parts {
		switch part.Kind {
		case "data":
			if req, ok := decodeRequest(part.Data); ok {
				return req, true
			}
			texts = append(texts, historyTexts(part.Data)...)
		case "text":
			if t := strings.TrimSpace(part.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	// Most recent text first.
	for i := len(texts) - 1; i >= 0; i-- {
		if req, ok := decodeRequest(json.RawMessage(texts[i])); ok {
			return req, true
		}
	}
	return models.ResearchRequest{}, false
}

func decodeRequest(data interface{}) (models.ResearchRequest, bool) {
	var raw []byte
	switch v := data.(type) {
	case nil:
		return models.ResearchRequest{}, false
	case json.RawMessage:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return models.ResearchRequest{}, false
		}
		raw = b
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return models.ResearchRequest{}, false
	}
	var req models.ResearchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return models.ResearchRequest{}, false
	}
	if req.Concept == "" && req.Segment == "" && len(req.Questions) == 0 {
		return models.ResearchRequest{}, false
	}
	return req, true
}

// historyTexts pulls text items out of a data part holding conversation
// history, skipping markup.
func historyTexts(data interface{}) []string {
	items, ok := data.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok || m["kind"] != "text" {
			continue
		}
		text, _ := m["text"].(string)
		text = strings.TrimSpace(strings.NewReplacer("<p>", "", "</p>", "").Replace(text))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

func failureMessage(err error) string {
	e, ok := errs.As(err)
	if !ok || e.Stage == "" {
		return fmt.Sprintf("Research failed: %v", err)
	}
	return fmt.Sprintf("Research failed during %s (%s): %v", strings.ReplaceAll(e.Stage, "_", " "), e.Kind, err)
}

func (h *A2AHandler) createSuccessTaskResult(taskID string, run *research.Run) TaskResult {
	responseText := h.formatResearchResponse(run)

	return TaskResult{
		ID:   taskID,
		Kind: "task",
		Status: TaskStatus{
			State:     StateCompleted,
			Timestamp: Timestamp(),
			Message: &A2AMessage{
				Kind:      "message",
				Role:      RoleAgent,
				MessageID: uuid.New().String(),
				TaskID:    taskID,
				Parts:     []MessagePart{TextPart(responseText)},
			},
		},
		Artifacts: runArtifacts(run),
	}
}

// createErrorTaskResult reports a failed task. Outputs of a partial run are
// attached as artifacts.
func (h *A2AHandler) createErrorTaskResult(taskID string, errorMsg string, run *research.Run) TaskResult {
	result := TaskResult{
		ID:   taskID,
		Kind: "task",
		Status: TaskStatus{
			State:     StateFailed,
			Timestamp: Timestamp(),
			Message: &A2AMessage{
				Kind:      "message",
				Role:      RoleAgent,
				MessageID: uuid.New().String(),
				TaskID:    taskID,
				Parts:     []MessagePart{TextPart(errorMsg)},
			},
		},
	}
	if run != nil {
		result.Artifacts = runArtifacts(run)
	}
	return result
}

func runArtifacts(run *research.Run) []Artifact {
	artifact := func(name string, part MessagePart) Artifact {
		return Artifact{ArtifactID: uuid.New().String(), Name: name, Parts: []MessagePart{part}}
	}
	var out []Artifact
	if len(run.Personas) > 0 {
		out = append(out, artifact("Personas", DataPart(run.Personas)))
	}
	if run.Transcript != "" {
		out = append(out, artifact("Focus Group Transcript", TextPart(run.Transcript)))
	}
	if run.Report != nil {
		out = append(out, artifact("Analysis Report", DataPart(run.Report)))
	}
	out = append(out, artifact("Token Count", DataPart(run.Tokens)))
	return out
}

func (h *A2AHandler) formatResearchResponse(run *research.Run) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("# Market Research: %s\n\n", run.Request.Concept))
	builder.WriteString(fmt.Sprintf("**Target segment:** %s\n\n", run.Request.Segment))

	builder.WriteString("**Participants:**\n")
	for _, p := range run.Personas {
		builder.WriteString(fmt.Sprintf("- %s, %d, %s\n", p.Name, p.Age, p.Occupation))
	}

	r := run.Report
	if r == nil {
		return builder.String()
	}
	if r.Summary != "" {
		builder.WriteString("\n**Summary:**\n")
		builder.WriteString(r.Summary + "\n")
	}

	if len(r.Themes) > 0 {
		builder.WriteString("\n**Key Themes:**\n")
		themes := make([]string, 0, len(r.Themes))
		for t := range r.Themes {
			themes = append(themes, t)
		}
		sort.Slice(themes, func(i, j int) bool {
			if r.Themes[themes[i]] != r.Themes[themes[j]] {
				return r.Themes[themes[i]] > r.Themes[themes[j]]
			}
			return themes[i] < themes[j]
		})
		for _, t := range themes {
			builder.WriteString(fmt.Sprintf("- %s (%d/10)\n", t, r.Themes[t]))
		}
	}

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		builder.WriteString("\n**" + title + ":**\n")
		for _, item := range items {
			builder.WriteString(fmt.Sprintf("- %s\n", strings.TrimSpace(item)))
		}
	}
	writeList("Praise", r.Praise)
	writeList("Objections", r.Objections)

	builder.WriteString("\n**Pricing:**\n")
	builder.WriteString(fmt.Sprintf("- Suggested range: %.2f to %.2f\n", r.Pricing.MinPrice, r.Pricing.MaxPrice))
	builder.WriteString(fmt.Sprintf("- Price sensitivity: %.0f%%\n", r.Pricing.Sensitivity*100))

	writeList("Recommendations", r.Recommendations)

	builder.WriteString(fmt.Sprintf("\n_Tokens used: %d_\n", run.Tokens.Total))
	return builder.String()
}

func (h *A2AHandler) sendSuccessResponse(c *gin.Context, id string, result interface{}) {
	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (h *A2AHandler) sendErrorResponse(c *gin.Context, id string, message string, code int) {
	h.log.Info("sending JSON-RPC error", zap.Int("code", code), zap.String("message", message))
	// JSON-RPC errors are sent with 200 OK
	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	})
}
