// Package api exposes the research stages and saved projects over REST.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/market-research-agent/internal/config"
	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/gateway"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
	"github.com/BerylCAtieno/market-research-agent/internal/research"
)

// APIKeyHeader carries the caller's backend credential.
const APIKeyHeader = "X-API-KEY"

const (
	Version = "1.0.0"

	maxPersonas = 10

	// StatusClientClosedRequest reports a run abandoned by its caller.
	StatusClientClosedRequest = 499
)

// ProjectStore is the persistence the handlers need. *store.Store satisfies it.
type ProjectStore interface {
	Save(ctx context.Context, p models.Project) (string, error)
	List(ctx context.Context) ([]models.ProjectSummary, error)
	Get(ctx context.Context, id string) (*models.Project, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	dial     gateway.Dialer
	research config.Research
	store    ProjectStore
	log      *zap.Logger
}

func NewHandler(dial gateway.Dialer, cfg config.Research, store ProjectStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{dial: dial, research: cfg, store: store, log: log}
}

// Register mounts every REST route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.Index)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.POST("/validate-key", h.ValidateKey)

	gen := api.Group("/generate")
	gen.POST("/personas", h.GeneratePersonas)
	gen.POST("/focus-group", h.GenerateFocusGroup)
	gen.POST("/analysis", h.GenerateAnalysis)
	gen.POST("/research", h.GenerateResearch)

	projects := api.Group("/projects")
	projects.GET("", h.ListProjects)
	projects.POST("", h.CreateProject)
	projects.GET("/:id", h.GetProject)
	projects.DELETE("/:id", h.DeleteProject)
	projects.GET("/:id/export", h.ExportProject)
	projects.GET("/:id/transcript", h.ExportTranscript)
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Synthetic Market Research API is running",
		"version": Version,
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// ValidateKey probes the backend with the caller's key.
func (h *Handler) ValidateKey(c *gin.Context) {
	cred := credential(c)
	if cred.Empty() {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "valid": false, "message": "Missing API key"})
		return
	}
	client, err := h.dial(c.Request.Context(), cred)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer client.Close()

	valid, msg := client.ValidateCredential(c.Request.Context())
	status := http.StatusOK
	if !valid {
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"success": valid, "valid": valid, "message": msg})
}

type personasRequest struct {
	Segment     string `json:"target_segment"`
	NumPersonas int    `json:"num_personas"`
}

func (h *Handler) GeneratePersonas(c *gin.Context) {
	var req personasRequest
	if !h.bind(c, &req) {
		return
	}
	count := req.NumPersonas
	if count == 0 {
		count = h.research.PersonaCount
	}
	if strings.TrimSpace(req.Segment) == "" {
		h.fail(c, errs.InvalidInput("Missing target segment"))
		return
	}
	if count < 1 || count > maxPersonas {
		h.fail(c, errs.InvalidInput("num_personas must be between 1 and %d", maxPersonas))
		return
	}

	svc, done, ok := h.service(c)
	if !ok {
		return
	}
	defer done()

	personas, tokens, err := svc.GeneratePersonas(c.Request.Context(), req.Segment, count)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "personas": personas, "token_count": tokens})
}

type focusGroupRequest struct {
	Personas  []models.Persona `json:"personas"`
	Concept   string           `json:"product_concept"`
	Questions []string         `json:"research_questions"`
}

func (h *Handler) GenerateFocusGroup(c *gin.Context) {
	var req focusGroupRequest
	if !h.bind(c, &req) {
		return
	}
	questions := models.ResearchRequest{Concept: req.Concept, Questions: req.Questions}.Normalize()
	if len(req.Personas) == 0 || questions.Concept == "" || len(questions.Questions) == 0 {
		h.fail(c, errs.InvalidInput("Missing required fields: personas, product_concept, research_questions"))
		return
	}

	svc, done, ok := h.service(c)
	if !ok {
		return
	}
	defer done()

	transcript, tokens, err := svc.SimulateDiscussion(c.Request.Context(), req.Personas, questions.Concept, questions.Questions)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transcript": transcript, "token_count": tokens})
}

type analysisRequest struct {
	Transcript string   `json:"transcript"`
	Concept    string   `json:"product_concept"`
	Questions  []string `json:"research_questions"`
}

func (h *Handler) GenerateAnalysis(c *gin.Context) {
	var req analysisRequest
	if !h.bind(c, &req) {
		return
	}
	questions := models.ResearchRequest{Concept: req.Concept, Questions: req.Questions}.Normalize()
	if strings.TrimSpace(req.Transcript) == "" || questions.Concept == "" || len(questions.Questions) == 0 {
		h.fail(c, errs.InvalidInput("Missing required fields: transcript, product_concept, research_questions"))
		return
	}

	svc, done, ok := h.service(c)
	if !ok {
		return
	}
	defer done()

	report, tokens, err := svc.Analyze(c.Request.Context(), req.Transcript, questions.Concept, questions.Questions)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": report, "token_count": tokens})
}

// GenerateResearch runs the whole pipeline. A failed run still returns the
// outputs produced before the failing stage.
func (h *Handler) GenerateResearch(c *gin.Context) {
	var req models.ResearchRequest
	if !h.bind(c, &req) {
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		h.fail(c, err)
		return
	}

	svc, done, ok := h.service(c)
	if !ok {
		return
	}
	defer done()

	run, err := research.NewPipeline(svc, h.research.PersonaCount).Run(c.Request.Context(), req)
	body := gin.H{
		"personas":    run.Personas,
		"transcript":  run.Transcript,
		"analysis":    run.Report,
		"token_count": run.Tokens,
		"state":       run.State,
	}
	if err != nil {
		body["failed_stage"] = run.FailedStage
		h.failWith(c, err, body)
		return
	}
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

// service builds a per-request Service from the caller's key. The returned
// func releases the backend client.
func (h *Handler) service(c *gin.Context) (*research.Service, func(), bool) {
	cred := credential(c)
	if cred.Empty() {
		h.fail(c, errs.New(errs.KindAuthentication, "Missing API key"))
		return nil, nil, false
	}
	client, err := h.dial(c.Request.Context(), cred)
	if err != nil {
		h.fail(c, err)
		return nil, nil, false
	}
	done := func() {
		if err := client.Close(); err != nil {
			h.log.Warn("close backend client", zap.Error(err))
		}
	}
	return research.NewService(client, h.research, h.log), done, true
}

func (h *Handler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.fail(c, errs.InvalidInput("invalid request body: %v", err))
		return false
	}
	return true
}

func credential(c *gin.Context) gateway.Credential {
	return gateway.Credential{APIKey: strings.TrimSpace(c.GetHeader(APIKeyHeader))}
}

// StatusFor maps an error kind to the HTTP status returned to callers.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindAuthentication:
		return http.StatusUnauthorized
	case errs.KindCancelled:
		return StatusClientClosedRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.failWith(c, err, gin.H{})
}

func (h *Handler) failWith(c *gin.Context, err error, body gin.H) {
	kind := errs.KindOf(err)
	if kind == "" {
		kind = errs.KindUpstream
	}
	status := StatusFor(kind)
	body["success"] = false
	body["error"] = err.Error()
	body["kind"] = kind
	if e, ok := errs.As(err); ok && e.Stage != "" {
		body["stage"] = e.Stage
	}

	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", fields...)
	} else {
		h.log.Info("request rejected", fields...)
	}
	c.JSON(status, body)
}

func notFound(c *gin.Context, id string) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Project %s not found", id)})
}
