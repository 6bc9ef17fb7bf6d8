package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/export"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, fmt.Errorf("list projects: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "projects": projects})
}

type createProjectRequest struct {
	Name       string                 `json:"name"`
	Concept    string                 `json:"product_concept"`
	Segment    string                 `json:"target_segment"`
	Questions  []string               `json:"research_questions"`
	Personas   []models.Persona       `json:"personas"`
	Transcript string                 `json:"transcript"`
	Analysis   *models.AnalysisReport `json:"analysis"`
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if !h.bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Concept) == "" || strings.TrimSpace(req.Segment) == "" {
		h.fail(c, errs.InvalidInput("Missing required fields: name, product_concept, target_segment"))
		return
	}

	id, err := h.store.Save(c.Request.Context(), models.Project{
		Name:       strings.TrimSpace(req.Name),
		Concept:    req.Concept,
		Segment:    req.Segment,
		Questions:  req.Questions,
		Personas:   req.Personas,
		Transcript: req.Transcript,
		Analysis:   req.Analysis,
	})
	if err != nil {
		h.fail(c, fmt.Errorf("save project: %w", err))
		return
	}
	h.log.Info("project saved", zap.String("id", id), zap.String("name", req.Name))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Project created successfully", "project_id": id})
}

func (h *Handler) GetProject(c *gin.Context) {
	p, ok := h.project(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project": p})
}

func (h *Handler) DeleteProject(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, fmt.Errorf("delete project: %w", err))
		return
	}
	if !deleted {
		notFound(c, id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("Project %s deleted successfully", id)})
}

// ExportProject serves the JSON export document as a download.
func (h *Handler) ExportProject(c *gin.Context) {
	p, ok := h.project(c)
	if !ok {
		return
	}
	b, err := export.JSON(export.FromProject(p))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.JSONFilename))
	c.Data(http.StatusOK, "application/json", b)
}

// ExportTranscript serves the transcript alone as plain text.
func (h *Handler) ExportTranscript(c *gin.Context) {
	p, ok := h.project(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.TranscriptFilename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(export.Transcript(export.FromProject(p))))
}

func (h *Handler) project(c *gin.Context) (*models.Project, bool) {
	id := c.Param("id")
	p, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, fmt.Errorf("get project: %w", err))
		return nil, false
	}
	if p == nil {
		notFound(c, id)
		return nil, false
	}
	return p, true
}
