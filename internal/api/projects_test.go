package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/market-research-agent/internal/export"
)

func createProject(t *testing.T, ts *testServer, name string) string {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/projects", map[string]any{
		"name":               name,
		"product_concept":    "invoice tool",
		"target_segment":     "freelancers",
		"research_questions": []string{"Would you use this?"},
		"personas":           []map[string]any{{"name": "Maya Chen", "age": 31}},
		"transcript":         transcript,
		"analysis": map[string]any{
			"emotional_tone": map[string]any{"positive": 0.5},
			"themes":         map[string]any{"Price": 3},
			"theme_details":  map[string]any{"Price": "Cost came up."},
			"pricing":        map[string]any{"sensitivity": 0.5, "min_price": 5, "max_price": 9},
		},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id, ok := decode(t, w)["project_id"].(string)
	require.True(t, ok)
	return id
}

func TestProjectsCRUD(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/projects", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["projects"])

	first := createProject(t, ts, "First study")
	second := createProject(t, ts, "Second study")

	w = ts.do(http.MethodGet, "/api/projects", nil, "")
	projects := decode(t, w)["projects"].([]any)
	require.Len(t, projects, 2)
	assert.Equal(t, second, projects[0].(map[string]any)["id"])
	assert.Equal(t, first, projects[1].(map[string]any)["id"])

	w = ts.do(http.MethodGet, "/api/projects/"+first, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	project := decode(t, w)["project"].(map[string]any)
	assert.Equal(t, "First study", project["name"])
	assert.Equal(t, transcript, project["transcript"])

	w = ts.do(http.MethodDelete, "/api/projects/"+first, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodDelete, "/api/projects/"+first, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(http.MethodGet, "/api/projects/"+first, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProjectValidates(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/projects", map[string]any{"name": "x", "product_concept": "y"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectExports(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts, "Export me")

	w := ts.do(http.MethodGet, "/api/projects/"+id+"/export", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), export.JSONFilename)
	doc, err := export.Parse(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "invoice tool", doc.Concept)
	assert.Equal(t, transcript, doc.Transcript)
	require.NotNil(t, doc.Analysis)
	assert.Equal(t, 9.0, doc.Analysis.Pricing.MaxPrice)

	w = ts.do(http.MethodGet, "/api/projects/"+id+"/transcript", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, transcript+"\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = ts.do(http.MethodGet, "/api/projects/missing/export", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
