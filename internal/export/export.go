// Package export renders a research run as the downloadable JSON document
// and the plain-text transcript.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

const (
	JSONFilename       = "market_research_results.json"
	TranscriptFilename = "focus_group_transcript.txt"
)

// Document is the export schema. Its keys are exactly product_concept,
// target_segment, research_questions, personas, transcript and analysis.
type Document struct {
	Concept    string                 `json:"product_concept"`
	Segment    string                 `json:"target_segment"`
	Questions  []string               `json:"research_questions"`
	Personas   []models.Persona       `json:"personas"`
	Transcript string                 `json:"transcript"`
	Analysis   *models.AnalysisReport `json:"analysis"`
}

func FromProject(p *models.Project) Document {
	return Document{
		Concept:    p.Concept,
		Segment:    p.Segment,
		Questions:  p.Questions,
		Personas:   p.Personas,
		Transcript: p.Transcript,
		Analysis:   p.Analysis,
	}
}

// WriteJSON writes d as indented JSON.
func WriteJSON(w io.Writer, d Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// JSON returns the encoded document.
func JSON(d Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse reads a document produced by WriteJSON. Unknown keys are rejected.
func Parse(r io.Reader) (Document, error) {
	var d Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Document{}, fmt.Errorf("decode export: %w", err)
	}
	return d, nil
}

// Transcript returns the transcript export, newline terminated.
func Transcript(d Document) string {
	t := strings.TrimRight(d.Transcript, "\n")
	if t == "" {
		return ""
	}
	return t + "\n"
}
