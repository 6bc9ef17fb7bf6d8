// Package extract turns a raw model reply into plain text or a validated JSON
// value. Models often ignore formatting instructions, so structured
// extraction falls back from a direct parse to a fenced-block scan and then
// to a bracket or brace balance scan.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
)

type Mode int

const (
	PlainText Mode = iota
	Structured
)

func (m Mode) String() string {
	if m == Structured {
		return "structured"
	}
	return "plain-text"
}

// Strategy names the parser attempt that produced a structured value.
type Strategy string

const (
	StrategyNone    Strategy = ""
	StrategyDirect  Strategy = "direct"
	StrategyFenced  Strategy = "fenced"
	StrategyBracket Strategy = "bracket"
	StrategyBrace   Strategy = "brace"
)

type Result struct {
	Text     string
	JSON     json.RawMessage
	Strategy Strategy
}

// Attempt is one link of the fallback chain. Parse reports ok=false when the
// content does not yield valid JSON under its rule.
type Attempt struct {
	Strategy Strategy
	Parse    func(content string) (json.RawMessage, bool)
}

// Chain is the ordered list of attempts used for structured extraction.
var Chain = []Attempt{
	{Strategy: StrategyDirect, Parse: Direct},
	{Strategy: StrategyFenced, Parse: Fenced},
	{Strategy: StrategyBracket, Parse: Bracket},
	{Strategy: StrategyBrace, Parse: Brace},
}

// Extract returns the content unmodified in PlainText mode. In Structured
// mode it runs Chain in order and fails with a malformed-response error that
// keeps the raw content.
func Extract(content string, mode Mode) (Result, error) {
	if mode == PlainText {
		return Result{Text: content}, nil
	}
	for _, a := range Chain {
		if raw, ok := a.Parse(content); ok {
			return Result{Text: content, JSON: raw, Strategy: a.Strategy}, nil
		}
	}
	return Result{Text: content}, errs.Malformed(content, fmt.Errorf("no JSON value found in %d bytes of content", len(content)))
}

// Decode extracts a structured value and unmarshals it into v. Numbers are
// kept as json.Number when v is an interface so callers can tell numerals
// from numeral strings.
func Decode(content string, v any) (Strategy, error) {
	res, err := Extract(content, Structured)
	if err != nil {
		return StrategyNone, err
	}
	dec := json.NewDecoder(bytes.NewReader(res.JSON))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return res.Strategy, errs.Malformed(content, err)
	}
	return res.Strategy, nil
}

// Direct accepts the whole content when it is a JSON object or array.
func Direct(content string) (json.RawMessage, bool) {
	s := strings.TrimSpace(content)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// Fenced returns the body of the first ```json block that parses. Untagged
// fences are tried after all tagged ones.
func Fenced(content string) (json.RawMessage, bool) {
	var untagged []string
	rest := content
	for {
		open := strings.Index(rest, "```")
		if open == -1 {
			break
		}
		rest = rest[open+3:]
		nl := strings.IndexByte(rest, '\n')
		if nl == -1 {
			break
		}
		tag := strings.ToLower(strings.TrimSpace(rest[:nl]))
		body := rest[nl+1:]
		end := strings.Index(body, "```")
		if end == -1 {
			break
		}
		block := strings.TrimSpace(body[:end])
		rest = body[end+3:]

		switch tag {
		case "json", "jsonc", "json5":
			if json.Valid([]byte(block)) {
				return json.RawMessage(block), true
			}
		case "":
			untagged = append(untagged, block)
		}
	}
	for _, block := range untagged {
		if raw, ok := Direct(block); ok {
			return raw, true
		}
	}
	return nil, false
}

// Bracket returns the first balanced top-level [...] substring if it parses
// and opens before any '{', so a list wrapped in prose is kept whole.
func Bracket(content string) (json.RawMessage, bool) {
	start := strings.IndexByte(content, '[')
	if start == -1 {
		return nil, false
	}
	if brace := strings.IndexByte(content, '{'); brace != -1 && brace < start {
		return nil, false
	}
	return balanced(content, start, '[', ']')
}

// Brace returns the first balanced top-level {...} substring if it parses.
// Braces inside JSON strings are ignored.
func Brace(content string) (json.RawMessage, bool) {
	start := strings.IndexByte(content, '{')
	if start == -1 {
		return nil, false
	}
	return balanced(content, start, '{', '}')
}

func balanced(content string, start int, open, close byte) (json.RawMessage, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				candidate := content[start : i+1]
				if json.Valid([]byte(candidate)) {
					return json.RawMessage(candidate), true
				}
				return nil, false
			}
		}
	}
	return nil, false
}
