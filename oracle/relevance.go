package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// contentWindow bounds how much proposed content the prompt embeds.
const contentWindow = 2000

// Pre-compiled patterns for verdict extraction from oracle replies.
var (
	// verdictPattern anchors extraction on the relevant key so JSON-like
	// text echoed from the proposed content is not mistaken for the
	// verdict.
	verdictPattern = regexp.MustCompile(`(?s)\{[^{}]*"relevant"\s*:\s*(?:true|false)[^{}]*\}`)
	// jsonObjectPattern matches any JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// Verdict is the oracle's parsed judgment on one mutation.
type Verdict struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason,omitempty"`
}

// Relevance asks whether content serves the declared purpose. The health
// probe runs first so an absent oracle is detected quickly; any probe,
// generation or parse failure is returned for the caller to fail open on.
func (c *Client) Relevance(ctx context.Context, purpose, content string) (*Verdict, error) {
	if err := c.Health(ctx); err != nil {
		return nil, err
	}

	reply, err := c.Generate(ctx, relevancePrompt(purpose, content))
	if err != nil {
		return nil, err
	}
	return ParseVerdict(reply)
}

// relevancePrompt builds the bounded prompt embedding the rule's purpose
// and a truncated view of the proposed content.
func relevancePrompt(purpose, content string) string {
	if len(content) > contentWindow {
		content = content[:contentWindow]
	}

	var b strings.Builder
	b.WriteString("You review a proposed file write against the file's declared purpose.\n\n")
	b.WriteString("Declared purpose: ")
	b.WriteString(purpose)
	b.WriteString("\n\nProposed content (may be truncated):\n---\n")
	b.WriteString(content)
	b.WriteString("\n---\n\n")
	b.WriteString("Does the proposed content serve the declared purpose? ")
	b.WriteString("Reply with ONLY a JSON object: ")
	b.WriteString(`{"relevant": true} or {"relevant": false, "reason": "short explanation"}`)
	return b.String()
}

// ParseVerdict extracts and decodes the verdict object from a raw reply.
func ParseVerdict(reply string) (*Verdict, error) {
	raw := extractVerdictJSON(reply)
	if raw == "" {
		return nil, NewFatalError(fmt.Errorf("no JSON object in oracle reply"))
	}
	raw = trailingCommaPattern.ReplaceAllString(raw, "$1")

	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, NewFatalError(fmt.Errorf("parse oracle verdict: %w", err))
	}
	return &v, nil
}

// extractVerdictJSON prefers an object carrying the relevant key and
// falls back to the first JSON object found.
func extractVerdictJSON(content string) string {
	if m := verdictPattern.FindString(content); m != "" {
		return m
	}
	return jsonObjectPattern.FindString(content)
}
