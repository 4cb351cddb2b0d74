package contract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Parse validates raw model text against the output contract: strip
// markdown fences, extract the first balanced JSON object, decode,
// then sanitize the candidate reply against the history.
func Parse(raw string, history []Turn) Outcome {
	candidate := stripFences(raw)
	candidate = extractObject(candidate)
	if candidate == "" {
		return Outcome{RawText: raw, Err: &ParseError{Reason: "no JSON object found"}}
	}

	var decoded struct {
		Reply      *string  `json:"reply"`
		Service    string   `json:"service"`
		Stage      string   `json:"stage"`
		NeedsHuman bool     `json:"needs_human"`
		Missing    []string `json:"missing"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return Outcome{RawText: raw, Err: &ParseError{Reason: "invalid JSON: " + err.Error()}}
	}
	if decoded.Reply == nil || strings.TrimSpace(*decoded.Reply) == "" {
		return Outcome{RawText: raw, Err: &ParseError{Reason: "missing required reply field"}}
	}

	reply := strings.TrimSpace(*decoded.Reply)
	if err := Sanitize(reply, history); err != nil {
		return Outcome{RawText: raw, Err: err}
	}

	structured := &StructuredReply{
		Reply:      reply,
		Service:    decoded.Service,
		Stage:      decoded.Stage,
		NeedsHuman: decoded.NeedsHuman,
		Missing:    decoded.Missing,
		Confidence: defaultConfidence,
	}
	if decoded.Confidence != nil {
		structured.Confidence = *decoded.Confidence
	}
	structured.applyDefaults()

	return Outcome{Structured: structured, RawText: raw}
}

func stripFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// extractObject returns the first balanced {...} substring, tracking
// string literals so braces inside values don't skew the depth count.
func extractObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

var extractReplyRe = regexp.MustCompile(`"reply"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ExtractReply is the best-effort fallback after repeated parse
// failures: pull the reply value out with a regex, unescaping the
// common JSON escapes.
func ExtractReply(raw string) (string, bool) {
	m := extractReplyRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &out); err != nil {
		return "", false
	}
	out = strings.TrimSpace(out)
	return out, out != ""
}
