// Package contract validates raw model output into a strict structured
// reply. It is pure: no I/O, no side effects.
package contract

import "fmt"

// Turn is one unit of conversation history at the sanitizer boundary.
type Turn struct {
	Direction Direction
	Text      string
}

// Direction tells customer text apart from our own.
type Direction string

const (
	// DirectionInbound is customer-authored text.
	DirectionInbound Direction = "inbound"
	// DirectionOutbound is assistant-authored text.
	DirectionOutbound Direction = "outbound"
)

// StructuredReply is the validated, customer-facing output.
type StructuredReply struct {
	Reply      string   `json:"reply"`
	Service    string   `json:"service"`
	Stage      string   `json:"stage"`
	NeedsHuman bool     `json:"needs_human"`
	Missing    []string `json:"missing"`
	Confidence float64  `json:"confidence"`
}

const (
	defaultService    = "unknown"
	defaultStage      = "qualify"
	defaultConfidence = 0.5
)

// ParseError means the raw text held no usable JSON reply.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Reason)
}

// BlockedError means the sanitizer rejected the candidate reply.
type BlockedError struct {
	Check  string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("reply blocked by %s check: %s", e.Check, e.Reason)
}

// Outcome is the parse-and-sanitize result. Structured is nil whenever
// Err is set; RawText always carries the original model output.
type Outcome struct {
	Structured *StructuredReply
	RawText    string
	Err        error
}

// NewExtractedReply wraps a reply string salvaged from unparseable
// output with the same defaults a minimal parsed object receives.
func NewExtractedReply(text string) *StructuredReply {
	r := &StructuredReply{Reply: text, Confidence: defaultConfidence}
	r.applyDefaults()
	return r
}

func (r *StructuredReply) applyDefaults() {
	if r.Service == "" {
		r.Service = defaultService
	}
	if r.Stage == "" {
		r.Stage = defaultStage
	}
	if r.Missing == nil {
		r.Missing = []string{}
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
}
