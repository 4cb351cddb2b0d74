package contract

import "regexp"

// ForbiddenPattern is one entry of the block list. The table is
// versioned data, maintained separately from the sanitizer control
// flow so it can be reviewed and tested on its own.
type ForbiddenPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// forbiddenPatterns v3. Categories: model meta-commentary leaking into
// customer text, email-style sign-offs (replies are chat messages),
// long verbatim quotes, unverifiable promises, and discount language
// that sales has to approve.
var forbiddenPatterns = []ForbiddenPattern{
	{Name: "meta_commentary", Pattern: regexp.MustCompile(`(?i)\b(i should|let me|i will now|i need to|as an ai|my instructions)\b`)},
	{Name: "sign_off", Pattern: regexp.MustCompile(`(?i)\b((best|kind|warm)\s+regards|sincerely|yours\s+(truly|faithfully)|cheers,)\b`)},
	{Name: "long_quote", Pattern: regexp.MustCompile(`"[^"]{80,}"`)},
	{Name: "unverifiable_promise", Pattern: regexp.MustCompile(`(?i)(\bguaranteed?\b|100%|\bno risk\b|\brisk[- ]free\b|\bpromise\b)`)},
	{Name: "discount_language", Pattern: regexp.MustCompile(`(?i)(\bdiscount\b|\d+%\s*off|\bspecial offer\b|\bfree of charge\b)`)},
}

// acknowledgementMarkers introduce a restatement of customer input;
// the parroting check watches the text around them.
var acknowledgementMarkers = []string{
	"noted",
	"got it",
	"as you said",
	"as you mentioned",
	"you mentioned",
	"i understand you",
}
