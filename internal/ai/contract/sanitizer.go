package contract

import (
	"regexp"
	"strings"
)

const (
	// parrotWindow bounds how close a customer word may sit to an
	// acknowledgement marker before the reply counts as parroting.
	parrotWindow = 40

	// repetitionLimit is the word-overlap ratio above which a reply is
	// considered a repeat of a recent outbound turn.
	repetitionLimit = 0.8

	// repetitionLookback is how many recent outbound turns are compared.
	repetitionLookback = 3

	// minWordLen filters trivial words out of overlap and parroting.
	overlapWordLen = 4
	parrotWordLen  = 5
)

// Sanitize runs the full check chain over a candidate reply. A nil
// return means the reply is safe to send; otherwise the error is a
// *BlockedError naming the failed check.
func Sanitize(reply string, history []Turn) error {
	if err := checkForbiddenPatterns(reply); err != nil {
		return err
	}
	if err := checkParroting(reply, history); err != nil {
		return err
	}
	if err := checkRepetition(reply, history); err != nil {
		return err
	}
	return checkDates(reply, history)
}

func checkForbiddenPatterns(reply string) error {
	for _, fp := range forbiddenPatterns {
		if fp.Pattern.MatchString(reply) {
			return &BlockedError{Check: "forbidden_pattern", Reason: fp.Name}
		}
	}
	return nil
}

// checkParroting rejects replies that echo a customer word right next
// to an acknowledgement marker ("noted, Ferrari!").
func checkParroting(reply string, history []Turn) error {
	lower := strings.ToLower(reply)

	customerWords := make(map[string]bool)
	for _, turn := range history {
		if turn.Direction != DirectionInbound {
			continue
		}
		for _, w := range splitWords(turn.Text) {
			if len(w) >= parrotWordLen {
				customerWords[w] = true
			}
		}
	}
	if len(customerWords) == 0 {
		return nil
	}

	for _, marker := range acknowledgementMarkers {
		idx := strings.Index(lower, marker)
		for idx >= 0 {
			start := idx - parrotWindow
			if start < 0 {
				start = 0
			}
			end := idx + len(marker) + parrotWindow
			if end > len(lower) {
				end = len(lower)
			}
			for _, w := range splitWords(lower[start:end]) {
				if customerWords[w] {
					return &BlockedError{Check: "parroting", Reason: "customer word near acknowledgement: " + w}
				}
			}
			next := strings.Index(lower[idx+1:], marker)
			if next < 0 {
				break
			}
			idx += 1 + next
		}
	}
	return nil
}

// checkRepetition rejects replies that mostly restate one of the last
// few outbound turns. Overlap ratio = matched reference words over
// total reference words, counting words of four or more characters.
func checkRepetition(reply string, history []Turn) error {
	replyWords := make(map[string]bool)
	for _, w := range splitWords(reply) {
		if len(w) >= overlapWordLen {
			replyWords[w] = true
		}
	}

	recent := lastOutbound(history, repetitionLookback)
	for _, turn := range recent {
		var refTotal, matched int
		for _, w := range splitWords(turn.Text) {
			if len(w) < overlapWordLen {
				continue
			}
			refTotal++
			if replyWords[w] {
				matched++
			}
		}
		if refTotal == 0 {
			continue
		}
		if float64(matched)/float64(refTotal) > repetitionLimit {
			return &BlockedError{Check: "repetition", Reason: "reply repeats a recent message"}
		}
	}
	return nil
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`),
	regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(st|nd|rd|th)?(,?\s+\d{4})?\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}(st|nd|rd|th)?\s+(of\s+)?(january|february|march|april|may|june|july|august|september|october|november|december)\b`),
}

// checkDates rejects replies that state a calendar date absent from the
// history; models invent appointment dates with confidence. Both sides
// are whitespace-normalized and case-folded before comparison.
func checkDates(reply string, history []Turn) error {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString(turn.Text)
		sb.WriteString(" ")
	}
	haystack := normalize(sb.String())

	for _, re := range datePatterns {
		for _, match := range re.FindAllString(reply, -1) {
			if !strings.Contains(haystack, normalize(match)) {
				return &BlockedError{Check: "hallucinated_date", Reason: "date not present in history: " + match}
			}
		}
	}
	return nil
}

func lastOutbound(history []Turn, n int) []Turn {
	var out []Turn
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Direction == DirectionOutbound {
			out = append(out, history[i])
		}
	}
	return out
}

var wordSplitRe = regexp.MustCompile(`[^a-z0-9]+`)

func splitWords(text string) []string {
	return wordSplitRe.Split(strings.ToLower(text), -1)
}

var spaceRe = regexp.MustCompile(`\s+`)

func normalize(text string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}
