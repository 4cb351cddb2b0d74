package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockedCheck(t *testing.T, err error) string {
	t.Helper()
	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	return blocked.Check
}

func TestSanitize_CleanReplyPasses(t *testing.T) {
	history := []Turn{
		{Direction: DirectionInbound, Text: "I want to open a company in Dubai"},
		{Direction: DirectionOutbound, Text: "Great, what kind of business activity do you have in mind?"},
	}
	err := Sanitize("A mainland setup works well for trading activities. Would a call this week suit you?", history)
	assert.NoError(t, err)
}

func TestSanitize_ForbiddenPatterns(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"guaranteed", "Your approval is guaranteed with us."},
		{"hundred percent", "We are 100% certain this works."},
		{"no risk", "There is no risk at all in this package."},
		{"meta commentary", "Let me think about the best answer for you."},
		{"sign off", "Happy to help. Best regards, the team."},
		{"discount", "We can apply a discount if you sign today."},
		{"percent off", "Sign now for 20% off the setup fee."},
		{"long quote", `They told us "this is an extremely long quotation that keeps going and going well past the eighty character limit we allow"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Sanitize(tt.reply, nil)
			assert.Equal(t, "forbidden_pattern", blockedCheck(t, err))
		})
	}
}

func TestSanitize_ForbiddenRegardlessOfHistory(t *testing.T) {
	history := []Turn{{Direction: DirectionInbound, Text: "Is it guaranteed? 100%?"}}
	err := Sanitize("Yes, it is guaranteed.", history)
	assert.Equal(t, "forbidden_pattern", blockedCheck(t, err))
}

func TestSanitize_Parroting(t *testing.T) {
	history := []Turn{
		{Direction: DirectionInbound, Text: "I currently drive a Ferrari to the office"},
	}

	err := Sanitize("Noted, Ferrari owners often prefer our premium package.", history)
	assert.Equal(t, "parroting", blockedCheck(t, err))

	// The same word far from any acknowledgement marker is fine.
	err = Sanitize("Many of our clients park a Ferrari outside the office without trouble.", history)
	assert.NoError(t, err)
}

func TestSanitize_RepetitionOfRecentTurn(t *testing.T) {
	history := []Turn{
		{Direction: DirectionOutbound, Text: "Thanks for your interest in business setup services today"},
	}

	err := Sanitize("Thanks again for your interest in business setup services today", history)
	assert.Equal(t, "repetition", blockedCheck(t, err))

	err = Sanitize("Our consultants respond within one working day.", history)
	assert.NoError(t, err)
}

func TestSanitize_RepetitionOnlyChecksLastThreeOutboundTurns(t *testing.T) {
	old := Turn{Direction: DirectionOutbound, Text: "Please share your passport copy and visa details soon"}
	history := []Turn{
		old,
		{Direction: DirectionOutbound, Text: "One along"},
		{Direction: DirectionOutbound, Text: "Two along"},
		{Direction: DirectionOutbound, Text: "Three along"},
	}

	err := Sanitize("Please share your passport copy and visa details soon", history)
	assert.NoError(t, err)
}

func TestSanitize_HallucinatedDates(t *testing.T) {
	history := []Turn{
		{Direction: DirectionInbound, Text: "Can we meet on March 5, 2026?"},
	}

	// Date present in history passes.
	err := Sanitize("Confirmed, March 5, 2026 works for our consultant.", history)
	assert.NoError(t, err)

	// Invented date is rejected.
	err = Sanitize("Your appointment is confirmed for March 12.", history)
	assert.Equal(t, "hallucinated_date", blockedCheck(t, err))

	// Numeric formats are caught as well.
	err = Sanitize("Everything will be completed by 12/05/2026.", history)
	assert.Equal(t, "hallucinated_date", blockedCheck(t, err))
}

func TestSanitize_DateComparisonNormalizesWhitespace(t *testing.T) {
	history := []Turn{
		{Direction: DirectionInbound, Text: "I was told   March 5,    2026 is available"},
	}
	err := Sanitize("Yes, March 5, 2026 is still available.", history)
	assert.NoError(t, err)
}

func TestForbiddenPatternTable(t *testing.T) {
	// The block list is versioned data; every entry must carry a name
	// and a compiled pattern.
	for _, fp := range forbiddenPatterns {
		assert.NotEmpty(t, fp.Name)
		assert.NotNil(t, fp.Pattern)
	}
}
