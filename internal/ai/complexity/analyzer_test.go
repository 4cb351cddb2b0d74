package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

func userMsg(text string) []providers.Message {
	return []providers.Message{{Role: providers.RoleUser, Content: text}}
}

func TestAnalyze_SimpleGreetingIsLow(t *testing.T) {
	a := Analyze(userMsg("Hello, how are you?"), nil)

	assert.Equal(t, LevelLow, a.Level)
	assert.Less(t, a.Score, 25)
}

func TestAnalyze_ReasoningRequestIsHigh(t *testing.T) {
	msg := "Please analyze and compare the mainland and free zone options, " +
		"with a detailed evaluation and your recommendations."
	a := Analyze(userMsg(msg), nil)

	assert.Equal(t, LevelHigh, a.Level)
	assert.GreaterOrEqual(t, a.Score, 50)
	assert.Contains(t, a.Factors, "reasoning")
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	msgs := userMsg("Why is the license renewal taking so long? This is urgent.")
	hints := &Hints{ConversationLength: 12, LeadStage: "negotiation"}

	first := Analyze(msgs, hints)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Analyze(msgs, hints))
	}
}

func TestAnalyze_HintsAddScore(t *testing.T) {
	msgs := userMsg("Can you explain the visa process?")

	plain := Analyze(msgs, nil)
	hinted := Analyze(msgs, &Hints{
		ConversationLength: 15,
		RequiresReasoning:  true,
		LeadStage:          "closing",
	})

	assert.Equal(t, plain.Score+40, hinted.Score)
	assert.Contains(t, hinted.Factors, "long_conversation")
	assert.Contains(t, hinted.Factors, "explicit_reasoning")
	assert.Contains(t, hinted.Factors, "sensitive_stage")
}

func TestAnalyze_ScoreClamped(t *testing.T) {
	msg := "Please analyze, compare, evaluate and explain why the contract, visa, " +
		"license, compliance, regulation, tax and legal liability questions matter. " +
		"First review the sponsorship, then the trade license, finally send detailed " +
		"recommendations with pros and cons of the best option. This is urgent, " +
		"respond immediately. What? How? When? Where does it all land in the end???" +
		"Also include everything about fees, timelines, office space, banking, and shareholding."
	a := Analyze(userMsg(msg), &Hints{ConversationLength: 20, RequiresReasoning: true})

	assert.Equal(t, 100, a.Score)
	assert.Equal(t, LevelHigh, a.Level)
}

func TestRequiresPremium(t *testing.T) {
	tests := []struct {
		name     string
		analysis Analysis
		expected bool
	}{
		{"high level", Analysis{Level: LevelHigh, Score: 60}, true},
		{"medium below 50", Analysis{Level: LevelMedium, Score: 30}, false},
		{"medium at 50", Analysis{Level: LevelMedium, Score: 50}, true},
		{"low", Analysis{Level: LevelLow, Score: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RequiresPremium(tt.analysis))
		})
	}
}

func TestAnalyze_OnlyUserMessagesScored(t *testing.T) {
	withAssistant := []providers.Message{
		{Role: providers.RoleUser, Content: "Hello"},
		{Role: providers.RoleAssistant, Content: "Please analyze and compare and evaluate and explain why"},
	}
	a := Analyze(withAssistant, nil)

	assert.Equal(t, LevelLow, a.Level)
	assert.NotContains(t, a.Factors, "reasoning")
}
