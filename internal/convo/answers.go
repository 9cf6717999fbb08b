package convo

import (
	"strings"

	"github.com/frontdeskai/switchboard/pkg/types"
)

// deriveAnswers recomputes the answers map from history: an agent turn whose
// text contains a known question's text, paired with the following caller
// turn, yields that question's answer. The derivation is stateless and
// idempotent; it is never stored separately, so it can never diverge from
// the history it is computed from. Re-asked questions naturally take the
// latest answer because later pairs overwrite earlier ones.
func deriveAnswers(history []types.ConversationTurn, questions []types.LeadQuestion) map[string]string {
	answers := make(map[string]string)
	for i, turn := range history {
		if turn.Role != types.RoleAgent {
			continue
		}
		q, ok := questionForTurn(turn.Text, questions)
		if !ok {
			continue
		}
		if i+1 < len(history) && history[i+1].Role == types.RoleCaller {
			answers[q.ID] = strings.TrimSpace(history[i+1].Text)
		}
	}
	return answers
}

// questionForTurn matches an agent utterance to the question it asked.
// Prompts may carry acknowledgment or clarifying prefixes, so containment
// of the stable question text is the match criterion.
func questionForTurn(agentText string, questions []types.LeadQuestion) (types.LeadQuestion, bool) {
	for _, q := range questions {
		if q.Text != "" && strings.Contains(agentText, q.Text) {
			return q, true
		}
	}
	return types.LeadQuestion{}, false
}

// countQuestionTurns counts agent turns that asked a configured question,
// for the phase-continuity heuristic.
func countQuestionTurns(history []types.ConversationTurn, questions []types.LeadQuestion) int {
	n := 0
	for _, turn := range history {
		if turn.Role != types.RoleAgent {
			continue
		}
		if _, ok := questionForTurn(turn.Text, questions); ok {
			n++
		}
	}
	return n
}

// lastAgentTurn returns the most recent agent utterance, or "".
func lastAgentTurn(history []types.ConversationTurn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleAgent {
			return history[i].Text
		}
	}
	return ""
}

// transcriptText flattens history into a "role: text" transcript for lead
// records.
func transcriptText(history []types.ConversationTurn) string {
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	return b.String()
}
