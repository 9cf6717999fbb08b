package convo

import (
	"context"
	"fmt"
	"strings"

	"github.com/frontdeskai/switchboard/pkg/provider/llm"
	"github.com/frontdeskai/switchboard/pkg/types"
)

// Intent is the coarse routing decision for one caller utterance.
type Intent string

const (
	IntentLeadCapture Intent = "LEAD_CAPTURE"
	IntentFAQ         Intent = "FAQ"
	IntentEndCall     Intent = "END_CALL"
	IntentOther       Intent = "OTHER"
)

const intentPromptFmt = `You route phone calls for %s, a creative agency offering: %s.
Classify the caller's message into exactly one label:
- LEAD_CAPTURE: pricing, quotes, booking, starting a project, or anything urgent
- FAQ: informational questions about the business
- END_CALL: goodbyes and wrap-up language
- OTHER: anything else
Reply with only the label.`

// classifyIntent runs one LLM call over the transcript with business-specific
// cues. Unparseable output falls back to OTHER; classification failures are
// generation errors handled by the caller.
func (o *Orchestrator) classifyIntent(ctx context.Context, biz types.Business, transcript string) (Intent, error) {
	system := fmt.Sprintf(intentPromptFmt, biz.Name, strings.Join(biz.Services, ", "))

	reply, err := o.complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: transcript}},
		Temperature:  0,
		MaxTokens:    8,
	})
	if err != nil {
		return IntentOther, err
	}

	label := strings.ToUpper(strings.TrimSpace(reply))
	for _, in := range []Intent{IntentLeadCapture, IntentFAQ, IntentEndCall, IntentOther} {
		if strings.Contains(label, string(in)) {
			return in, nil
		}
	}
	return IntentOther, nil
}

// emergencyKeywords flag callers who need the shortened question flow.
// Detection is deliberately keyword-based so the emergency path never
// depends on a provider being up, and so it is re-derivable from history
// alone on every turn.
var emergencyKeywords = []string{
	"emergency", "urgent", "urgently", "asap", "as soon as possible",
	"right away", "immediately", "flooding", "flooded", "burst",
	"fire", "no power", "website is down", "site is down", "hacked",
}

// isEmergencyText reports whether one utterance contains emergency language.
func isEmergencyText(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range emergencyKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// historyShowsEmergency re-derives the emergency flag from caller turns, so
// the question subset stays stable across the whole flow without storing a
// parallel mutable flag.
func historyShowsEmergency(history []types.ConversationTurn, transcript string) bool {
	if isEmergencyText(transcript) {
		return true
	}
	for _, turn := range history {
		if turn.Role == types.RoleCaller && isEmergencyText(turn.Text) {
			return true
		}
	}
	return false
}
