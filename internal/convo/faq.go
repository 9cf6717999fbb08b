package convo

import (
	"context"
	"fmt"
	"strings"

	"github.com/frontdeskai/switchboard/pkg/provider/llm"
	"github.com/frontdeskai/switchboard/pkg/types"
)

// faqTopK is how many knowledge-base snippets ground an FAQ answer.
const faqTopK = 3

const faqPromptFmt = `You are the phone receptionist for %s. Answer the caller's question in one or
two short spoken sentences, using ONLY the facts below. Do not invent details.

Facts:
%s`

// handleFAQ answers an informational question from the knowledge base. With
// grounded snippets, the reply is an acknowledgment prefix plus a generated
// answer over those snippets; with none, an honest no-answer plus a
// lead-capture offer. The phase never changes on the FAQ path.
func (o *Orchestrator) handleFAQ(ctx context.Context, biz types.Business, transcript string, phase types.Phase) (Result, error) {
	snippets, err := o.kb.Search(ctx, biz.ID, transcript, faqTopK)
	if err != nil {
		return Result{}, fmt.Errorf("%w: knowledge base search: %w", errStorage, err)
	}

	if len(snippets) == 0 {
		return Result{
			ReplyText:  "That's not something I have an answer for, I'm afraid. " + faqOfferMarker,
			NextPhase:  phase,
			NextAction: types.ActionContinue,
		}, nil
	}

	var facts strings.Builder
	for _, s := range snippets {
		facts.WriteString("- ")
		facts.WriteString(s.Content)
		facts.WriteString("\n")
	}

	answer := o.generateReply(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(faqPromptFmt, biz.Name, facts.String()),
		Messages:     []llm.Message{{Role: "user", Content: transcript}},
		Temperature:  0.4,
		MaxTokens:    120,
	}, transcript)

	return Result{
		ReplyText:  o.faqAcks.pick() + answer,
		NextPhase:  phase,
		NextAction: types.ActionContinue,
	}, nil
}
