package convo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frontdeskai/switchboard/internal/lead"
	"github.com/frontdeskai/switchboard/pkg/types"
)

// handleLeadCapture advances the qualification flow by one turn: derive the
// answers from history, ask the next missing or invalid question, or, when
// none remain, persist the lead and speak a completion message.
func (o *Orchestrator) handleLeadCapture(ctx context.Context, biz types.Business, callID, transcript string, history []types.ConversationTurn) (Result, error) {
	questions, err := o.questionsForCall(ctx, biz, history, transcript)
	if err != nil {
		return Result{}, err
	}
	emergency := historyShowsEmergency(history, transcript)

	// The current transcript is part of the answer material: it answers
	// whatever the agent just asked.
	full := append(append([]types.ConversationTurn{}, history...), types.ConversationTurn{
		Role: types.RoleCaller, Text: transcript, Timestamp: time.Now(),
	})
	answers := deriveAnswers(full, questions)

	prompt := lead.NextPrompt(questions, answers)
	if prompt != nil {
		reply := prompt.Text
		if !prompt.Reasked {
			if countQuestionTurns(history, questions) == 0 {
				reply = o.firstAcks.pick() + reply
			} else {
				reply = o.followupAcks.pick() + reply
			}
		}
		return Result{
			ReplyText:  reply,
			NextPhase:  types.PhaseQualification,
			NextAction: types.ActionContinue,
		}, nil
	}

	return o.completeLead(ctx, biz, callID, full, questions, answers, emergency)
}

// questionsForCall selects the question list for this call: the emergency
// subset when emergency language is present, otherwise the business's full
// configured list.
func (o *Orchestrator) questionsForCall(ctx context.Context, biz types.Business, history []types.ConversationTurn, transcript string) ([]types.LeadQuestion, error) {
	questions, err := o.store.LeadQuestions(ctx, biz.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading lead questions: %w", errStorage, err)
	}
	if historyShowsEmergency(history, transcript) {
		return lead.EmergencySubset(questions), nil
	}
	if len(questions) == 0 {
		// A business with no configured questions still captures contact
		// basics rather than dead-ending the caller.
		return lead.EmergencySubset(nil), nil
	}
	return questions, nil
}

// completeLead persists the captured lead exactly once and returns the
// completion message.
func (o *Orchestrator) completeLead(ctx context.Context, biz types.Business, callID string, history []types.ConversationTurn, questions []types.LeadQuestion, answers map[string]string, emergency bool) (Result, error) {
	l := types.Lead{
		ID:           uuid.NewString(),
		BusinessID:   biz.ID,
		CapturedData: answers,
		Transcript:   transcriptText(history),
		Status:       "new",
		Priority:     types.PriorityNormal,
		CreatedAt:    time.Now(),
	}
	if emergency {
		l.Priority = types.PriorityUrgent
	}

	var notes []string
	for _, q := range questions {
		answer := answers[q.ID]
		if answer == "" {
			continue
		}
		switch q.MapsToLeadField {
		case "contact_name":
			l.ContactName = answer
		case "contact_email":
			l.ContactEmail = answer
		case "contact_phone":
			l.ContactPhone = answer
		case "notes", "":
			notes = append(notes, answer)
		}
	}
	l.Notes = strings.Join(notes, "; ")

	if err := o.store.CreateLead(ctx, l); err != nil {
		return Result{}, fmt.Errorf("%w: persisting lead: %w", errStorage, err)
	}
	if o.notifier != nil {
		o.notifier.LeadCaptured(ctx, l)
	}

	return Result{
		ReplyText:  completionMessage(biz, emergency),
		NextPhase:  completionPhase(emergency),
		NextAction: completionAction(biz, emergency),
	}, nil
}

func completionMessage(biz types.Business, emergency bool) string {
	if emergency {
		return "I've flagged this as urgent and the team is being notified right now. Someone will call you back as soon as possible."
	}
	if biz.CompletionMessage != "" {
		return biz.CompletionMessage
	}
	return "That's everything I need. Someone from the team will be in touch shortly. Thanks for calling!"
}

func completionPhase(emergency bool) types.Phase {
	if emergency {
		return types.PhaseEscalation
	}
	return types.PhaseQualification
}

// completionAction picks where the call goes after an urgent lead is
// captured: a live transfer when the business has a number for it,
// voicemail otherwise. Routine leads keep the conversation open.
func completionAction(biz types.Business, emergency bool) types.NextAction {
	if !emergency {
		return types.ActionContinue
	}
	if biz.TransferNumber != "" {
		return types.ActionTransfer
	}
	return types.ActionVoicemail
}
