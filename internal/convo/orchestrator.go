// Package convo is the conversation orchestrator: it turns one caller
// transcript plus the call's history into the agent's next reply, the next
// conversation phase, and what the bridge should do after speaking.
package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frontdeskai/switchboard/internal/kb"
	"github.com/frontdeskai/switchboard/internal/lead"
	"github.com/frontdeskai/switchboard/internal/resilience"
	"github.com/frontdeskai/switchboard/internal/sessioncache"
	"github.com/frontdeskai/switchboard/pkg/provider/llm"
	"github.com/frontdeskai/switchboard/pkg/types"
)

// generationAttempts bounds reply-generation retries before the canned
// fallback takes over. A reply is never empty.
const generationAttempts = 3

// continuityThreshold is how many question turns in history force the
// qualification phase regardless of classified intent.
const continuityThreshold = 2

// Error categories for top-level recovery. Each maps to its own rotating
// phrase set so the caller hears something context-appropriate.
var (
	errStorage    = errors.New("storage failure")
	errGeneration = errors.New("generation failure")
)

// Result is the orchestrator's answer for one turn.
type Result struct {
	ReplyText  string
	NextPhase  types.Phase
	NextAction types.NextAction
}

// Store is the persistence surface the orchestrator needs.
type Store interface {
	Business(ctx context.Context, id string) (types.Business, error)
	LeadQuestions(ctx context.Context, businessID string) ([]types.LeadQuestion, error)
	CreateLead(ctx context.Context, lead types.Lead) error
	ProjectRecords(ctx context.Context, businessID string) ([]types.ProjectRecord, error)
	RefreshProjectRecord(ctx context.Context, record types.ProjectRecord) error
}

// ProjectSource is the external PM-tool integration. Active reports whether
// any integration is configured; when false, status questions get an honest
// unavailability answer and no lookup is attempted.
type ProjectSource interface {
	Active() bool
	FetchProject(ctx context.Context, projectID string) (types.ProjectRecord, error)
}

// Notifier is told about captured leads so escalation (email, Slack, pager)
// can happen outside the call path. Implementations must not block.
type Notifier interface {
	LeadCaptured(ctx context.Context, lead types.Lead)
}

// Orchestrator routes caller turns. Safe for concurrent use across calls;
// each call's turns arrive sequentially from its own bridge.
type Orchestrator struct {
	store    Store
	cache    sessioncache.Cache
	kb       kb.Searcher
	llms     *resilience.FallbackGroup[llm.Provider]
	projects ProjectSource
	notifier Notifier

	firstAcks    *rotation
	followupAcks *rotation
	faqAcks      *rotation
	closings     *rotation

	recoverStorage    *rotation
	recoverGeneration *rotation
	recoverNetwork    *rotation
	recoverUnknown    *rotation
}

// Options carries the optional collaborators.
type Options struct {
	// Projects is the PM-tool integration. Nil means no integration.
	Projects ProjectSource

	// Notifier receives captured leads. Nil disables notifications.
	Notifier Notifier

	// LLMBreaker configures the per-provider breakers on the generation
	// ladder.
	LLMBreaker resilience.BreakerConfig
}

// New creates an orchestrator. providers is the generation ladder in
// priority order; at least one is required.
func New(store Store, cache sessioncache.Cache, searcher kb.Searcher, providers []llm.Provider, opts Options) *Orchestrator {
	if opts.LLMBreaker.FailureThreshold == 0 {
		opts.LLMBreaker = resilience.BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			ProbeQuota:       2,
		}
	}
	group := resilience.NewFallbackGroup[llm.Provider](opts.LLMBreaker)
	for _, p := range providers {
		group.Add(p.Name(), p)
	}

	return &Orchestrator{
		store:    store,
		cache:    cache,
		kb:       searcher,
		llms:     group,
		projects: opts.Projects,
		notifier: opts.Notifier,

		firstAcks:    newRotation(firstQuestionAcks),
		followupAcks: newRotation(followupAcks),
		faqAcks:      newRotation(faqAcks),
		closings:     newRotation(closingLines),

		recoverStorage:    newRotation(recoveryStorage),
		recoverGeneration: newRotation(recoveryGeneration),
		recoverNetwork:    newRotation(recoveryNetwork),
		recoverUnknown:    newRotation(recoveryUnknown),
	}
}

// HandleTurn processes one caller utterance. It always produces a speakable
// reply: internal failures are classified and mapped to a rotating recovery
// phrase with the phase preserved, so lead-capture progress is never lost.
// The updated history is persisted to the session cache before returning.
func (o *Orchestrator) HandleTurn(ctx context.Context, businessID, callID, transcript string, history []types.ConversationTurn, phase types.Phase) Result {
	if !phase.IsValid() {
		phase = types.PhaseGreeting
	}

	result, err := o.route(ctx, businessID, callID, transcript, history, phase)
	if err != nil {
		result = Result{
			ReplyText:  o.recoveryPhrase(err),
			NextPhase:  phase,
			NextAction: types.ActionContinue,
		}
		slog.Error("turn failed, substituting recovery phrase",
			"call_id", callID, "phase", phase, "error", err)
	}

	o.persistHistory(ctx, callID, transcript, result)
	return result
}

// route runs the decision ladder for one turn.
func (o *Orchestrator) route(ctx context.Context, businessID, callID, transcript string, history []types.ConversationTurn, phase types.Phase) (Result, error) {
	biz, err := o.store.Business(ctx, businessID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: loading business: %w", errStorage, err)
	}

	// Phase continuity: once in the question flow, stay there.
	if o.inLeadFlow(ctx, biz, transcript, history, phase) {
		return o.handleLeadCapture(ctx, biz, callID, transcript, history)
	}

	// Status questions short-circuit classification: the phrasing is
	// unambiguous and the lookup is deterministic.
	if isStatusQuery(transcript) {
		return o.handleStatus(ctx, biz, transcript, phase)
	}

	intent, err := o.classifyIntent(ctx, biz, transcript)
	if err != nil {
		return Result{}, err
	}

	switch intent {
	case IntentLeadCapture:
		if o.leadCaptured(ctx, biz, transcript, history) {
			return o.handleOther(ctx, biz, transcript, history, phase)
		}
		return o.handleLeadCapture(ctx, biz, callID, transcript, history)
	case IntentFAQ:
		return o.handleFAQ(ctx, biz, transcript, phase)
	case IntentEndCall:
		return Result{
			ReplyText:  o.closings.pick(),
			NextPhase:  phase,
			NextAction: types.ActionHangup,
		}, nil
	default:
		return o.handleOther(ctx, biz, transcript, history, phase)
	}
}

// inLeadFlow applies the phase-continuity rules: already qualifying, enough
// question turns in history, or an accepted lead-capture offer. A completed
// flow never re-enters: the lead exists, so later turns route normally.
func (o *Orchestrator) inLeadFlow(ctx context.Context, biz types.Business, transcript string, history []types.ConversationTurn, phase types.Phase) bool {
	if o.leadCaptured(ctx, biz, transcript, history) {
		return false
	}
	if phase == types.PhaseQualification {
		return true
	}
	if questions, err := o.store.LeadQuestions(ctx, biz.ID); err == nil {
		if countQuestionTurns(history, questions) >= continuityThreshold {
			return true
		}
	}
	last := lastAgentTurn(history)
	if strings.Contains(last, faqOfferMarker) && isAgreement(transcript) {
		return true
	}
	return false
}

// leadCaptured reports whether the history already holds a completed
// question flow. Completion is derived from history alone, the same way the
// phase is: the answers in history satisfy every question in the set the
// flow was run with. Once true, the continuity rules must not pull the
// caller back into qualification, so the lead is created exactly once.
func (o *Orchestrator) leadCaptured(ctx context.Context, biz types.Business, transcript string, history []types.ConversationTurn) bool {
	questions, err := o.store.LeadQuestions(ctx, biz.ID)
	if err != nil {
		return false
	}
	if historyShowsEmergency(history, transcript) || len(questions) == 0 {
		questions = lead.EmergencySubset(questions)
	}
	if countQuestionTurns(history, questions) == 0 {
		return false
	}
	answers := deriveAnswers(history, questions)
	return lead.NextPrompt(questions, answers) == nil
}

// handleOther covers utterances with no clear intent: declined offers,
// brand-new conversations, and persona small talk.
func (o *Orchestrator) handleOther(ctx context.Context, biz types.Business, transcript string, history []types.ConversationTurn, phase types.Phase) (Result, error) {
	if isDecline(transcript) {
		return Result{
			ReplyText:  "No problem at all. Is there anything else I can help you with?",
			NextPhase:  phase,
			NextAction: types.ActionContinue,
		}, nil
	}

	if len(history) == 0 {
		welcome := biz.WelcomeMessage
		if welcome == "" {
			welcome = fmt.Sprintf("Thanks for calling %s! How can I help you today?", biz.Name)
		}
		return Result{
			ReplyText:  welcome,
			NextPhase:  types.PhaseGreeting,
			NextAction: types.ActionContinue,
		}, nil
	}

	persona := biz.PersonaPrompt
	if persona == "" {
		persona = fmt.Sprintf("You are the friendly phone receptionist for %s, a creative agency. Reply in one or two short spoken sentences.", biz.Name)
	}
	reply := o.generateReply(ctx, llm.CompletionRequest{
		SystemPrompt: persona,
		Messages:     historyMessages(history, transcript),
		Temperature:  0.7,
		MaxTokens:    120,
	}, transcript)

	return Result{
		ReplyText:  reply,
		NextPhase:  phase,
		NextAction: types.ActionContinue,
	}, nil
}

// generateReply produces non-empty reply text: up to generationAttempts
// passes over the provider ladder, then the keyword-keyed canned reply.
func (o *Orchestrator) generateReply(ctx context.Context, req llm.CompletionRequest, transcript string) string {
	reply, err := o.complete(ctx, req)
	if err == nil && reply != "" {
		return reply
	}
	slog.Warn("reply generation exhausted, using canned reply", "error", err)
	return cannedReplyFor(transcript)
}

// complete runs one completion over the provider ladder with bounded
// retries. Empty responses count as failures.
func (o *Orchestrator) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt < generationAttempts; attempt++ {
		reply, err := resilience.ExecuteWithResult(o.llms, func(name string, p llm.Provider) (string, error) {
			text, err := p.Complete(ctx, req)
			if err != nil {
				return "", err
			}
			if text == "" {
				return "", fmt.Errorf("convo: provider %s returned empty completion", name)
			}
			return text, nil
		})
		if err == nil {
			return reply, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %w", errGeneration, lastErr)
}

// recoveryPhrase maps a classified failure to its rotating phrase set.
func (o *Orchestrator) recoveryPhrase(err error) string {
	switch {
	case errors.Is(err, errStorage):
		return o.recoverStorage.pick()
	case errors.Is(err, errGeneration):
		return o.recoverGeneration.pick()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return o.recoverNetwork.pick()
	default:
		return o.recoverUnknown.pick()
	}
}

// persistHistory appends the caller turn and the agent reply and saves to
// the session cache. A failed save costs only restart durability.
func (o *Orchestrator) persistHistory(ctx context.Context, callID, transcript string, result Result) {
	now := time.Now()
	st, _, err := o.cache.Load(ctx, callID)
	if err != nil {
		slog.Warn("loading session state failed", "call_id", callID, "error", err)
	}
	st.History = append(st.History,
		types.ConversationTurn{Role: types.RoleCaller, Text: transcript, Timestamp: now},
		types.ConversationTurn{Role: types.RoleAgent, Text: result.ReplyText, Timestamp: now},
	)
	st.Phase = result.NextPhase
	if err := o.cache.Save(ctx, callID, st); err != nil {
		slog.Warn("persisting session state failed", "call_id", callID, "error", err)
	}
}

// historyMessages converts history plus the current transcript into LLM
// chat messages.
func historyMessages(history []types.ConversationTurn, transcript string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == types.RoleAgent {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: turn.Text})
	}
	return append(msgs, llm.Message{Role: "user", Content: transcript})
}
