// Package types defines the shared types used across all Switchboard packages.
//
// These types form the lingua franca between the gateway, the conversation
// orchestrator, the lead engine, and the storage layers. Each package defines
// its own domain types; cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// Phase is a call's current conversation stage.
type Phase string

const (
	// PhaseGreeting is the initial stage before any intent has been detected.
	PhaseGreeting Phase = "greeting"

	// PhaseQualification means the call is inside the lead-capture question flow.
	PhaseQualification Phase = "qualification"

	// PhaseProjectInquiry means the caller is asking about an existing project.
	PhaseProjectInquiry Phase = "project_inquiry"

	// PhaseEscalation means the call has been flagged for human follow-up.
	PhaseEscalation Phase = "escalation"
)

// IsValid reports whether p is a recognised phase.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseGreeting, PhaseQualification, PhaseProjectInquiry, PhaseEscalation:
		return true
	}
	return false
}

// NextAction tells the session bridge what to do after speaking a reply.
type NextAction string

const (
	// ActionContinue keeps listening for the next caller utterance.
	ActionContinue NextAction = "CONTINUE"

	// ActionTransfer hands the call to a human.
	ActionTransfer NextAction = "TRANSFER"

	// ActionHangup ends the call after the reply has been played.
	ActionHangup NextAction = "HANGUP"

	// ActionVoicemail routes the caller to voicemail.
	ActionVoicemail NextAction = "VOICEMAIL"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// Call is the per-connection record owned exclusively by its session bridge.
// It is created when the media connection is accepted and removed from the
// registry when the connection closes.
type Call struct {
	// ID is the gateway-assigned stream identifier. Until the first protocol
	// frame arrives this holds a temporary key.
	ID string

	// FromNumber is the caller's phone number in E.164 form.
	FromNumber string

	// ToNumber is the dialled business number.
	ToNumber string

	// BusinessID identifies which business configuration governs this call.
	BusinessID string

	// StartTime is when the media connection was accepted.
	StartTime time.Time

	// Phase is the current conversation stage. Always reconstructable from
	// the turn history plus the lead question list; no parallel mutable flags
	// may diverge from that derivation.
	Phase Phase

	// IsActive is false once the bridge has entered its closed state.
	IsActive bool
}

// ConversationTurn is one utterance in a call's append-only history.
// History is persisted to the session cache after every turn so it survives
// short process restarts.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// AnswerFormat constrains what a valid answer to a lead question looks like.
type AnswerFormat string

const (
	// FormatText accepts any non-empty answer.
	FormatText AnswerFormat = "TEXT"

	// FormatEmail requires an answer containing a plausible email address.
	FormatEmail AnswerFormat = "EMAIL"

	// FormatPhone requires an answer containing a plausible phone number.
	FormatPhone AnswerFormat = "PHONE"
)

// Business is the per-tenant configuration row governing a call: greeting
// text, completion messages, and the cues fed to intent classification.
type Business struct {
	ID          string
	Name        string
	PhoneNumber string

	// WelcomeMessage is spoken for brand-new conversations with no
	// detectable intent. Empty means a generic greeting.
	WelcomeMessage string

	// CompletionMessage overrides the stock lead-capture closing line.
	CompletionMessage string

	// TransferNumber is where escalated calls are handed off.
	TransferNumber string

	// Services lists what the agency offers, used as classification cues
	// and persona grounding.
	Services []string

	// PersonaPrompt is prepended to every generation call for this business.
	PersonaPrompt string
}

// LeadQuestion is one entry in a business's immutable qualification question
// list, loaded once per call. Order defines "next unanswered question".
type LeadQuestion struct {
	// ID uniquely identifies the question within its business.
	ID string

	// Order is the ascending ask position.
	Order int

	// Text is the question exactly as the agent speaks it. Answer derivation
	// matches agent turns against this text, so it must be stable.
	Text string

	// ExpectedFormat is one of the built-in AnswerFormat values, or a
	// caller-supplied regular expression when none of them match.
	ExpectedFormat string

	// IsRequired marks questions that may not be skipped.
	IsRequired bool

	// MapsToLeadField names the Lead field this answer populates
	// (e.g. "contact_name", "contact_email", "contact_phone", "notes").
	MapsToLeadField string

	// IsEssentialForEmergency selects this question into the shortened
	// emergency flow.
	IsEssentialForEmergency bool
}

// LeadPriority ranks a captured lead for follow-up.
type LeadPriority string

const (
	PriorityNormal LeadPriority = "NORMAL"
	PriorityUrgent LeadPriority = "URGENT"
)

// Lead is the structured record of a prospective client captured at
// lead-flow completion. It is created exactly once per completed flow;
// later mutation happens only through the external admin surface.
type Lead struct {
	ID           string
	BusinessID   string
	CapturedData map[string]string
	Transcript   string
	Status       string
	Priority     LeadPriority
	ContactName  string
	ContactEmail string
	ContactPhone string
	Notes        string
	CreatedAt    time.Time
}

// ProjectRecord is a read-mostly row synced one-way from an external
// project-management tool. Records that have never synced
// (LastSyncedAt zero) are invisible to status lookups.
type ProjectRecord struct {
	ID           string
	BusinessID   string
	Name         string
	Status       string
	Phase        string
	DueDate      time.Time
	LastSyncedAt time.Time
}

// CallRecord is the completion record written exactly once when a call ends.
type CallRecord struct {
	CallID     string
	BusinessID string
	FromNumber string
	ToNumber   string
	StartedAt  time.Time
	EndedAt    time.Time
	TurnCount  int
	FinalPhase Phase
}
