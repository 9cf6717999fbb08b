package convo

import (
	"strings"
	"sync"
)

// rotation hands out entries from a fixed list round-robin. Per-process
// rotation keeps replies varied for callers while staying deterministic
// under test.
type rotation struct {
	mu      sync.Mutex
	next    int
	phrases []string
}

func newRotation(phrases []string) *rotation {
	return &rotation{phrases: phrases}
}

func (r *rotation) pick() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.phrases[r.next%len(r.phrases)]
	r.next++
	return p
}

// Acknowledgment prefixes for the first lead question vs. follow-ups.
var (
	firstQuestionAcks = []string{
		"Great, I can help with that. ",
		"Absolutely, let's get a few details. ",
		"Happy to help. ",
	}
	followupAcks = []string{
		"Got it. ",
		"Perfect, thanks. ",
		"Okay. ",
		"Thanks. ",
	}
	faqAcks = []string{
		"Good question — ",
		"Sure — ",
		"Happy to answer that. ",
	}
)

// Recovery phrases by failure category. The caller never hears dead air or
// a raw error.
var (
	recoveryNetwork = []string{
		"Sorry, the line hiccuped for a second — could you say that again?",
		"Apologies, I lost you for a moment. What was that?",
	}
	recoveryStorage = []string{
		"Bear with me one moment — could you repeat that?",
		"Sorry about that. One more time, please?",
	}
	recoveryGeneration = []string{
		"Sorry, could you rephrase that for me?",
		"I didn't quite follow — could you say that another way?",
	}
	recoveryUnknown = []string{
		"Sorry, I missed that. Could you say it again?",
		"Apologies — one more time, please?",
	}
)

// faqOfferMarker is appended when the knowledge base comes up empty. Phase
// continuity watches for it: an agreement reply enters lead capture.
const faqOfferMarker = "Would you like to leave your details so someone from the team can get back to you?"

// closingLines end a call on a farewell intent.
var closingLines = []string{
	"Thanks so much for calling. Have a great day!",
	"Thanks for calling — goodbye!",
}

// isAgreement reports whether a short caller reply accepts an offer.
func isAgreement(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, w := range []string{"yes", "yeah", "yep", "sure", "okay", "ok", "please", "sounds good", "that works", "go ahead"} {
		if t == w || strings.HasPrefix(t, w+" ") || strings.HasPrefix(t, w+",") || strings.HasPrefix(t, w+".") {
			return true
		}
	}
	return false
}

// isDecline reports whether a caller is turning down an offer.
func isDecline(text string) bool {
	t := strings.ToLower(text)
	for _, phrase := range []string{"no thanks", "no thank you", "not right now", "not now", "maybe later", "never mind", "nevermind", "i'm good", "im good", "no, "} {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return t == "no" || t == "no."
}

// cannedReplies are keyword-keyed fallbacks for when reply generation is
// exhausted. Checked in order.
var cannedReplies = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"price", "cost", "quote", "how much", "rate"},
		reply:    "Pricing depends on the project scope. I can take your details and have someone follow up with a quote.",
	},
	{
		keywords: []string{"hour", "open", "when", "schedule"},
		reply:    "Someone from the team can confirm availability with you directly. Can I take your details?",
	},
	{
		keywords: []string{"project", "status", "update"},
		reply:    "I can have your project lead give you a proper update. Can I take your name and number?",
	},
}

// defaultCannedReply is the last resort when no keyword matches.
const defaultCannedReply = "I want to make sure you get an accurate answer. Can I take your details so the right person can call you back?"

// cannedReplyFor picks the canned fallback matching the caller's words.
func cannedReplyFor(transcript string) string {
	t := strings.ToLower(transcript)
	for _, c := range cannedReplies {
		for _, kw := range c.keywords {
			if strings.Contains(t, kw) {
				return c.reply
			}
		}
	}
	return defaultCannedReply
}
