package lead

import (
	"testing"

	"github.com/frontdeskai/switchboard/pkg/types"
)

func sampleQuestions() []types.LeadQuestion {
	return []types.LeadQuestion{
		{ID: "q-name", Order: 1, Text: "Can I get your name?", ExpectedFormat: "TEXT"},
		{ID: "q-email", Order: 2, Text: "What's your email?", ExpectedFormat: "EMAIL"},
		{ID: "q-phone", Order: 3, Text: "And a phone number?", ExpectedFormat: "PHONE"},
		{ID: "q-budget", Order: 4, Text: "What's your budget range?", ExpectedFormat: `\$?\d+`},
	}
}

func TestNextPromptWalksInOrder(t *testing.T) {
	qs := sampleQuestions()

	tests := []struct {
		name    string
		answers map[string]string
		wantID  string
		done    bool
		reasked bool
	}{
		{
			name:    "no answers asks first",
			answers: nil,
			wantID:  "q-name",
		},
		{
			name:    "first answered asks second",
			answers: map[string]string{"q-name": "Dana"},
			wantID:  "q-email",
		},
		{
			name: "gap in the middle is next",
			answers: map[string]string{
				"q-name":  "Dana",
				"q-phone": "555-0100 ext 2",
			},
			wantID: "q-email",
		},
		{
			name: "whitespace answer counts as missing",
			answers: map[string]string{
				"q-name": "   ",
			},
			wantID: "q-name",
		},
		{
			name: "invalid email is re-asked",
			answers: map[string]string{
				"q-name":  "Dana",
				"q-email": "just use my website",
			},
			wantID:  "q-email",
			reasked: true,
		},
		{
			name: "all valid means done",
			answers: map[string]string{
				"q-name":   "Dana Whitfield",
				"q-email":  "dana@meridian.example",
				"q-phone":  "(555) 010-0199",
				"q-budget": "$5000 or so",
			},
			done: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NextPrompt(qs, tc.answers)
			if tc.done {
				if p != nil {
					t.Fatalf("NextPrompt = %+v, want done", p)
				}
				return
			}
			if p == nil {
				t.Fatal("NextPrompt = done, want a prompt")
			}
			if p.QuestionID != tc.wantID {
				t.Errorf("QuestionID = %s, want %s", p.QuestionID, tc.wantID)
			}
			if p.Reasked != tc.reasked {
				t.Errorf("Reasked = %v, want %v", p.Reasked, tc.reasked)
			}
			if tc.reasked && p.Text == "What's your email?" {
				t.Error("re-asked prompt missing clarifying prefix")
			}
		})
	}
}

func TestNextPromptSortsUnorderedQuestions(t *testing.T) {
	// Shuffled slice, as a store without an ORDER BY could hand us.
	qs := []types.LeadQuestion{
		{ID: "q-budget", Order: 4, Text: "What's your budget range?", ExpectedFormat: "TEXT"},
		{ID: "q-name", Order: 1, Text: "Can I get your name?", ExpectedFormat: "TEXT"},
		{ID: "q-phone", Order: 3, Text: "And a phone number?", ExpectedFormat: "PHONE"},
		{ID: "q-email", Order: 2, Text: "What's your email?", ExpectedFormat: "EMAIL"},
	}

	p := NextPrompt(qs, nil)
	if p == nil || p.QuestionID != "q-name" {
		t.Fatalf("NextPrompt = %+v, want q-name first despite slice order", p)
	}

	p = NextPrompt(qs, map[string]string{"q-name": "Dana"})
	if p == nil || p.QuestionID != "q-email" {
		t.Fatalf("NextPrompt = %+v, want q-email second", p)
	}

	if qs[0].ID != "q-budget" {
		t.Fatal("input slice was reordered in place")
	}
}

func TestAnswerValid(t *testing.T) {
	tests := []struct {
		name   string
		format string
		answer string
		want   bool
	}{
		{"text accepts anything", "TEXT", "sure", true},
		{"empty format behaves as text", "", "sure", true},
		{"email embedded in sentence", "EMAIL", "it's dana@studio.example thanks", true},
		{"email missing domain", "EMAIL", "dana at studio", false},
		{"phone with punctuation", "PHONE", "+1 (555) 010-0199", true},
		{"phone spoken with spaces", "PHONE", "555 010 0199", true},
		{"phone too short", "PHONE", "call me", false},
		{"custom regex match", `\$?\d+`, "around $3000", true},
		{"custom regex no match", `\$?\d+`, "not sure yet", false},
		{"invalid regex accepts everything", `[unclosed`, "anything", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := types.LeadQuestion{ExpectedFormat: tc.format}
			if got := AnswerValid(q, tc.answer); got != tc.want {
				t.Errorf("AnswerValid(%q, %q) = %v, want %v", tc.format, tc.answer, got, tc.want)
			}
		})
	}
}

func TestEmergencySubsetPrefersFlagged(t *testing.T) {
	qs := sampleQuestions()
	qs[0].IsEssentialForEmergency = true
	qs[2].IsEssentialForEmergency = true

	got := EmergencySubset(qs)
	if len(got) != 2 {
		t.Fatalf("got %d questions, want 2", len(got))
	}
	if got[0].ID != "q-name" || got[1].ID != "q-phone" {
		t.Fatalf("subset = [%s %s], want [q-name q-phone]", got[0].ID, got[1].ID)
	}
}

func TestEmergencySubsetFallsBackToBuiltinSet(t *testing.T) {
	got := EmergencySubset(sampleQuestions())
	if len(got) != 4 {
		t.Fatalf("got %d questions, want the builtin 4", len(got))
	}
	fields := map[string]bool{}
	for _, q := range got {
		fields[q.MapsToLeadField] = true
		if !q.IsRequired {
			t.Errorf("builtin emergency question %s not required", q.ID)
		}
	}
	if !fields["contact_name"] || !fields["contact_phone"] {
		t.Fatal("builtin set must capture name and phone")
	}
}
