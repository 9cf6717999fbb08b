// Package lead decides which qualification question to ask next. It is
// deterministic and does no I/O: given the business's question list and the
// answers derived from history, it either produces the next prompt or
// reports that the flow is complete.
package lead

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/frontdeskai/switchboard/pkg/types"
)

// Prompt is the engine's output for an unfinished flow.
type Prompt struct {
	// Text is what the agent should say, including a clarifying prefix
	// when the previous answer failed validation.
	Text string

	// QuestionID identifies the question being asked.
	QuestionID string

	// Reasked is true when the question was answered before but the
	// answer failed format validation.
	Reasked bool
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// phoneRe accepts at least 7 digits with common separators anywhere in
	// the answer; callers dictate numbers with pauses and filler words.
	phoneRe = regexp.MustCompile(`(\+?\d[\d\s().\-]{5,}\d)`)
)

// NextPrompt returns the next question to ask, or (nil) when every question
// has a valid answer. Questions are scanned in ascending Order; the first
// one with an empty or format-invalid answer wins. An invalid answer is
// re-asked with a clarifying prefix rather than silently accepted.
func NextPrompt(questions []types.LeadQuestion, answers map[string]string) *Prompt {
	questions = sortedByOrder(questions)
	for _, q := range questions {
		answer := strings.TrimSpace(answers[q.ID])
		if answer == "" {
			return &Prompt{Text: q.Text, QuestionID: q.ID}
		}
		if !AnswerValid(q, answer) {
			return &Prompt{
				Text:       clarifyPrefix(q) + q.Text,
				QuestionID: q.ID,
				Reasked:    true,
			}
		}
	}
	return nil
}

// sortedByOrder returns a copy sorted by the Order column, so the flow does
// not depend on callers pre-sorting the question list.
func sortedByOrder(questions []types.LeadQuestion) []types.LeadQuestion {
	sorted := slices.Clone(questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

// AnswerValid checks answer against the question's expected format. Unknown
// formats are treated as caller-supplied regular expressions; an invalid
// pattern accepts everything rather than blocking the flow.
func AnswerValid(q types.LeadQuestion, answer string) bool {
	switch types.AnswerFormat(q.ExpectedFormat) {
	case types.FormatText, "":
		return strings.TrimSpace(answer) != ""
	case types.FormatEmail:
		return emailRe.MatchString(answer)
	case types.FormatPhone:
		return phoneRe.MatchString(answer)
	}
	re, err := regexp.Compile(q.ExpectedFormat)
	if err != nil {
		return true
	}
	return re.MatchString(answer)
}

func clarifyPrefix(q types.LeadQuestion) string {
	switch types.AnswerFormat(q.ExpectedFormat) {
	case types.FormatEmail:
		return "I didn't catch a valid email address there. "
	case types.FormatPhone:
		return "I didn't quite get that phone number. "
	}
	return "Sorry, I didn't quite catch that. "
}

// EmergencySubset returns the questions flagged essential for emergencies,
// in order. When no question carries the flag, a hardcoded four-question
// set (name, phone, address, problem) is used so an emergency caller is
// never walked through the full list.
func EmergencySubset(questions []types.LeadQuestion) []types.LeadQuestion {
	var essential []types.LeadQuestion
	for _, q := range questions {
		if q.IsEssentialForEmergency {
			essential = append(essential, q)
		}
	}
	if len(essential) > 0 {
		return essential
	}
	return defaultEmergencyQuestions()
}

func defaultEmergencyQuestions() []types.LeadQuestion {
	return []types.LeadQuestion{
		{
			ID: "emergency-name", Order: 1,
			Text:            "Can I get your name?",
			ExpectedFormat:  string(types.FormatText),
			IsRequired:      true,
			MapsToLeadField: "contact_name",
		},
		{
			ID: "emergency-phone", Order: 2,
			Text:            "What's the best phone number to reach you at?",
			ExpectedFormat:  string(types.FormatPhone),
			IsRequired:      true,
			MapsToLeadField: "contact_phone",
		},
		{
			ID: "emergency-address", Order: 3,
			Text:            "What's the address or location this concerns?",
			ExpectedFormat:  string(types.FormatText),
			IsRequired:      true,
			MapsToLeadField: "notes",
		},
		{
			ID: "emergency-problem", Order: 4,
			Text:            "Briefly, what's going on?",
			ExpectedFormat:  string(types.FormatText),
			IsRequired:      true,
			MapsToLeadField: "notes",
		},
	}
}
