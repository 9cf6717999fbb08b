// Package speech turns reply text into caller-ready telephone audio: a
// deterministic cleanup filter, a content-addressed synthesis cache, and a
// provider ladder with per-rung circuit breakers.
package speech

import (
	"regexp"
	"strings"
)

// cleanupPassLimit bounds the iterative scrub. Nested markup (a quoted,
// bolded, prefixed line) resolves within a few passes; anything deeper is
// left as-is rather than looping.
const cleanupPassLimit = 4

var (
	// Leading speaker labels the model sometimes emits ("Agent:", "AI:",
	// "Assistant:", "Receptionist:"), case-insensitive.
	rolePrefixRe = regexp.MustCompile(`(?i)^\s*(agent|assistant|ai|receptionist|bot)\s*:\s*`)

	// Stage directions and meta commentary in brackets or asterisks:
	// "[clears throat]", "(pauses)", "*smiles warmly*".
	stageDirectionRe = regexp.MustCompile(`\[[^\[\]]*\]|\([^()]*\)|\*[^*]+\*`)

	// Markdown emphasis and heading markers that survive the stage-direction
	// pass: "**", "__", "###", backticks.
	markdownRe = regexp.MustCompile("(\\*\\*|__|`+|^#{1,6}\\s+)")

	// Runs of whitespace collapse to a single space.
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Trailing punctuation noise like "..", " ,", or a dangling hyphen. A
	// single terminal ".", "!", or "?" is kept.
	trailingNoiseRe = regexp.MustCompile(`[\s,;:\-]+$|\.{2,}$`)
)

// CleanForSynthesis scrubs LLM output so only speakable words reach the
// synthesizer: role prefixes, stage directions, markdown, wrapping quotes,
// and trailing punctuation noise are removed. The scrub iterates until the
// text stops changing or the pass limit is reached, making a second call a
// no-op. If scrubbing would leave fewer than 2 characters, the original
// input is returned instead.
func CleanForSynthesis(text string) string {
	cleaned := text
	for i := 0; i < cleanupPassLimit; i++ {
		next := cleanupPass(cleaned)
		if next == cleaned {
			break
		}
		cleaned = next
	}
	if len(strings.TrimSpace(cleaned)) < 2 {
		return text
	}
	return cleaned
}

func cleanupPass(text string) string {
	s := strings.TrimSpace(text)
	s = rolePrefixRe.ReplaceAllString(s, "")
	// Markdown first: "**bold**" must not be half-matched as an asterisk
	// stage direction.
	s = markdownRe.ReplaceAllString(s, "")
	s = stageDirectionRe.ReplaceAllString(s, " ")
	s = stripWrappingQuotes(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = trailingNoiseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripWrappingQuotes removes one layer of quotes that enclose the whole
// string. Quotes inside the text (a quoted project name, an apostrophe) are
// left alone.
func stripWrappingQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	pairs := [][2]string{
		{`"`, `"`},
		{"'", "'"},
		{"“", "”"},
		{"‘", "’"},
	}
	for _, p := range pairs {
		if strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			inner := s[len(p[0]) : len(s)-len(p[1])]
			// Only a true wrap: the closing quote must not pair with a
			// quote in the middle.
			if !strings.Contains(inner, p[0]) && !strings.Contains(inner, p[1]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return s
}
