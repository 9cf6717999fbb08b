package convo

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/frontdeskai/switchboard/pkg/types"
)

// staleAfter is how old a synced project row may be before a status answer
// triggers a synchronous refresh.
const staleAfter = 24 * time.Hour

// fuzzyThreshold is the minimum per-word Jaro-Winkler similarity for a
// project-name match.
const fuzzyThreshold = 0.85

// statusPatternRe matches status/timeline phrasing.
var statusPatternRe = regexp.MustCompile(`(?i)\b(status|update|timeline|progress|eta|how('s| is)? .* (going|coming along)|where (are we|is|do we stand))\b`)

// nameFragmentRe pulls the words after a linking preposition: "status of
// the harbor rebrand" → "the harbor rebrand".
var nameFragmentRe = regexp.MustCompile(`(?i)\b(?:on|of|about|for|with)\s+(.+)$`)

// fillerWords are stripped from an extracted project-name fragment.
var fillerWords = map[string]bool{
	"the": true, "my": true, "our": true, "a": true, "an": true,
	"project": true, "job": true, "work": true, "please": true,
}

// isStatusQuery reports whether the transcript looks like a project-status
// question.
func isStatusQuery(transcript string) bool {
	return statusPatternRe.MatchString(transcript)
}

// extractProjectName pulls and cleans the project-name fragment from a
// status question. Empty means no usable fragment.
func extractProjectName(transcript string) string {
	t := strings.TrimRight(strings.TrimSpace(transcript), "?!. ")
	m := nameFragmentRe.FindStringSubmatch(t)
	if m == nil {
		return ""
	}
	var kept []string
	for _, w := range strings.Fields(m[1]) {
		w = strings.Trim(w, ",.!?;:'\"")
		if w != "" && !fillerWords[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// resolveProject finds the record matching fragment: exact name match, then
// substring either way, then best per-word fuzzy score. Records that have
// never synced are invisible to lookups.
func resolveProject(records []types.ProjectRecord, fragment string) (types.ProjectRecord, bool) {
	frag := strings.ToLower(fragment)
	if frag == "" {
		return types.ProjectRecord{}, false
	}

	var synced []types.ProjectRecord
	for _, r := range records {
		if !r.LastSyncedAt.IsZero() {
			synced = append(synced, r)
		}
	}

	for _, r := range synced {
		if strings.ToLower(r.Name) == frag {
			return r, true
		}
	}
	for _, r := range synced {
		name := strings.ToLower(r.Name)
		if strings.Contains(name, frag) || strings.Contains(frag, name) {
			return r, true
		}
	}

	var (
		best      types.ProjectRecord
		bestScore float64
	)
	fragWords := strings.Fields(frag)
	for _, r := range synced {
		nameWords := strings.Fields(strings.ToLower(r.Name))
		for _, fw := range fragWords {
			for _, nw := range nameWords {
				if score := matchr.JaroWinkler(fw, nw, false); score > bestScore {
					bestScore = score
					best = r
				}
			}
		}
	}
	if bestScore >= fuzzyThreshold {
		return best, true
	}
	return types.ProjectRecord{}, false
}

// handleStatus answers a project-status question. With no active PM
// integration it states honestly that live data is unavailable and offers a
// handoff, without attempting any lookup.
func (o *Orchestrator) handleStatus(ctx context.Context, biz types.Business, transcript string, phase types.Phase) (Result, error) {
	if o.projects == nil || !o.projects.Active() {
		return Result{
			ReplyText: "I don't have live project data available right now, so I can't give you an accurate update. " +
				"Would you like me to have your project lead call you back?",
			NextPhase:  phase,
			NextAction: types.ActionContinue,
		}, nil
	}

	records, err := o.store.ProjectRecords(ctx, biz.ID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: loading project records: %w", errStorage, err)
	}

	fragment := extractProjectName(transcript)
	record, ok := resolveProject(records, fragment)
	if !ok {
		return Result{
			ReplyText: "I couldn't find a project under that name. Could you tell me the project name once more, " +
				"or I can have someone from the team call you back?",
			NextPhase:  types.PhaseProjectInquiry,
			NextAction: types.ActionContinue,
		}, nil
	}

	if time.Since(record.LastSyncedAt) > staleAfter {
		fresh, err := o.projects.FetchProject(ctx, record.ID)
		if err != nil {
			// Stale data is not presented as current.
			slog.Warn("project refresh failed", "project", record.ID, "error", err)
			return Result{
				ReplyText: "I have some information on that project, but I can't verify it's current. " +
					"Rather than guess, can I have your project lead give you a proper update?",
				NextPhase:  types.PhaseProjectInquiry,
				NextAction: types.ActionContinue,
			}, nil
		}
		fresh.ID = record.ID
		fresh.BusinessID = record.BusinessID
		if err := o.store.RefreshProjectRecord(ctx, fresh); err != nil {
			slog.Warn("persisting project refresh failed", "project", record.ID, "error", err)
		}
		record = fresh
	}

	reply := fmt.Sprintf("%s is currently %s", record.Name, record.Status)
	if record.Phase != "" {
		reply += fmt.Sprintf(", in the %s phase", record.Phase)
	}
	if !record.DueDate.IsZero() {
		reply += fmt.Sprintf(", with a target date of %s", record.DueDate.Format("January 2"))
	}
	reply += ". Is there anything else I can help with?"

	return Result{
		ReplyText:  reply,
		NextPhase:  types.PhaseProjectInquiry,
		NextAction: types.ActionContinue,
	}, nil
}
