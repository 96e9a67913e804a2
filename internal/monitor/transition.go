package monitor

import (
	"fmt"
	"slices"
	"strings"
)

// Decision is the outcome of comparing the current observation against the
// previous one for a single target.
type Decision struct {
	// Baseline is true for the first observation of a target. A baseline
	// establishes state and never alerts.
	Baseline bool
	// Changed is true when the found-marker pair differs from the previous
	// observation. No alert fires on a steady state, even if the conditions
	// below happen to hold.
	Changed bool
	// Alert is true when the qualifying transition fired.
	Alert bool
}

// Decide applies the alert rule:
//
//   - disappear condition (if DisappearTexts configured): previously at
//     least one marker was found AND now ALL are gone. Partial
//     disappearance does not qualify.
//   - appear condition (if AppearTexts configured): previously none was
//     found AND now at least one is present.
//   - an empty marker list makes its condition vacuously true.
//
// Both conditions must hold, and the pair must actually have changed.
// prev == nil means this is the target's first observation.
func Decide(t Target, prev *Observation, curr Observation) Decision {
	if prev == nil {
		return Decision{Baseline: true}
	}

	changed := !slices.Equal(prev.FoundDisappear, curr.FoundDisappear) ||
		!slices.Equal(prev.FoundAppear, curr.FoundAppear)
	if !changed {
		return Decision{}
	}

	disappearOK := true
	if len(t.DisappearTexts) > 0 {
		disappearOK = len(prev.FoundDisappear) > 0 && len(curr.FoundDisappear) == 0
	}

	appearOK := true
	if len(t.AppearTexts) > 0 {
		appearOK = len(prev.FoundAppear) == 0 && len(curr.FoundAppear) > 0
	}

	return Decision{Changed: true, Alert: disappearOK && appearOK}
}

// StatusLine renders the human-readable summary for an alert.
func StatusLine(t Target, curr Observation) string {
	var parts []string

	if len(t.DisappearTexts) > 0 && len(curr.FoundDisappear) == 0 {
		parts = append(parts, fmt.Sprintf("%s gone", quoteJoin(t.DisappearTexts)))
	}
	if len(t.AppearTexts) > 0 && len(curr.FoundAppear) > 0 {
		parts = append(parts, fmt.Sprintf("%s appeared", quoteJoin(curr.FoundAppear)))
	}

	if len(parts) == 0 {
		return "Change detected."
	}
	return strings.Join(parts, " AND ")
}

func quoteJoin(texts []string) string {
	quoted := make([]string, len(texts))
	for i, t := range texts {
		quoted[i] = "'" + t + "'"
	}
	return strings.Join(quoted, ", ")
}
