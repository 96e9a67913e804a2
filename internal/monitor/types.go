// Package monitor implements the change-detection engine: the marker
// evaluator, the per-target transition decision, and the poll loop that
// drives fetch, persist, notify and evidence capture.
package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

// snippetMax bounds the human-readable context stored with each observation.
const snippetMax = 1000

// Target is one monitored URL with its marker configuration.
// Immutable for the lifetime of a poll pass.
type Target struct {
	URL            string
	DisappearTexts []string
	AppearTexts    []string
	Note           string
}

// Label returns the target's note if set, otherwise its URL.
func (t Target) Label() string {
	if strings.TrimSpace(t.Note) != "" {
		return t.Note
	}
	return t.URL
}

// Observation is the result of one successful fetch of one target.
// FoundDisappear/FoundAppear keep the declared marker order, not the order
// the markers occur in the page.
type Observation struct {
	Timestamp      time.Time `json:"timestamp"`
	FoundDisappear []string  `json:"found_disappear"`
	FoundAppear    []string  `json:"found_appear"`
	Digest         string    `json:"digest"`
	Snippet        string    `json:"snippet"`
}

// AlertEvent is handed to the notifier and evidence capture when a
// qualifying transition fires. It is never persisted.
type AlertEvent struct {
	Target      Target
	Status      string
	Observation Observation
}

// NewObservation builds an Observation from a raw page snapshot at the
// given time. The snapshot is whitespace-normalized before matching so the
// digest is stable across layout-only changes.
func NewObservation(snapshot string, t Target, at time.Time) Observation {
	norm := Normalize(snapshot)
	foundDisappear, foundAppear := Evaluate(norm, t)

	snippet := norm
	if len(snippet) > snippetMax {
		// Back off to a rune boundary so the cut never splits a multibyte
		// character.
		cut := snippetMax
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
	}

	sum := sha256.Sum256([]byte(norm))
	return Observation{
		Timestamp:      at.UTC(),
		FoundDisappear: foundDisappear,
		FoundAppear:    foundAppear,
		Digest:         hex.EncodeToString(sum[:]),
		Snippet:        snippet,
	}
}

// Normalize collapses all whitespace runs to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Evaluate reports which configured markers are present in the snapshot,
// preserving declared order. Matching is case-sensitive substring
// containment against the already-normalized snapshot text.
func Evaluate(snapshot string, t Target) (foundDisappear, foundAppear []string) {
	foundDisappear = make([]string, 0, len(t.DisappearTexts))
	for _, m := range t.DisappearTexts {
		if strings.Contains(snapshot, m) {
			foundDisappear = append(foundDisappear, m)
		}
	}
	foundAppear = make([]string, 0, len(t.AppearTexts))
	for _, m := range t.AppearTexts {
		if strings.Contains(snapshot, m) {
			foundAppear = append(foundAppear, m)
		}
	}
	return foundDisappear, foundAppear
}
