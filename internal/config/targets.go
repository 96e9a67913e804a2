package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pagewatch/internal/monitor"
)

// targetsFile is the on-disk shape of the target list.
type targetsFile struct {
	URLs []targetRaw `json:"urls"`
}

// targetRaw accepts both the modern shape (disappear_texts/appear_texts)
// and the legacy one (search_text + mode). Exactly one shape must be used
// per entry.
type targetRaw struct {
	URL  string `json:"url"`
	Note string `json:"note,omitempty"`

	DisappearTexts *stringList `json:"disappear_texts,omitempty"`
	AppearTexts    *stringList `json:"appear_texts,omitempty"`

	// Legacy shape.
	SearchText *stringList `json:"search_text,omitempty"`
	Mode       string      `json:"mode,omitempty"`
}

// stringList unmarshals either a single string or a list of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("expected string or list of strings")
	}
	*s = stringList(many)
	return nil
}

// LoadTargets reads and validates the target list. Any validation error is
// fatal at startup: monitoring a half-valid list silently is worse than
// refusing to run.
func LoadTargets(path string) ([]monitor.Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("targets: read %s: %w", path, err)
	}
	return ParseTargets(path, b)
}

// ParseTargets decodes and normalizes a target list document.
func ParseTargets(path string, data []byte) ([]monitor.Target, error) {
	jb, _, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, fmt.Errorf("targets: %s: %w", path, err)
	}

	var tf targetsFile
	if err := decodeStrict(jb, &tf); err != nil {
		return nil, fmt.Errorf("targets: %s: %w", path, err)
	}
	if len(tf.URLs) == 0 {
		return nil, fmt.Errorf("targets: %s: 'urls' must be a non-empty list", path)
	}

	seen := make(map[string]bool, len(tf.URLs))
	out := make([]monitor.Target, 0, len(tf.URLs))
	for i, raw := range tf.URLs {
		t, err := normalizeTarget(raw)
		if err != nil {
			return nil, fmt.Errorf("targets: %s: entry %d: %w", path, i+1, err)
		}
		if seen[t.URL] {
			return nil, fmt.Errorf("targets: %s: entry %d: duplicate url %s", path, i+1, t.URL)
		}
		seen[t.URL] = true
		out = append(out, t)
	}
	return out, nil
}

func normalizeTarget(raw targetRaw) (monitor.Target, error) {
	url := strings.TrimSpace(raw.URL)
	if url == "" {
		return monitor.Target{}, fmt.Errorf("url is required")
	}

	hasModern := raw.DisappearTexts != nil || raw.AppearTexts != nil
	hasLegacy := raw.SearchText != nil || raw.Mode != ""

	if hasModern && hasLegacy {
		return monitor.Target{}, fmt.Errorf("use either disappear_texts/appear_texts or search_text+mode, not both")
	}
	if !hasModern && !hasLegacy {
		return monitor.Target{}, fmt.Errorf("use either disappear_texts/appear_texts or search_text+mode")
	}

	t := monitor.Target{URL: url, Note: strings.TrimSpace(raw.Note)}

	if hasLegacy {
		if raw.SearchText == nil || raw.Mode == "" {
			return monitor.Target{}, fmt.Errorf("legacy shape needs both search_text and mode")
		}
		switch raw.Mode {
		case "disappears":
			t.DisappearTexts = cleanMarkers(*raw.SearchText)
		case "appears":
			t.AppearTexts = cleanMarkers(*raw.SearchText)
		default:
			return monitor.Target{}, fmt.Errorf("mode must be 'appears' or 'disappears', got %q", raw.Mode)
		}
	} else {
		if raw.DisappearTexts != nil {
			t.DisappearTexts = cleanMarkers(*raw.DisappearTexts)
		}
		if raw.AppearTexts != nil {
			t.AppearTexts = cleanMarkers(*raw.AppearTexts)
		}
	}

	if len(t.DisappearTexts) == 0 && len(t.AppearTexts) == 0 {
		return monitor.Target{}, fmt.Errorf("at least one of disappear_texts or appear_texts is required")
	}
	return t, nil
}

func cleanMarkers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
