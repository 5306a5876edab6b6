package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Script blocks must mention both keys before brace matching is attempted.
const (
	forecastsMarker  = `"forecasts"`
	locationIDMarker = `"location_id"`
)

var startMarkers = []string{`{"options":`, `{"data":`}

// locatePayload returns the first JSON object embedded in an inline script
// that carries a data.forecasts member.
func locatePayload(doc *goquery.Document) (string, bool) {
	var found string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content := strings.TrimSpace(s.Text())
		if content == "" {
			return true
		}
		if !strings.Contains(content, forecastsMarker) || !strings.Contains(content, locationIDMarker) {
			return true
		}
		if candidate, ok := payloadFromScript(content); ok {
			found = candidate
			return false
		}
		return true
	})
	return found, found != ""
}

// payloadFromScript tries every start marker occurrence in position order
// and returns the first balanced object that looks like a forecast payload.
func payloadFromScript(content string) (string, bool) {
	for from := 0; from < len(content); {
		start := nextMarker(content, from)
		if start < 0 {
			return "", false
		}
		if end, ok := matchObject(content, start); ok {
			candidate := content[start:end]
			if hasForecasts(candidate) {
				return candidate, true
			}
		}
		from = start + 1
	}
	return "", false
}

// nextMarker returns the index of the leftmost start marker at or after from, or -1.
func nextMarker(content string, from int) int {
	best := -1
	for _, m := range startMarkers {
		idx := strings.Index(content[from:], m)
		if idx < 0 {
			continue
		}
		idx += from
		if best < 0 || idx < best {
			best = idx
		}
	}
	return best
}

// matchObject scans from the opening brace at start and returns the index
// just past its matching closing brace. Braces inside string literals are
// ignored and a backslash consumes the following character. ok is false when
// the input ends before the depth returns to zero.
func matchObject(text string, start int) (end int, ok bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// hasForecasts reports whether candidate decodes to an object whose "data"
// member is an object with a "forecasts" key.
func hasForecasts(candidate string) bool {
	var probe struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return false
	}
	_, ok := probe.Data["forecasts"]
	return ok
}
