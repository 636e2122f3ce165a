package similarity

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Result is one scored comparison between a base profile and a candidate.
type Result struct {
	Score       int    `json:"similarity_score"`
	Explanation string `json:"explanation"`
	ProfileURL  string `json:"profile_url,omitempty"`
	Name        string `json:"name,omitempty"`
}

const neutralExplanation = "Could not parse a structured score from the model response."

// neutralResult is the score assigned when no parsing strategy succeeds.
// Comparisons always produce a result so a single malformed response cannot
// sink a whole ranking run.
func neutralResult() *Result {
	return &Result{Score: 50, Explanation: neutralExplanation}
}

// scoredPayload tolerates both key spellings models tend to produce, and
// accepts fractional scores.
type scoredPayload struct {
	SimilarityScore *float64 `json:"similarity_score"`
	Score           *float64 `json:"score"`
	Explanation     string   `json:"explanation"`
}

func (p scoredPayload) result() (*Result, bool) {
	var score float64
	switch {
	case p.SimilarityScore != nil:
		score = *p.SimilarityScore
	case p.Score != nil:
		score = *p.Score
	default:
		return nil, false
	}
	// Out-of-range scores pass through untouched; callers display what
	// the backend said.
	return &Result{Score: int(score), Explanation: p.Explanation}, true
}

// parseScoredResponse extracts a score and explanation from a model response.
// It tries the whole body as JSON first, then the first balanced JSON object
// embedded in surrounding prose, and finally falls back to a neutral result.
func parseScoredResponse(body string) *Result {
	trimmed := strings.TrimSpace(body)

	var payload scoredPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		if res, ok := payload.result(); ok {
			return res
		}
	}

	if obj, ok := firstJSONObject(trimmed); ok {
		payload = scoredPayload{}
		if err := json.Unmarshal([]byte(obj), &payload); err == nil {
			if res, ok := payload.result(); ok {
				return res
			}
		}
	}

	return neutralResult()
}

// firstJSONObject scans for the first balanced top-level brace pair, skipping
// braces that appear inside string literals.
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

var (
	legacyScoreRe       = regexp.MustCompile(`Similarity Score:\s*(\d+)`)
	legacyExplanationRe = regexp.MustCompile(`Explanation:\s*(.+)`)
)

// parseLegacyResponse reads the line-oriented "Similarity Score: NN%" format.
// It is independent of the JSON strategies and used for pairwise comparisons
// where the prompt requests that format.
func parseLegacyResponse(body string) *Result {
	scoreMatch := legacyScoreRe.FindStringSubmatch(body)
	if scoreMatch == nil {
		return neutralResult()
	}
	score, err := strconv.Atoi(scoreMatch[1])
	if err != nil {
		return neutralResult()
	}

	explanation := "No explanation provided."
	if m := legacyExplanationRe.FindStringSubmatch(body); m != nil {
		explanation = strings.TrimSpace(m[1])
	}
	return &Result{Score: score, Explanation: explanation}
}
