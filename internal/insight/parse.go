package insight

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hyperengineering/portfolio/internal/types"
)

// MaxMessageRunes bounds the message taken from unstructured provider text.
const MaxMessageRunes = 100

// ParseResponse converts provider text into an Insight. The first well-formed
// JSON object in text is accepted only if it has a string "message" and a
// "recommendations" array of strings; otherwise the raw text, truncated, becomes
// the message and recommendations are empty.
func ParseResponse(text string) types.Insight {
	if obj, ok := firstJSONObject(text); ok {
		if in, ok := decodeInsight(obj); ok {
			return in
		}
	}

	return types.Insight{
		Message:         truncateRunes(strings.TrimSpace(text), MaxMessageRunes),
		Recommendations: []string{},
		Source:          types.InsightSourceProvider,
	}
}

func decodeInsight(obj string) (types.Insight, bool) {
	msg := gjson.Get(obj, "message")
	if msg.Type != gjson.String {
		return types.Insight{}, false
	}
	recs := gjson.Get(obj, "recommendations")
	if !recs.IsArray() {
		return types.Insight{}, false
	}

	items := recs.Array()
	out := make([]string, 0, min(len(items), maxRecommended))
	for _, item := range items {
		if item.Type != gjson.String {
			return types.Insight{}, false
		}
		if len(out) < maxRecommended {
			out = append(out, item.String())
		}
	}

	return types.Insight{
		Message:         msg.String(),
		Recommendations: out,
		Source:          types.InsightSourceProvider,
	}, true
}

// firstJSONObject returns the first balanced {...} span in text that is valid JSON.
func firstJSONObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchBrace(text, start); ok {
			candidate := text[start : end+1]
			if gjson.Valid(candidate) {
				return candidate, true
			}
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace finds the brace closing the one at open, skipping string literals.
func matchBrace(text string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
