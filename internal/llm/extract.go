package llm

import "strings"

// ExtractJSON strips markdown code fences and surrounding prose from a model
// answer and returns the outermost JSON object, or the trimmed input when no
// object delimiters are found.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}
