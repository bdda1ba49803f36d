package reasoning

import "encoding/json"

// findJSONCandidates scans s for top-level JSON object candidates and
// returns each balanced {...} span. The scan tracks string and escape state
// so braces inside string values never confuse the depth counter.
//
// Byte iteration is safe here: the delimiters it cares about ({, }, ", \)
// are ASCII and never occur inside a UTF-8 multi-byte sequence.
func findJSONCandidates(s string) []string {
	var candidates []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidates = append(candidates, s[start:i+1])
				start = -1
			}
		}
	}

	return candidates
}

// ExtractJSONObject returns the first balanced JSON object in s that
// actually parses, or ok=false when none does. Classifier prompts ask for
// bare JSON but models routinely wrap it in prose; this digs it out.
func ExtractJSONObject(s string) (string, bool) {
	for _, cand := range findJSONCandidates(s) {
		if json.Valid([]byte(cand)) {
			return cand, true
		}
	}
	return "", false
}
