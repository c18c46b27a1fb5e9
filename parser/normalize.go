package parser

import "strings"

// Normalize turns raw preprocessor output into one declaration per entry.
func Normalize(raw []string) []string {
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if len(l) <= 1 || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}

	lines = joinContinuations(lines)

	for i, l := range lines {
		lines[i] = spacePointers(l)
	}

	return lines
}

func joinContinuations(lines []string) []string {
	i := 1
	for i < len(lines) {
		prev, cur := lines[i-1], lines[i]

		openBlock := strings.Contains(prev, "{") && !strings.Contains(prev, "}")
		if openBlock || !strings.Contains(prev, ";") || strings.Contains(cur, "}") {
			lines[i] = prev + " " + cur
			lines = append(lines[:i-1], lines[i:]...)
			continue
		}
		i++
	}

	return lines
}

// spacePointers surrounds every pointer star with whitespace. A star counts
// as a pointer marker when it follows whitespace or another pointer star, so
// "char_t **names" becomes "char_t * * names" and not the "char_t * *names"
// a plain " *" -> " * " replacement gives.
func spacePointers(s string) string {
	if !strings.Contains(s, "*") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)

	pointer := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '*' && i > 0 && (s[i-1] == ' ' || s[i-1] == '\t' || (s[i-1] == '*' && pointer)) {
			b.WriteString("* ")
			pointer = true
			continue
		}
		pointer = false
		b.WriteByte(c)
	}

	return b.String()
}
