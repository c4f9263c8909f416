package extract

import (
	"strings"
	"unicode"
)

// Section maps list-valued field Field to the headings that introduce it in
// prose answers ("Strengths:", "## Areas for improvement").
type Section struct {
	Field   string
	Headers []string
}

// scanSections collects the bullet lines under each known heading until a
// blank line or the next heading. Fields with no bullets are omitted.
func scanSections(raw string, sections []Section) map[string]any {
	headerField := make(map[string]string)
	for _, s := range sections {
		for _, h := range s.Headers {
			headerField[normalizeHeader(h)] = s.Field
		}
	}

	found := make(map[string][]string)
	current := ""
	for line := range strings.Lines(raw) {
		line = strings.TrimSpace(line)

		if field, ok := headerField[normalizeHeader(line)]; ok && line != "" {
			current = field
			continue
		}
		if current == "" {
			continue
		}
		if line == "" {
			if len(found[current]) > 0 {
				current = ""
			}
			continue
		}
		if item, ok := bulletItem(line); ok {
			found[current] = append(found[current], item)
		}
	}

	out := make(map[string]any, len(found))
	for field, items := range found {
		out[field] = items
	}
	return out
}

// normalizeHeader lowercases a heading and strips markdown decoration and a
// trailing colon.
func normalizeHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#*_ \t")
	s = strings.TrimRight(s, "*_: \t")
	return strings.ToLower(s)
}

// bulletItem recognises "- x", "* x", "• x" and "1. x" / "1) x".
func bulletItem(line string) (string, bool) {
	for _, p := range []string{"- ", "* ", "• "} {
		if rest, ok := strings.CutPrefix(line, p); ok {
			return cleanItem(rest)
		}
	}
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return cleanItem(line[i+1:])
	}
	return "", false
}

func cleanItem(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
