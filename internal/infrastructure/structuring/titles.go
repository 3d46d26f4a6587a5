package structuring

import (
	"regexp"
	"strings"
	"unicode"
)

var numberedPrefixRx = regexp.MustCompile(`^\s*(\d+|[IVX]{1,6})[.\-–]`)

// isTitleLine decides whether a normalized line looks like a section heading.
func (r *Rules) isTitleLine(line string) bool {
	s := strings.TrimSpace(line)
	if len(s) < 4 || len(s) > 140 {
		return false
	}
	words := strings.Fields(s)
	if len(words) > 15 && !numberedPrefixRx.MatchString(s) {
		return false
	}
	for _, re := range r.titleLineRegexes {
		if re.MatchString(s) {
			return true
		}
	}

	// OCR often mangles punctuation out of headings; a mostly-uppercase short
	// line is still worth treating as one.
	letters, upper := 0, 0
	for _, ch := range s {
		if unicode.IsLetter(ch) {
			letters++
			if unicode.IsUpper(ch) {
				upper++
			}
		}
	}
	return letters >= 8 && len(words) <= 14 && float64(upper) >= 0.75*float64(letters)
}

// titleSection maps a heading to a canonical section. The empty string means
// the heading matched nothing; the split discards content under it.
func (r *Rules) titleSection(title string) string {
	compact := compactText(title)
	for _, rule := range r.titleToSection {
		if rule.re.MatchString(title) {
			return rule.section
		}
		if rule.compact != "" && strings.Contains(compact, rule.compact) {
			return rule.section
		}
	}
	return ""
}
