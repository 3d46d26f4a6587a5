package structuring

import (
	"regexp"
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

// Classifier scores marker hits to decide whether a document is an
// expression-of-interest notice (ami) or a terms-of-reference pack (tdr).
type Classifier struct {
	rules *Rules
}

func NewClassifier(rules *Rules) *Classifier {
	return &Classifier{rules: rules}
}

func (c *Classifier) Classify(text string) domain.DocType {
	t := normalizeForMarkers(text)

	ami := countLiteralHits(t, c.rules.amiLiterals) + countRegexHits(t, c.rules.amiRegexes)
	tdr := countLiteralHits(t, c.rules.tdrLiterals) + countRegexHits(t, c.rules.tdrRegexes)

	switch {
	case ami >= 2 && ami >= tdr:
		return domain.DocTypeAMI
	case tdr >= 2:
		return domain.DocTypeTDR
	}
	for _, marker := range c.rules.amiTiebreakers {
		if strings.Contains(t, marker) {
			return domain.DocTypeAMI
		}
	}
	return domain.DocTypeOther
}

func normalizeForMarkers(text string) string {
	return strings.ToLower(strings.ReplaceAll(text, "’", "'"))
}

func countLiteralHits(t string, markers []string) int {
	n := 0
	for _, m := range markers {
		if strings.Contains(t, m) {
			n++
		}
	}
	return n
}

func countRegexHits(t string, regexes []*regexp.Regexp) int {
	n := 0
	for _, re := range regexes {
		if re.MatchString(t) {
			n++
		}
	}
	return n
}
