package structuring

import (
	"regexp"
	"strings"
)

var (
	ocrDigitDashUpperRx = regexp.MustCompile(`(\d)\s*-\s*([A-Z])`)
	ocrLowerUpperRx     = regexp.MustCompile(`([a-zà-ÿ])([A-ZÀ-ÖØ-Ý])`)
	ocrLetterDigitRx    = regexp.MustCompile(`([A-Za-zà-ÿÀ-Ý])(\d)`)
	ocrDigitLetterRx    = regexp.MustCompile(`(\d)([A-Za-zà-ÿÀ-Ý])`)
	ocrGluedArticleRx   = regexp.MustCompile(`\b(DE|DU|DES|DEL|D')([A-ZÀ-ÖØ-Ý])`)
	ocrSpaceRunRx       = regexp.MustCompile(`[ \t]{2,}`)

	bulletGlyphRx    = regexp.MustCompile(`[▪●•]`)
	romanHeadingRx   = regexp.MustCompile(`(?m)^\s*(I{1,3}\.|IV\.|V\.|VI\.)`)
	letterHeadingRx  = regexp.MustCompile(`(?m)^\s*([A-Z]-)\s*`)
	hyphenBreakRx    = regexp.MustCompile(`(\w)-\n(\w)`)
	inlineSpaceRx    = regexp.MustCompile(`[ \t]+`)
	blankLineRunRx   = regexp.MustCompile(`\n{3,}`)
	inlineRomanRx    = regexp.MustCompile(`([^\n])\s*([IVX]{1,6}\.)\s+`)
	inlineLetterRx   = regexp.MustCompile(`([^\n])\s*([A-Z])\s*[-–]\s+`)
	inlineNumberedRx = regexp.MustCompile(`([^\n])\s*(\d{1,2})\s*[-–—]\s*([A-ZÀ-ÖØ-Ý])`)
)

// fixOCRSpacing repairs the word boundaries PDF text layers commonly lose:
// glued case transitions, glued digits, and glued French articles.
func fixOCRSpacing(t string) string {
	t = ocrDigitDashUpperRx.ReplaceAllString(t, "$1 - $2")
	t = ocrLowerUpperRx.ReplaceAllString(t, "$1 $2")
	t = ocrLetterDigitRx.ReplaceAllString(t, "$1 $2")
	t = ocrDigitLetterRx.ReplaceAllString(t, "$1 $2")
	t = ocrGluedArticleRx.ReplaceAllString(t, "$1 $2")
	t = ocrSpaceRunRx.ReplaceAllString(t, " ")
	return t
}

// normalizeText is the shared cleanup applied before any heuristic pass.
func normalizeText(t string) string {
	t = fixOCRSpacing(t)
	t = bulletGlyphRx.ReplaceAllString(t, "\n- ")
	t = romanHeadingRx.ReplaceAllString(t, "\n$1")
	t = letterHeadingRx.ReplaceAllString(t, "\n$1 ")
	t = hyphenBreakRx.ReplaceAllString(t, "$1$2")
	t = inlineSpaceRx.ReplaceAllString(t, " ")
	t = blankLineRunRx.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}

// normalizeForTitles forces likely headings onto their own line so the title
// scanner can see them: roman/letter/number prefixes glued mid-line, and the
// curated heading vocabulary.
func (r *Rules) normalizeForTitles(t string) string {
	t = inlineRomanRx.ReplaceAllString(t, "$1\n$2 ")
	t = inlineLetterRx.ReplaceAllString(t, "$1\n$2- ")
	t = inlineNumberedRx.ReplaceAllString(t, "$1\n$2 - $3")
	for _, re := range r.titleWordRx {
		t = re.ReplaceAllString(t, "\n$2$3")
	}
	return t
}

func compileTitleWordRegexes(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`(?i)(^|\s)(`+regexp.QuoteMeta(w)+`)(\s|:)`))
	}
	return out
}
