package domain

import "regexp"

var (
	separatorOnlyRx = regexp.MustCompile(`^[\s|\-:–—_]+$`)
	alnumRx         = regexp.MustCompile(`[A-Za-zÀ-ÿ0-9]`)
	wordRx          = regexp.MustCompile(`[A-Za-zÀ-ÿ]{4,}`)
)

// IsNoiseText reports whether text is a degenerate fragment (stray table
// separators, punctuation runs) that should never be indexed or fed to the
// answering model.
func IsNoiseText(text string) bool {
	if text == "" {
		return true
	}
	if separatorOnlyRx.MatchString(text) {
		return true
	}
	if len(alnumRx.FindAllString(text, 12)) < 12 && !wordRx.MatchString(text) {
		return true
	}
	return false
}
