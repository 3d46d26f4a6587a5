package structuring

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	windowLeadChars   = 400
	compactPosBackoff = 50
	maxWindowKeywords = 12
)

var (
	windowBulletRx = regexp.MustCompile(`(?m)^\s*[-•▪]\s+\S+`)
	evalVocabRx    = regexp.MustCompile(`(?i)\b(offre\s+technique|offre\s+financi|proposition\s+technique|proposition\s+financi|notation|bar[eè]me|pond[eé]ration)\b`)
)

// windowExtract cuts a window of text around the earliest keyword occurrence.
// Keywords are also searched in the space-compacted text so glued OCR runs
// still anchor a window, with the position backed off as an approximation.
func windowExtract(text string, keywords []string, window int) string {
	low := strings.ToLower(text)
	compact := compactText(text)

	best := -1
	for _, kw := range keywords {
		if p := strings.Index(low, strings.ToLower(kw)); p >= 0 && (best < 0 || p < best) {
			best = p
		}
		if p := strings.Index(compact, compactText(kw)); p >= 0 {
			approx := p - compactPosBackoff
			if approx < 0 {
				approx = 0
			}
			if best < 0 || approx < best {
				best = approx
			}
		}
	}
	if best < 0 {
		return ""
	}

	start := best - windowLeadChars
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(sliceAtRuneBounds(text, start, end))
}

// scoreWindow rates a candidate window for a section given its include and
// exclude vocabularies.
func scoreWindow(w string, include, exclude []string) int {
	stripped := strings.TrimSpace(w)
	if stripped == "" {
		return -10000
	}
	low := strings.ToLower(w)
	compact := compactText(w)

	score := 0
	for _, inc := range include {
		if strings.Contains(low, strings.ToLower(inc)) || strings.Contains(compact, compactText(inc)) {
			score += 2
		}
	}
	for _, exc := range exclude {
		if strings.Contains(low, strings.ToLower(exc)) {
			score -= 3
		}
	}
	if windowBulletRx.MatchString(w) {
		score += 2
	}
	if evalVocabRx.MatchString(w) {
		score++
	}
	if len(stripped) < 120 {
		score -= 2
	}
	return score
}

// bestWindow tries one window per leading keyword plus a combined window and
// keeps the highest-scoring candidate.
func bestWindow(text string, include, exclude []string, window int) string {
	keywords := include
	if len(keywords) > maxWindowKeywords {
		keywords = keywords[:maxWindowKeywords]
	}

	var candidates []string
	for _, kw := range keywords {
		if w := windowExtract(text, []string{kw}, window); w != "" {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		if w := windowExtract(text, include, window); w != "" {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	best, bestScore := "", -1<<31
	for _, c := range candidates {
		if s := scoreWindow(c, include, exclude); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

// sliceAtRuneBounds slices by byte offsets, nudging both ends onto rune
// boundaries so windows never split a multibyte character.
func sliceAtRuneBounds(s string, start, end int) string {
	for start > 0 && start < len(s) && !utf8.RuneStart(s[start]) {
		start--
	}
	for end > start && end < len(s) && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[start:end]
}
