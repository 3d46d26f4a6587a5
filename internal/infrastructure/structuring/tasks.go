package structuring

import (
	"regexp"
	"strings"
)

const (
	minBulletTaskLen = 25
	minLineTaskLen   = 60
	maxTasks         = 30
)

var (
	taskBulletRx  = regexp.MustCompile(`(?m)^\s*[▪•\-–]\s+(.+)$`)
	trailingEndRx = regexp.MustCompile(`[;.:]\s*$`)
)

// extractTasks pulls task statements out of free text: bullet items first,
// then long verb-led sentences when the text carries no usable bullets.
func (r *Rules) extractTasks(text string) []string {
	var raw []string
	for _, m := range taskBulletRx.FindAllStringSubmatch(text, -1) {
		item := strings.TrimSpace(m[1])
		if len(item) >= minBulletTaskLen {
			raw = append(raw, item)
		}
		if len(raw) >= maxTasks {
			break
		}
	}

	if len(raw) == 0 {
		for _, line := range strings.Split(text, "\n") {
			s := strings.TrimSpace(line)
			if len(s) < minLineTaskLen || !trailingEndRx.MatchString(s) {
				continue
			}
			first := strings.ToLower(strings.TrimRight(strings.Fields(s)[0], ",:;."))
			if _, ok := r.taskVerbs[first]; !ok {
				continue
			}
			raw = append(raw, s)
			if len(raw) >= maxTasks {
				break
			}
		}
	}

	return r.cleanAndDedupTasks(raw)
}

// cleanAndDedupTasks drops submission/offer boilerplate that bullet scans drag
// in and removes duplicates, apostrophe variants included.
func (r *Rules) cleanAndDedupTasks(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		low := normalizeForMarkers(item)
		noisy := false
		for _, pat := range r.taskNoise {
			if strings.Contains(low, normalizeForMarkers(pat)) {
				noisy = true
				break
			}
		}
		if noisy {
			continue
		}
		if _, ok := seen[low]; ok {
			continue
		}
		seen[low] = struct{}{}
		out = append(out, item)
	}
	return out
}

// extractSkills scans for the curated competency vocabulary.
func (r *Rules) extractSkills(text string) []string {
	low := normalizeForMarkers(text)
	var out []string
	for _, skill := range r.skills {
		if strings.Contains(low, normalizeForMarkers(skill)) {
			out = append(out, skill)
		}
	}
	return out
}
