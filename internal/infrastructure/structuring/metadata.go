package structuring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

const dateMarkerWindow = 600

var (
	dateFrRx    = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(janvier|janv|février|fevrier|fév|fev|mars|avril|avr|mai|juin|juillet|juil|août|aout|septembre|sept|octobre|oct|novembre|nov|décembre|decembre|déc|dec)\.?\s+(\d{4})\b`)
	dateSlashRx = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})\b`)
)

type foundDate struct {
	pos int
	iso string
}

// detectLanguage counts marker vocabulary hits. Empty means undecidable.
func (r *Rules) detectLanguage(text string) string {
	low := normalizeForMarkers(text)
	fr := countWordHits(low, r.frMarkers)
	en := countWordHits(low, r.enMarkers)
	switch {
	case fr == 0 && en == 0:
		return ""
	case fr >= en:
		return "fr"
	}
	return "en"
}

func countWordHits(low string, markers []string) int {
	n := 0
	for _, m := range markers {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(m) + `\b`)
		if re.MatchString(low) {
			n++
		}
	}
	return n
}

// matchGazetteer returns the canonical value of the first entry with a
// keyword hit. Entry order encodes priority.
func matchGazetteer(low string, entries []gazetteerEntry) string {
	for _, e := range entries {
		for _, kw := range e.Keywords {
			if strings.Contains(low, kw) {
				return e.Canon
			}
		}
	}
	return ""
}

// findDates collects every recognizable date, in order of appearance,
// deduplicated on the ISO form.
func (r *Rules) findDates(text string) []foundDate {
	var all []foundDate
	for _, m := range dateFrRx.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month := r.monthNumber(text[m[4]:m[5]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if month == 0 || day < 1 || day > 31 {
			continue
		}
		all = append(all, foundDate{pos: m[0], iso: fmt.Sprintf("%04d-%02d-%02d", year, month, day)})
	}
	for _, m := range dateSlashRx.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		all = append(all, foundDate{pos: m[0], iso: fmt.Sprintf("%04d-%02d-%02d", year, month, day)})
	}

	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j-1].pos > all[j].pos; j-- {
			all[j-1], all[j] = all[j], all[j-1]
		}
	}
	seen := map[string]struct{}{}
	out := all[:0]
	for _, d := range all {
		if _, ok := seen[d.iso]; ok {
			continue
		}
		seen[d.iso] = struct{}{}
		out = append(out, d)
	}
	return out
}

func (r *Rules) monthNumber(name string) int {
	low := strings.ToLower(name)
	if n, ok := r.monthsFR[low]; ok {
		return n
	}
	if len(low) > 4 {
		if n, ok := r.monthsFR[low[:4]]; ok {
			return n
		}
	}
	return 0
}

// dateNearMarker picks the first date inside a bounded window after the first
// marker occurrence.
func dateNearMarker(low string, markers []string, dates []foundDate) string {
	for _, marker := range markers {
		p := strings.Index(low, marker)
		if p < 0 {
			continue
		}
		limit := p + dateMarkerWindow
		for _, d := range dates {
			if d.pos >= p && d.pos <= limit {
				return d.iso
			}
		}
	}
	return ""
}

// extractMetadata derives language, curated gazetteer fields, and the
// publication/deadline date pair from the normalized text.
func (r *Rules) extractMetadata(text string) domain.Metadata {
	// Apostrophe normalization keeps byte offsets aligned between the lowered
	// text and the date positions found in the original.
	text = strings.ReplaceAll(text, "’", "'")
	low := strings.ToLower(text)
	dates := r.findDates(text)

	md := domain.Metadata{
		Language: r.detectLanguage(text),
		Bailleur: matchGazetteer(low, r.bailleurs),
		Pays:     matchGazetteer(low, r.pays),
		Region:   matchGazetteer(low, r.regions),
		Domaine:  matchGazetteer(low, r.domaines),
	}
	if len(dates) == 0 {
		return md
	}

	deadline := dateNearMarker(low, r.deadlineMarkers, dates)
	if deadline == "" {
		deadline = dates[len(dates)-1].iso
	}
	publication := dateNearMarker(low, r.publicationMarkers, dates)
	if publication == "" {
		publication = dates[0].iso
	}
	md.Dates = domain.DateRange{Publication: publication, Deadline: deadline}
	return md
}
