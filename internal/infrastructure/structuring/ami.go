package structuring

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

// Expression-of-interest notices follow a near-fixed rhetorical order, so
// zones are cut between boilerplate phrase markers instead of headings.
type amiZone struct {
	section string
	maxLen  int
	starts  []string
	ends    []string
}

var amiZones = []amiZone{
	{
		section: domain.SectionContexte,
		maxLen:  2400,
		starts:  []string{"république", "republique", "programme", "prêt", "pret", "appel à manifestations", "appel a manifestations", "manifestations d'intérêt", "manifestations d'interet"},
		ends:    []string{"les services comprennent", "les services incluent", "le ministère", "le ministere", "invite les firmes"},
	},
	{
		section: domain.SectionMission,
		maxLen:  2400,
		starts:  []string{"les services comprennent", "les services incluent"},
		ends:    []string{"les termes de référence", "les termes de reference", "le ministère", "le ministere", "invite les firmes", "les critères", "les criteres"},
	},
	{
		section: domain.SectionProfil,
		maxLen:  2600,
		starts:  []string{"invite les firmes", "invite les consultants", "les consultants intéressés", "les consultants interesses", "doivent fournir", "qualifications"},
		ends:    []string{"les critères", "les criteres", "il est porté", "il est porte", "de plus amples informations"},
	},
	{
		section: domain.SectionEvaluation,
		maxLen:  3000,
		starts:  []string{"les critères", "les criteres", "barème", "bareme", "poids", "tableau suivant"},
		ends:    []string{"de plus amples informations", "adresse", "doivent être envoyées", "doivent etre envoyees", "au plus tard", "avant le"},
	},
	{
		section: domain.SectionLivrables,
		maxLen:  2000,
		starts:  []string{"livrables", "rapports attendus", "documents attendus", "produits attendus"},
		ends:    []string{"les critères", "les criteres", "de plus amples informations"},
	},
	{
		section: domain.SectionPlanning,
		maxLen:  1800,
		starts:  []string{"calendrier", "durée de la mission", "duree de la mission", "délai d'exécution", "delai d'execution", "planning"},
		ends:    []string{"les critères", "les criteres", "de plus amples informations"},
	},
	{
		section: domain.SectionCandidature,
		maxLen:  2400,
		starts:  []string{"manifestations d'intérêt doivent être envoyées", "manifestations d'interet doivent etre envoyees", "doivent être envoyées", "doivent etre envoyees", "de plus amples informations", "adresse ci-dessous", "au plus tard", "avant le"},
		ends:    nil,
	},
}

var (
	emailRx        = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	amiDeadlineRx  = regexp.MustCompile(`(?i)(avant le|au plus tard le)\s+(.{0,80}?)(\n|\.|;)`)
	amiDeadline2Rx = regexp.MustCompile(`(?i)\b(le)\s+\d{1,2}\s+[A-Za-zéèêàûîôç]+\s+\d{4}\s+(à|a)\s+\d{1,2}\s*h?\s*\d{0,2}`)
	numberedItemRx = regexp.MustCompile(`(?m)^\s*(\d{1,2})\s*[.\-–]\s+(.+)$`)
	bulletItemRx   = regexp.MustCompile(`(?m)^\s*[▪•\-–]\s+(.+)$`)
)

// extractBetween cuts the window from the earliest start marker to the
// earliest end marker past it, bounded by maxLen. The caller must have
// normalized apostrophes already so byte offsets in the lowered text line up
// with the original.
func extractBetween(text string, starts, ends []string, maxLen int) string {
	low := strings.ToLower(text)

	start := -1
	for _, m := range starts {
		if p := strings.Index(low, m); p >= 0 && (start < 0 || p < start) {
			start = p
		}
	}
	if start < 0 {
		return ""
	}

	end := start + maxLen
	for _, m := range ends {
		if p := strings.Index(low[minInt(start+10, len(low)):], m); p >= 0 {
			abs := start + 10 + p
			if abs < end {
				end = abs
			}
		}
	}
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(sliceAtRuneBounds(text, start, end))
}

func extractEmails(text string) []string {
	found := emailRx.FindAllString(text, -1)
	seen := map[string]struct{}{}
	var out []string
	for _, e := range found {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func extractSelectionMethod(text string) string {
	up := strings.ToUpper(text)
	switch {
	case strings.Contains(up, "QCBS"):
		return "QCBS"
	case strings.Contains(up, "SFQC"):
		return "SFQC"
	}
	return ""
}

func extractAMIDeadline(text string) string {
	if m := amiDeadlineRx.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.TrimSpace(amiDeadline2Rx.FindString(text))
}

// extractServicesList reads the enumerated services of a notice: numbered
// items first, bullets only when numbering yields too few.
func extractServicesList(text string) []string {
	var raw []string
	for _, m := range numberedItemRx.FindAllStringSubmatch(text, -1) {
		raw = append(raw, strings.TrimSpace(m[2]))
	}
	if len(raw) < 3 {
		for _, m := range bulletItemRx.FindAllStringSubmatch(text, -1) {
			raw = append(raw, strings.TrimSpace(m[1]))
		}
	}

	seen := map[string]struct{}{}
	var out []string
	for _, item := range raw {
		if len(item) < 5 || len(item) > 220 {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if len(out) >= 30 {
			break
		}
	}
	return out
}

// structureAMI cuts an expression-of-interest notice into zones and pulls its
// administrative fields.
func (r *Rules) structureAMI(text string) domain.StructuredDocument {
	normalized := strings.ReplaceAll(normalizeText(text), "’", "'")

	var sections domain.Sections
	for _, z := range amiZones {
		if block := extractBetween(normalized, z.starts, z.ends, z.maxLen); block != "" {
			sections.Set(z.section, block)
		}
	}

	missionBlock := sections.Mission
	if strings.TrimSpace(missionBlock) == "" {
		missionBlock = normalized
	}
	taches := extractServicesList(missionBlock)

	fields := &domain.AMIFields{
		Deadline:          extractAMIDeadline(normalized),
		SelectionMethod:   extractSelectionMethod(normalized),
		Emails:            extractEmails(normalized),
		CriteresSelection: sections.Evaluation,
	}

	return domain.StructuredDocument{
		DocType:     domain.DocTypeAMI,
		Sections:    sections,
		Taches:      taches,
		Competences: r.extractSkills(normalized),
		AMIFields:   fields,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
