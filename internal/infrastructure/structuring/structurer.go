package structuring

import (
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

const missionFromTasksHeader = "Mission principale : réalisation des prestations attendues décrites dans les termes de référence, incluant notamment :"

// Structurer turns extracted text into the ten-section structured record.
// It is stateless apart from the compiled rule tables and safe for
// concurrent use.
type Structurer struct {
	rules *Rules
}

func NewStructurer(rules *Rules) *Structurer {
	return &Structurer{rules: rules}
}

// Structure routes on the classified type: expression-of-interest notices go
// through the zone cutter, everything else through the title splitter. The
// result always carries all ten sections, empty or not.
func (s *Structurer) Structure(text, markdown string, docType domain.DocType) domain.StructuredDocument {
	normalized := normalizeText(text)

	var out domain.StructuredDocument
	if docType == domain.DocTypeAMI {
		out = s.rules.structureAMI(text)
	} else {
		out = s.structureTDRLike(text, markdown)
	}
	out.Metadata = s.rules.extractMetadata(normalized)
	return out
}

func (s *Structurer) structureTDRLike(text, markdown string) domain.StructuredDocument {
	normalized := normalizeText(text)
	sections := s.rules.splitIntoSections(text)

	// Tables refine sections before task extraction so table-born task rows
	// are visible to the source chain below.
	s.rules.enrichFromTables(&sections, markdown)

	taches := s.extractTasksChain(&sections, normalized)
	s.procurementFallback(&sections, normalized, taches)

	return domain.StructuredDocument{
		DocType:     domain.DocTypeTDR,
		Sections:    sections,
		Taches:      taches,
		Competences: s.rules.extractSkills(normalized),
	}
}

// extractTasksChain walks task sources from most to least specific and keeps
// the first one that yields anything.
func (s *Structurer) extractTasksChain(sections *domain.Sections, normalized string) []string {
	sources := []string{
		sections.Taches,
		sections.TachesTable,
		sections.Mission,
		sections.Livrables,
		sections.Competences,
		normalized,
	}
	for _, src := range sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		if tasks := s.rules.extractTasks(src); len(tasks) > 0 {
			return tasks
		}
	}
	return nil
}

// procurementFallback repairs sections in tender packs where submission
// boilerplate swallowed the substantive content. Gated on procurement
// vocabulary so ordinary documents keep the plain split.
func (s *Structurer) procurementFallback(sections *domain.Sections, normalized string, taches []string) {
	low := normalizeForMarkers(normalized)
	found := false
	for _, m := range s.rules.procurementMarkers {
		if strings.Contains(low, m) {
			found = true
			break
		}
	}
	if !found {
		return
	}

	if strings.TrimSpace(sections.Profil) == "" {
		if w := windowExtract(normalized, s.rules.fallbackInclude(domain.SectionProfil), 2200); w != "" {
			sections.Profil = w
		}
	}

	mission := strings.ToLower(sections.Mission)
	if strings.TrimSpace(sections.Mission) == "" ||
		strings.Contains(mission, "offre technique") || strings.Contains(mission, "soumission") {
		if len(taches) > 0 {
			head := taches
			if len(head) > 8 {
				head = head[:8]
			}
			sections.Mission = missionFromTasksHeader + "\n- " + strings.Join(head, "\n- ")
		}
	}

	if strings.TrimSpace(sections.Livrables) == "" {
		if w := windowExtract(normalized, s.rules.fallbackInclude(domain.SectionLivrables), 1800); w != "" {
			sections.Livrables = w
		}
	}

	if strings.TrimSpace(sections.Contexte) == "" {
		if w := windowExtract(normalized, s.rules.fallbackInclude(domain.SectionContexte), 2500); w != "" {
			sections.Contexte = w
		} else {
			sections.Contexte = strings.TrimSpace(sliceAtRuneBounds(normalized, 0, minInt(2500, len(normalized))))
		}
	}
}

// fallbackInclude exposes a section's fallback keyword list for reuse.
func (r *Rules) fallbackInclude(section string) []string {
	for _, fw := range r.fallbackWindows {
		if fw.Section == section {
			return fw.Include
		}
	}
	return nil
}
