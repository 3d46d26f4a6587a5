package structuring

import (
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

// splitIntoSections runs the title-driven split: normalize, force headings
// onto their own lines, then bucket the content between consecutive mapped
// headings. A document with no recognizable headings lands wholesale in
// mission, and the fallback pass fills what the split left empty.
func (r *Rules) splitIntoSections(text string) domain.Sections {
	normalized := normalizeText(text)
	titled := r.normalizeForTitles(normalized)

	var sections domain.Sections
	blocks := map[string][]string{}

	current := ""
	var buf []string
	flush := func() {
		if current == "" {
			buf = buf[:0]
			return
		}
		block := strings.TrimSpace(strings.Join(buf, "\n"))
		if block != "" {
			blocks[current] = append(blocks[current], block)
		}
		buf = buf[:0]
	}

	sawTitle := false
	for _, line := range strings.Split(titled, "\n") {
		if r.isTitleLine(line) {
			// Every title closes the running block. A title that maps to
			// no canonical section discards the content under it until
			// the next resolvable title.
			flush()
			current = r.titleSection(line)
			sawTitle = true
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if !sawTitle {
		sections.Mission = normalized
	} else {
		for name, parts := range blocks {
			sections.Set(name, strings.Join(parts, "\n\n"))
		}
	}

	r.fillEmptySections(&sections, normalized)
	return sections
}

// fillEmptySections runs the ordered keyword-window fallback over sections the
// title split could not populate.
func (r *Rules) fillEmptySections(sections *domain.Sections, text string) {
	for _, fw := range r.fallbackWindows {
		if strings.TrimSpace(sections.Get(fw.Section)) != "" {
			continue
		}
		if w := bestWindow(text, fw.Include, fw.Exclude, fw.Window); w != "" {
			sections.Set(fw.Section, w)
		}
	}
}
