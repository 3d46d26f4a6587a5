package structuring

import (
	"strings"
	"testing"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

const sampleTDR = `TERMES DE REFERENCE

CONTEXTE
Le projet de renforcement institutionnel est financé par la Banque Mondiale.
Il couvre plusieurs régions de la Tunisie.

MISSION
Objectif de la prestation : accompagner le ministère dans la mise en place
du dispositif de suivi.

TACHES
- Assurer la coordination du projet sur le terrain et le dialogue avec les partenaires
- Produire les notes trimestrielles de suivi et les analyses associées
- Organiser les ateliers de restitution avec les parties prenantes

LIVRABLES
Rapport de démarrage, rapport final et note de synthèse.

PROFIL
Expérience de dix ans en gestion de projets financés par les bailleurs.
`

func TestStructureTitleSplitRoutesSections(t *testing.T) {
	s := NewStructurer(MustLoadRules())

	out := s.Structure(sampleTDR, "", domain.DocTypeTDR)
	if out.DocType != domain.DocTypeTDR {
		t.Fatalf("expected tdr, got %q", out.DocType)
	}
	if !strings.Contains(out.Sections.Contexte, "renforcement institutionnel") {
		t.Fatalf("contexte missing expected content: %q", out.Sections.Contexte)
	}
	if !strings.Contains(out.Sections.Mission, "dispositif de suivi") {
		t.Fatalf("mission missing expected content: %q", out.Sections.Mission)
	}
	if !strings.Contains(out.Sections.Livrables, "rapport final") {
		t.Fatalf("livrables missing expected content: %q", out.Sections.Livrables)
	}
	if !strings.Contains(out.Sections.Profil, "dix ans") {
		t.Fatalf("profil missing expected content: %q", out.Sections.Profil)
	}
}

func TestStructureExtractsBulletTasks(t *testing.T) {
	s := NewStructurer(MustLoadRules())

	out := s.Structure(sampleTDR, "", domain.DocTypeTDR)
	if len(out.Taches) != 3 {
		t.Fatalf("expected 3 tasks, got %d: %v", len(out.Taches), out.Taches)
	}
	if !strings.Contains(out.Taches[0], "coordination du projet") {
		t.Fatalf("unexpected first task: %q", out.Taches[0])
	}
}

func TestStructureNoHeadingsFallsBackToMission(t *testing.T) {
	s := NewStructurer(MustLoadRules())

	text := "le document décrit une prestation d'accompagnement sans structure apparente, rédigé d'un seul tenant et sans aucun intitulé reconnaissable."
	out := s.Structure(text, "", domain.DocTypeTDR)
	if !strings.Contains(out.Sections.Mission, "prestation d'accompagnement") {
		t.Fatalf("expected whole text in mission, got %q", out.Sections.Mission)
	}
}

func TestStructureDropsContentUnderUnmappedHeadings(t *testing.T) {
	s := NewStructurer(MustLoadRules())

	text := `CONTEXTE
Le projet est financé par la Banque Mondiale.

ANNEXES ADMINISTRATIVES DIVERSES
registre unique numero 12345

MISSION
Accompagner le ministère dans le dispositif de suivi.
`
	out := s.Structure(text, "", domain.DocTypeTDR)
	if !strings.Contains(out.Sections.Contexte, "Banque Mondiale") {
		t.Fatalf("contexte lost its own content: %q", out.Sections.Contexte)
	}
	if !strings.Contains(out.Sections.Mission, "dispositif de suivi") {
		t.Fatalf("mission lost its own content: %q", out.Sections.Mission)
	}
	for _, name := range domain.CanonicalSections() {
		if strings.Contains(out.Sections.Get(name), "registre unique") {
			t.Fatalf("content under an unmapped heading leaked into %q", name)
		}
	}
}

func TestStructureAlwaysReturnsEveryCanonicalSection(t *testing.T) {
	s := NewStructurer(MustLoadRules())

	out := s.Structure(sampleTDR, "", domain.DocTypeTDR)
	for _, name := range domain.CanonicalSections() {
		// Presence, not content: Get must resolve every canonical name.
		_ = out.Sections.Get(name)
	}
	if out.Sections.Get("contexte") == "" {
		t.Fatal("contexte should be populated for the sample document")
	}
}

func TestTableEnrichmentRoutesBySignature(t *testing.T) {
	rules := MustLoadRules()

	markdown := `| Critère | Pondération |
|---------|-------------|
| Expérience générale | 30% |
| Méthodologie proposée | 40% |

| Tâche | Description |
|-------|-------------|
| T1 | Cadrage de la mission |
| T2 | Collecte des données |
`
	var sections domain.Sections
	rules.enrichFromTables(&sections, markdown)

	if !strings.Contains(sections.Evaluation, "Expérience générale") {
		t.Fatalf("evaluation table not routed: %q", sections.Evaluation)
	}
	if !strings.Contains(sections.TachesTable, "Cadrage de la mission") {
		t.Fatalf("task table not routed to taches_table: %q", sections.TachesTable)
	}
	if !strings.Contains(sections.Mission, "Cadrage de la mission") {
		t.Fatalf("task table not routed to mission: %q", sections.Mission)
	}

	// A second pass must not duplicate the appended blocks.
	before := sections.Evaluation
	rules.enrichFromTables(&sections, markdown)
	if sections.Evaluation != before {
		t.Fatal("table enrichment is not idempotent")
	}
}

func TestTaskNoiseAndDuplicatesFiltered(t *testing.T) {
	rules := MustLoadRules()

	text := `- Assurer la coordination des activités du projet sur le terrain
- Offre technique et offre financière à transmettre sous pli fermé
- Assurer la coordination des activités du projet sur le terrain
- Préparer les supports de formation destinés aux équipes régionales`
	tasks := rules.extractTasks(text)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks after cleanup, got %d: %v", len(tasks), tasks)
	}
}

func TestVerbLedLinesUsedWhenNoBullets(t *testing.T) {
	rules := MustLoadRules()

	text := `Assurer le suivi opérationnel du programme et la consolidation des rapports périodiques transmis au comité de pilotage.
Une phrase descriptive qui ne commence pas par un verbe d'action attendu ici.
Produire les livrables intermédiaires conformément au calendrier validé par le maître d'ouvrage;`
	tasks := rules.extractTasks(text)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 verb-led tasks, got %d: %v", len(tasks), tasks)
	}
}

func TestStructureAMIZonesAndFields(t *testing.T) {
	s := NewStructurer(MustLoadRules())

	text := `République de Tunisie. Programme d'appui à la modernisation financé par un prêt de la Banque Mondiale.
Les services comprennent :
1. Réalisation d'un diagnostic organisationnel complet des directions métiers
2. Élaboration du schéma directeur du système d'information
3. Accompagnement de la mise en œuvre des réformes prioritaires
Les critères d'analyse des dossiers sont détaillés dans le tableau suivant avec leur poids respectif.
La méthode de sélection est QCBS.
Les manifestations d'intérêt doivent être envoyées à l'adresse contact@ministere.tn au plus tard le 15 mars 2026.
`
	out := s.Structure(text, "", domain.DocTypeAMI)
	if out.DocType != domain.DocTypeAMI {
		t.Fatalf("expected ami, got %q", out.DocType)
	}
	if out.AMIFields == nil {
		t.Fatal("expected ami fields")
	}
	if out.AMIFields.SelectionMethod != "QCBS" {
		t.Fatalf("expected QCBS, got %q", out.AMIFields.SelectionMethod)
	}
	if len(out.AMIFields.Emails) != 1 || out.AMIFields.Emails[0] != "contact@ministere.tn" {
		t.Fatalf("unexpected emails: %v", out.AMIFields.Emails)
	}
	if !strings.Contains(out.AMIFields.Deadline, "15 mars 2026") {
		t.Fatalf("unexpected deadline: %q", out.AMIFields.Deadline)
	}
	if !strings.Contains(out.Sections.Contexte, "République de Tunisie") {
		t.Fatalf("contexte zone missing: %q", out.Sections.Contexte)
	}
	if !strings.Contains(out.Sections.Mission, "diagnostic organisationnel") {
		t.Fatalf("mission zone missing: %q", out.Sections.Mission)
	}
	if len(out.Taches) != 3 {
		t.Fatalf("expected 3 numbered services, got %d: %v", len(out.Taches), out.Taches)
	}
}

func TestStructureSkillsDetected(t *testing.T) {
	s := NewStructurer(MustLoadRules())

	text := "Mission d'audit des états financiers selon le référentiel SYSCOHADA, incluant la revue des déclarations fiscales."
	out := s.Structure(text, "", domain.DocTypeTDR)

	want := map[string]bool{"audit": false, "syscohada": false, "états financiers": false, "déclarations fiscales": false}
	for _, skill := range out.Competences {
		if _, ok := want[skill]; ok {
			want[skill] = true
		}
	}
	for skill, found := range want {
		if !found {
			t.Fatalf("expected skill %q in %v", skill, out.Competences)
		}
	}
}
