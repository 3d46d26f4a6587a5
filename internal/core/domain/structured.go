package domain

// Canonical section names, in pipeline order. Sections always carries every
// key so consumers never branch on a missing one.
const (
	SectionContexte    = "contexte"
	SectionMission     = "mission"
	SectionTaches      = "taches"
	SectionLivrables   = "livrables"
	SectionPlanning    = "planning"
	SectionProfil      = "profil"
	SectionCompetences = "competences"
	SectionEvaluation  = "evaluation"
	SectionCandidature = "candidature"
	SectionTachesTable = "taches_table"
)

func CanonicalSections() []string {
	return []string{
		SectionContexte,
		SectionMission,
		SectionTaches,
		SectionLivrables,
		SectionPlanning,
		SectionProfil,
		SectionCompetences,
		SectionEvaluation,
		SectionCandidature,
		SectionTachesTable,
	}
}

type Sections struct {
	Contexte    string `json:"contexte"`
	Mission     string `json:"mission"`
	Taches      string `json:"taches"`
	Livrables   string `json:"livrables"`
	Planning    string `json:"planning"`
	Profil      string `json:"profil"`
	Competences string `json:"competences"`
	Evaluation  string `json:"evaluation"`
	Candidature string `json:"candidature"`
	TachesTable string `json:"taches_table"`
}

func (s *Sections) Get(name string) string {
	switch name {
	case SectionContexte:
		return s.Contexte
	case SectionMission:
		return s.Mission
	case SectionTaches:
		return s.Taches
	case SectionLivrables:
		return s.Livrables
	case SectionPlanning:
		return s.Planning
	case SectionProfil:
		return s.Profil
	case SectionCompetences:
		return s.Competences
	case SectionEvaluation:
		return s.Evaluation
	case SectionCandidature:
		return s.Candidature
	case SectionTachesTable:
		return s.TachesTable
	default:
		return ""
	}
}

func (s *Sections) Set(name, text string) {
	switch name {
	case SectionContexte:
		s.Contexte = text
	case SectionMission:
		s.Mission = text
	case SectionTaches:
		s.Taches = text
	case SectionLivrables:
		s.Livrables = text
	case SectionPlanning:
		s.Planning = text
	case SectionProfil:
		s.Profil = text
	case SectionCompetences:
		s.Competences = text
	case SectionEvaluation:
		s.Evaluation = text
	case SectionCandidature:
		s.Candidature = text
	case SectionTachesTable:
		s.TachesTable = text
	}
}

type DateRange struct {
	Publication string `json:"publication,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
}

type Metadata struct {
	Language string    `json:"langue,omitempty"`
	Domaine  string    `json:"domaine,omitempty"`
	Bailleur string    `json:"bailleur,omitempty"`
	Pays     string    `json:"pays,omitempty"`
	Region   string    `json:"region,omitempty"`
	Dates    DateRange `json:"dates"`
}

// AMIFields carries the fields specific to expression-of-interest notices.
type AMIFields struct {
	Deadline          string   `json:"deadline,omitempty"`
	SelectionMethod   string   `json:"selection_method,omitempty"`
	Emails            []string `json:"emails,omitempty"`
	CriteresSelection string   `json:"criteres_selection,omitempty"`
}

// StructuredDocument is the persisted system of record for chunk rebuilding.
type StructuredDocument struct {
	DocID       string     `json:"doc_id"`
	DocType     DocType    `json:"doc_type"`
	Metadata    Metadata   `json:"metadata"`
	Sections    Sections   `json:"sections"`
	Taches      []string   `json:"taches"`
	Competences []string   `json:"competences"`
	AMIFields   *AMIFields `json:"ami_fields,omitempty"`
}
