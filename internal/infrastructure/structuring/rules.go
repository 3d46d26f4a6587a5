package structuring

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

type gazetteerEntry struct {
	Canon    string   `yaml:"canon"`
	Keywords []string `yaml:"keywords"`
}

type titleRule struct {
	Section string `yaml:"section"`
	Compact string `yaml:"compact"`
	Pattern string `yaml:"pattern"`
}

type fallbackWindow struct {
	Section string   `yaml:"section"`
	Window  int      `yaml:"window"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type rulesFile struct {
	Classifier struct {
		AMILiterals    []string `yaml:"ami_literals"`
		AMIRegexes     []string `yaml:"ami_regexes"`
		TDRLiterals    []string `yaml:"tdr_literals"`
		TDRRegexes     []string `yaml:"tdr_regexes"`
		AMITiebreakers []string `yaml:"ami_tiebreakers"`
	} `yaml:"classifier"`
	TitleWords         []string            `yaml:"title_words"`
	TitleLineRegexes   []string            `yaml:"title_line_regexes"`
	TitleToSection     []titleRule         `yaml:"title_to_section"`
	FallbackWindows    []fallbackWindow    `yaml:"fallback_windows"`
	Skills             []string            `yaml:"skills"`
	TaskVerbs          []string            `yaml:"task_verbs"`
	TaskNoise          []string            `yaml:"task_noise"`
	ProcurementMarkers []string            `yaml:"procurement_markers"`
	TableSignatures    map[string][]string `yaml:"table_signatures"`
	Metadata           struct {
		FRMarkers          []string         `yaml:"fr_markers"`
		ENMarkers          []string         `yaml:"en_markers"`
		Bailleurs          []gazetteerEntry `yaml:"bailleurs"`
		Pays               []gazetteerEntry `yaml:"pays"`
		Regions            []gazetteerEntry `yaml:"regions"`
		Domaines           []gazetteerEntry `yaml:"domaines"`
		DeadlineMarkers    []string         `yaml:"deadline_markers"`
		PublicationMarkers []string         `yaml:"publication_markers"`
		MonthsFR           map[string]int   `yaml:"months_fr"`
	} `yaml:"metadata"`
}

type compiledTitleRule struct {
	section string
	compact string
	re      *regexp.Regexp
}

// Rules is the compiled form of rules.yaml. Built once at startup and shared
// read-only across goroutines.
type Rules struct {
	amiLiterals    []string
	amiRegexes     []*regexp.Regexp
	tdrLiterals    []string
	tdrRegexes     []*regexp.Regexp
	amiTiebreakers []string

	titleWords       []string
	titleWordRx      []*regexp.Regexp
	titleLineRegexes []*regexp.Regexp
	titleToSection   []compiledTitleRule
	fallbackWindows  []fallbackWindow

	skills             []string
	taskVerbs          map[string]struct{}
	taskNoise          []string
	procurementMarkers []string
	tableSignatures    map[string][]string

	frMarkers          []string
	enMarkers          []string
	bailleurs          []gazetteerEntry
	pays               []gazetteerEntry
	regions            []gazetteerEntry
	domaines           []gazetteerEntry
	deadlineMarkers    []string
	publicationMarkers []string
	monthsFR           map[string]int
}

// LoadRules parses and compiles the embedded rule tables.
func LoadRules() (*Rules, error) {
	var rf rulesFile
	if err := yaml.Unmarshal(rulesYAML, &rf); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	r := &Rules{
		amiLiterals:        rf.Classifier.AMILiterals,
		tdrLiterals:        rf.Classifier.TDRLiterals,
		amiTiebreakers:     rf.Classifier.AMITiebreakers,
		titleWords:         rf.TitleWords,
		fallbackWindows:    rf.FallbackWindows,
		skills:             rf.Skills,
		taskVerbs:          make(map[string]struct{}, len(rf.TaskVerbs)),
		taskNoise:          rf.TaskNoise,
		procurementMarkers: rf.ProcurementMarkers,
		tableSignatures:    rf.TableSignatures,
		frMarkers:          rf.Metadata.FRMarkers,
		enMarkers:          rf.Metadata.ENMarkers,
		bailleurs:          rf.Metadata.Bailleurs,
		pays:               rf.Metadata.Pays,
		regions:            rf.Metadata.Regions,
		domaines:           rf.Metadata.Domaines,
		deadlineMarkers:    rf.Metadata.DeadlineMarkers,
		publicationMarkers: rf.Metadata.PublicationMarkers,
		monthsFR:           rf.Metadata.MonthsFR,
	}
	for _, v := range rf.TaskVerbs {
		r.taskVerbs[v] = struct{}{}
	}
	r.titleWordRx = compileTitleWordRegexes(rf.TitleWords)

	var err error
	if r.amiRegexes, err = compileAll(rf.Classifier.AMIRegexes); err != nil {
		return nil, fmt.Errorf("classifier ami regexes: %w", err)
	}
	if r.tdrRegexes, err = compileAll(rf.Classifier.TDRRegexes); err != nil {
		return nil, fmt.Errorf("classifier tdr regexes: %w", err)
	}
	for _, p := range rf.TitleLineRegexes {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("title line regex %q: %w", p, err)
		}
		r.titleLineRegexes = append(r.titleLineRegexes, re)
	}
	for _, tr := range rf.TitleToSection {
		re, err := regexp.Compile("(?i)" + tr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("title rule %q: %w", tr.Section, err)
		}
		r.titleToSection = append(r.titleToSection, compiledTitleRule{
			section: tr.Section,
			compact: compactText(tr.Compact),
			re:      re,
		})
	}
	return r, nil
}

// MustLoadRules is for wiring paths where a broken embedded file is a
// programming error, not a runtime condition.
func MustLoadRules() *Rules {
	r, err := LoadRules()
	if err != nil {
		panic(err)
	}
	return r
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

var compactStripRx = regexp.MustCompile(`[\s:\-–—_.,;|]+`)

// compactText lowercases and strips spacing/punctuation so keyword checks
// survive OCR output with destroyed word boundaries.
func compactText(s string) string {
	return compactStripRx.ReplaceAllString(strings.ToLower(s), "")
}
