package domain

// Extraction is the output of a format-specific text extractor. Markdown is
// empty unless the source format carries table structure worth preserving.
type Extraction struct {
	Text     string
	Markdown string
	Kind     string
}
