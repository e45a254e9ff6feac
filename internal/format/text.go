// Package format normalizes raw text runs into cleaned markdown prose.
package format

import (
	"strings"
	"unicode"
)

// Formatter cleans raw decoder text into markdown: heading detection,
// paragraph joining, whitespace collapse. Pure, no I/O.
type Formatter struct {
	// MaxHeadingLen is the longest line still considered for heading
	// detection.
	MaxHeadingLen int
}

// NewFormatter creates a Formatter with sensible defaults.
func NewFormatter() *Formatter {
	return &Formatter{
		MaxHeadingLen: 60,
	}
}

// Format converts one text segment's raw payload into markdown.
// Wrapped lines are joined into paragraphs, bullets are normalized,
// heading-looking lines become markdown headings.
func (f *Formatter) Format(raw string) string {
	lines := strings.Split(raw, "\n")

	var out []string
	var para []string

	flush := func() {
		if len(para) > 0 {
			out = append(out, strings.Join(para, " "))
			para = nil
		}
	}

	for _, line := range lines {
		line = collapseSpaces(line)
		if line == "" {
			flush()
			continue
		}

		switch {
		case isBullet(line):
			flush()
			out = append(out, "- "+collapseSpaces(trimBullet(line)))
		case f.isHeading(line):
			flush()
			out = append(out, "## "+line)
		default:
			para = append(para, line)
		}
	}
	flush()

	return strings.Join(out, "\n\n")
}

// isHeading applies text-only heuristics: short, no terminal
// punctuation, and either all-caps or title-cased.
func (f *Formatter) isHeading(line string) bool {
	if len(line) == 0 || len(line) > f.MaxHeadingLen {
		return false
	}
	last := rune(line[len(line)-1])
	if last == '.' || last == ',' || last == ';' || last == ':' {
		return false
	}
	if strings.Count(line, " ") > 7 {
		return false
	}
	return isAllCaps(line) || isTitleCase(line)
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isTitleCase(s string) bool {
	words := strings.Fields(s)
	if len(words) < 1 {
		return false
	}
	capitalized := 0
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			capitalized++
		}
	}
	// Minor words ("of", "and") may stay lowercase.
	return capitalized >= len(words)-len(words)/3
}

func isBullet(line string) bool {
	for _, prefix := range []string{"- ", "* ", "• ", "· ", "▪ "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func trimBullet(line string) string {
	return strings.TrimLeft(line, "-*•·▪ ")
}

// collapseSpaces trims the line and collapses interior whitespace
// runs to single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
