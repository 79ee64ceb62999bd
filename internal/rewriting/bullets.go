package rewriting

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Common strong action verbs for resume bullets.
var strongVerbs = map[string]bool{
	"achieved": true, "architected": true, "automated": true, "built": true,
	"created": true, "delivered": true, "designed": true, "developed": true,
	"drove": true, "engineered": true, "implemented": true, "improved": true,
	"increased": true, "launched": true, "led": true, "migrated": true,
	"optimized": true, "owned": true, "reduced": true, "scaled": true,
	"shipped": true, "streamlined": true, "transformed": true,
}

var (
	bulletMarker  = regexp.MustCompile(`^\s*(?:[-*•▪‣]|\d+[.)])\s+`)
	quantifiedRe  = regexp.MustCompile(`\d+%?|\$\d+`)
	collapseSpace = regexp.MustCompile(`\s+`)
)

// CleanBullet removes list markers and collapses whitespace.
func CleanBullet(text string) string {
	text = bulletMarker.ReplaceAllString(text, "")
	return strings.TrimSpace(collapseSpace.ReplaceAllString(text, " "))
}

// Truncate cuts text to at most limit runes, marking the cut with "...".
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}

// StyleSummary counts how many bullets follow common ATS style advice.
type StyleSummary struct {
	Bullets    int
	StrongVerb int
	Quantified int
}

// SummarizeStyle inspects every bullet of every section.
func SummarizeStyle(sections map[string][]string) StyleSummary {
	var s StyleSummary
	for _, bullets := range sections {
		for _, b := range bullets {
			s.Bullets++
			if startsWithStrongVerb(b) {
				s.StrongVerb++
			}
			if quantifiedRe.MatchString(b) {
				s.Quantified++
			}
		}
	}
	return s
}

func startsWithStrongVerb(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return false
	}
	return strongVerbs[strings.Trim(words[0], ",.;:")]
}
