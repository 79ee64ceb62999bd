package scoring

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Bullet length bounds, in characters, for the formatting heuristic.
const (
	minBulletLength = 10
	maxBulletLength = 500
	neutralScore    = 0.5
)

// RuleBasedScores computes the zero-cost pre-score. Skills and experience
// cannot be judged without a model and stay neutral.
func RuleBasedScores(jd *types.JDAnalysis, sections map[string][]string) *types.ScoreBreakdown {
	return &types.ScoreBreakdown{
		Keywords:   types.Clamp01(KeywordScore(jd, sections)),
		Skills:     neutralScore,
		Experience: neutralScore,
		Formatting: types.Clamp01(FormattingScore(sections)),
	}
}

// KeywordScore is the share of job keywords found as substrings of the
// lowercased optimized text. A job with no keywords scores 0.5.
func KeywordScore(jd *types.JDAnalysis, sections map[string][]string) float64 {
	keywords := jd.Keywords()
	if len(keywords) == 0 {
		return neutralScore
	}

	var parts []string
	for _, name := range sortedSectionNames(sections) {
		for _, b := range sections[name] {
			parts = append(parts, strings.ToLower(b))
		}
	}
	text := strings.Join(parts, " ")

	found := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

// FormattingScore is the share of bullets whose trimmed length is within
// bounds. No bullets scores 0.5.
func FormattingScore(sections map[string][]string) float64 {
	total, ok := 0, 0
	for _, bullets := range sections {
		for _, b := range bullets {
			total++
			n := utf8.RuneCountInString(strings.TrimSpace(b))
			if n >= minBulletLength && n <= maxBulletLength {
				ok++
			}
		}
	}
	if total == 0 {
		return neutralScore
	}
	return float64(ok) / float64(total)
}

func sortedSectionNames(sections map[string][]string) []string {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
