// Package types provides the pipeline state and the value objects stored in it.
package types

import (
	"sort"
	"strings"
)

// JDAnalysis is the structured form of a job description.
type JDAnalysis struct {
	HardSkills       []string           `json:"hard_skills"`
	SoftSkills       []string           `json:"soft_skills"`
	Responsibilities []string           `json:"responsibilities"`
	Qualifications   []string           `json:"qualifications"`
	KeywordWeights   map[string]float64 `json:"keyword_weights"`
}

// NewJDAnalysis builds a validated JDAnalysis. The four lists must be non-empty
// and every keyword weight must lie in [0,1]. Inputs are copied.
func NewJDAnalysis(hard, soft, responsibilities, qualifications []string, weights map[string]float64) (*JDAnalysis, error) {
	a := &JDAnalysis{
		HardSkills:       cloneStrings(hard),
		SoftSkills:       cloneStrings(soft),
		Responsibilities: cloneStrings(responsibilities),
		Qualifications:   cloneStrings(qualifications),
		KeywordWeights:   make(map[string]float64, len(weights)),
	}
	for k, v := range weights {
		a.KeywordWeights[k] = v
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the JDAnalysis invariants.
func (a *JDAnalysis) Validate() error {
	lists := []struct {
		field string
		items []string
	}{
		{"hard_skills", a.HardSkills},
		{"soft_skills", a.SoftSkills},
		{"responsibilities", a.Responsibilities},
		{"qualifications", a.Qualifications},
	}
	for _, l := range lists {
		if len(l.items) == 0 {
			return newValidationError(l.field, "must contain at least one entry")
		}
	}
	for k, v := range a.KeywordWeights {
		if v < 0 || v > 1 {
			return newValidationError("keyword_weights", "weight for %q is %v, must be in [0,1]", k, v)
		}
	}
	return nil
}

// Keywords returns the lowercased, trimmed union of every list entry and
// keyword-weight key, in first-seen order.
func (a *JDAnalysis) Keywords() []string {
	if a == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, list := range [][]string{a.HardSkills, a.SoftSkills, a.Responsibilities, a.Qualifications} {
		for _, s := range list {
			add(s)
		}
	}
	for _, k := range SortedWeightKeys(a.KeywordWeights) {
		add(k)
	}
	return out
}

// SortedWeightKeys returns the keys of a weight map ordered by descending
// weight, ties broken alphabetically, so prompts and queries are stable.
func SortedWeightKeys(weights map[string]float64) []string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		wi, wj := weights[keys[i]], weights[keys[j]]
		if wi != wj {
			return wi > wj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
