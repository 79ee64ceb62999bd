package types

import (
	"encoding/json"
	"strings"
)

// Section types understood by the rewriter.
const (
	SectionExperience    = "experience"
	SectionSkillsSummary = "skills_summary"
	SectionProjects      = "projects"
)

// RewritableSections is the fixed, ordered set of sections the rewriter produces.
var RewritableSections = []string{SectionExperience, SectionSkillsSummary, SectionProjects}

// ResumeSection is one typed block of resume content supplied by the caller.
type ResumeSection struct {
	Type    string `json:"type"`
	Content string `json:"content" validate:"required"`
}

// NormalizeSectionType maps free-form section labels onto canonical names.
// "skills" becomes "skills_summary" and a blank label becomes "experience".
func NormalizeSectionType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "":
		return SectionExperience
	case "skills", "skill":
		return SectionSkillsSummary
	default:
		return t
	}
}

// IsRewritableSection reports whether t is one of RewritableSections.
func IsRewritableSection(t string) bool {
	for _, s := range RewritableSections {
		if s == t {
			return true
		}
	}
	return false
}

// FormatSections renders optimized sections as indented JSON for prompts.
func FormatSections(sections map[string][]string) string {
	data, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
