package types

import "strings"

// Priority is the urgency of closing a skill gap.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority accepts the three levels case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", newValidationError("priority", "unrecognized level %q", s)
	}
}

// GapReport lists requirement gaps between a job description and a resume.
type GapReport struct {
	MissingSkills      []string            `json:"missing_skills"`
	Recommendations    []string            `json:"recommendations"`
	TransferableSkills []string            `json:"transferable_skills"`
	Priority           map[string]Priority `json:"priority"`
}

// NewGapReport validates every priority level and returns the report.
func NewGapReport(missing, recommendations, transferable []string, priority map[string]string) (*GapReport, error) {
	r := &GapReport{
		MissingSkills:      cloneStrings(missing),
		Recommendations:    cloneStrings(recommendations),
		TransferableSkills: cloneStrings(transferable),
		Priority:           make(map[string]Priority, len(priority)),
	}
	for skill, level := range priority {
		p, err := ParsePriority(level)
		if err != nil {
			return nil, newValidationError("priority", "skill %q: unrecognized level %q", skill, level)
		}
		r.Priority[skill] = p
	}
	return r, nil
}
