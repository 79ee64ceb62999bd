package types

import (
	"math"
	"strings"
)

// ResumeChunk is a piece of indexed resume content returned by similarity search.
type ResumeChunk struct {
	SectionType    string  `json:"section_type"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
}

// NewResumeChunk validates content and score and rounds the score to 4 decimals.
func NewResumeChunk(sectionType, content string, score float64) (ResumeChunk, error) {
	if strings.TrimSpace(content) == "" {
		return ResumeChunk{}, newValidationError("content", "must not be empty")
	}
	rounded := math.Round(score*10000) / 10000
	if math.IsNaN(score) || rounded < 0 || rounded > 1 {
		return ResumeChunk{}, newValidationError("relevance_score", "%v must be in [0,1]", score)
	}
	return ResumeChunk{
		SectionType:    sectionType,
		Content:        content,
		RelevanceScore: rounded,
	}, nil
}
