package vectorstore

import (
	"strings"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Chunk is one indexable piece of a resume.
type Chunk struct {
	SectionType string
	Content     string
	OrderIndex  int
}

// SplitSections breaks every section into one chunk per non-blank line.
// Section types are normalized and order indexes run across the whole resume.
func SplitSections(sections []types.ResumeSection) []Chunk {
	var chunks []Chunk
	for _, section := range sections {
		sectionType := types.NormalizeSectionType(section.Type)
		for _, line := range strings.Split(section.Content, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
			if line == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				SectionType: sectionType,
				Content:     line,
				OrderIndex:  len(chunks),
			})
		}
	}
	return chunks
}
