package analysis

import "github.com/jonathan/resume-optimizer/internal/llm"

func llmResponse(text string) *llm.Response {
	return &llm.Response{Text: text}
}
