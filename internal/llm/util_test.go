package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json fence", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"bare fence", "```\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"other language", "```javascript\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"plain", `  {"key": "value"} `, `{"key": "value"}`},
		{"single line fence", "```{\"a\": 1}```", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject("```json\n{\"overall\": 0.8}\n```")
	require.NoError(t, err)
	assert.Equal(t, 0.8, obj["overall"])

	_, err = DecodeObject("[1, 2]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array")

	_, err = DecodeObject("not json at all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")

	_, err = DecodeObject("   ")
	require.Error(t, err)
}

func TestDescribeOutput(t *testing.T) {
	out := DescribeOutput(OutputSchema{
		Name: "Example",
		Fields: []SchemaField{
			{Name: "items", Type: `["string"]`, Description: "things", Required: true},
			{Name: "note"},
		},
	})

	assert.Contains(t, out, `"items": ["string"] (required) // things,`)
	assert.Contains(t, out, `"note": "string"`)
	assert.Contains(t, out, "Return ONLY valid JSON")
}

func TestResponse_TokenCount(t *testing.T) {
	var nilResp *Response
	assert.Equal(t, 0, nilResp.TokenCount())
	assert.Equal(t, 0, (&Response{Text: "x"}).TokenCount())
	assert.Equal(t, 30, (&Response{Usage: &Usage{TotalTokens: 30}}).TokenCount())
	assert.Equal(t, 15, (&Response{Usage: &Usage{PromptTokens: 10, CompletionTokens: 5}}).TokenCount())
}
