package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, []string{}},
		{"scalar string", " Go ", []string{"Go"}},
		{"number", 3.0, []string{"3"}},
		{"mixed list", []any{"Go", 5.5, nil, "  ", true}, []string{"Go", "5.5", "true"}},
		{"string slice", []string{"a", " ", "b"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StringList(tt.in))
		})
	}
}

func TestFloat(t *testing.T) {
	f, ok := Float("0.25")
	assert.True(t, ok)
	assert.Equal(t, 0.25, f)

	_, ok = Float("high")
	assert.False(t, ok)

	_, ok = Float(map[string]any{})
	assert.False(t, ok)
}

func TestWeightMap(t *testing.T) {
	got := WeightMap(map[string]any{
		"python": 0.9,
		"aws":    "0.5",
		"k8s":    1.7,
		"rust":   -2.0,
		"docker": "very",
		" ":      0.3,
	})

	assert.Equal(t, map[string]float64{"python": 0.9, "aws": 0.5, "k8s": 1, "rust": 0}, got)
	assert.Empty(t, WeightMap(nil))
	assert.Empty(t, WeightMap([]any{"a"}))
}
