package types

import "math"

// Category weights of the ATS score.
const (
	WeightKeywords   = 0.35
	WeightSkills     = 0.30
	WeightExperience = 0.25
	WeightFormatting = 0.10
)

// ScoreBreakdown holds the four ATS category scores.
type ScoreBreakdown struct {
	Keywords   float64 `json:"keywords"`
	Skills     float64 `json:"skills"`
	Experience float64 `json:"experience"`
	Formatting float64 `json:"formatting"`
}

// NewScoreBreakdown returns a breakdown after checking every component is in [0,1].
func NewScoreBreakdown(keywords, skills, experience, formatting float64) (*ScoreBreakdown, error) {
	b := &ScoreBreakdown{
		Keywords:   keywords,
		Skills:     skills,
		Experience: experience,
		Formatting: formatting,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks every component is a number in [0,1].
func (b *ScoreBreakdown) Validate() error {
	for _, c := range b.Categories() {
		if math.IsNaN(c.Score) || c.Score < 0 || c.Score > 1 {
			return newValidationError("score_breakdown."+c.Name, "%v must be in [0,1]", c.Score)
		}
	}
	return nil
}

// WeightedOverall combines the categories with the fixed ATS weights.
func (b *ScoreBreakdown) WeightedOverall() float64 {
	return WeightKeywords*b.Keywords +
		WeightSkills*b.Skills +
		WeightExperience*b.Experience +
		WeightFormatting*b.Formatting
}

// CategoryScore pairs a category name with its score.
type CategoryScore struct {
	Name  string
	Score float64
}

// Categories lists the components in a fixed order.
func (b *ScoreBreakdown) Categories() []CategoryScore {
	return []CategoryScore{
		{"keywords", b.Keywords},
		{"skills", b.Skills},
		{"experience", b.Experience},
		{"formatting", b.Formatting},
	}
}

// Clamp01 limits v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
