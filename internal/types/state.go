package types

import "fmt"

// Control field defaults.
const (
	DefaultScoreThreshold     = 0.75
	DefaultMaxRewriteAttempts = 2
)

// Input is what a caller supplies to start one pipeline run.
type Input struct {
	TenantID           string          `json:"tenant_id"`
	UserID             string          `json:"user_id"`
	SessionID          string          `json:"session_id"`
	ResumeID           string          `json:"resume_id,omitempty"`
	JDText             string          `json:"jd_text"`
	ResumeSections     []ResumeSection `json:"resume_sections" validate:"dive"`
	ScoreThreshold     *float64        `json:"score_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxRewriteAttempts *int            `json:"max_rewrite_attempts,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// PipelineState is threaded through every stage of one run. Pointer fields are
// unset until the owning stage populates them.
type PipelineState struct {
	TenantID       string          `json:"tenant_id"`
	UserID         string          `json:"user_id"`
	SessionID      string          `json:"session_id"`
	ResumeID       string          `json:"resume_id,omitempty"`
	JDText         string          `json:"jd_text"`
	ResumeSections []ResumeSection `json:"resume_sections"`

	JDAnalysis        *JDAnalysis         `json:"jd_analysis,omitempty"`
	RelevantChunks    []ResumeChunk       `json:"relevant_chunks,omitempty"`
	OptimizedSections map[string][]string `json:"optimized_sections,omitempty"`
	RewriteAttempts   int                 `json:"rewrite_attempts"`
	ATSScore          *float64            `json:"ats_score,omitempty"`
	ScoreBreakdown    *ScoreBreakdown     `json:"score_breakdown,omitempty"`
	GapReport         *GapReport          `json:"gap_report,omitempty"`
	Errors            []string            `json:"errors,omitempty"`
	TokenUsage        map[string]int      `json:"token_usage,omitempty"`
	TotalTokensUsed   *int                `json:"total_tokens_used,omitempty"`

	ScoreThreshold     *float64 `json:"score_threshold,omitempty"`
	MaxRewriteAttempts *int     `json:"max_rewrite_attempts,omitempty"`

	// Version counts the updates merged so far.
	Version int `json:"version"`
}

// NewPipelineState copies the input into a fresh state and fills in control
// field defaults.
func NewPipelineState(in Input) *PipelineState {
	s := &PipelineState{
		TenantID:       in.TenantID,
		UserID:         in.UserID,
		SessionID:      in.SessionID,
		ResumeID:       in.ResumeID,
		JDText:         in.JDText,
		ResumeSections: append([]ResumeSection(nil), in.ResumeSections...),
		TokenUsage:     make(map[string]int),
	}
	threshold := DefaultScoreThreshold
	if in.ScoreThreshold != nil {
		threshold = *in.ScoreThreshold
	}
	maxAttempts := DefaultMaxRewriteAttempts
	if in.MaxRewriteAttempts != nil {
		maxAttempts = *in.MaxRewriteAttempts
	}
	s.ScoreThreshold = &threshold
	s.MaxRewriteAttempts = &maxAttempts
	return s
}

// Threshold returns the score threshold or its default.
func (s *PipelineState) Threshold() float64 {
	if s.ScoreThreshold == nil {
		return DefaultScoreThreshold
	}
	return *s.ScoreThreshold
}

// MaxAttempts returns the rewrite budget or its default.
func (s *PipelineState) MaxAttempts() int {
	if s.MaxRewriteAttempts == nil {
		return DefaultMaxRewriteAttempts
	}
	return *s.MaxRewriteAttempts
}

// Score returns the latest ATS score, or 0 when no score exists yet.
func (s *PipelineState) Score() float64 {
	if s.ATSScore == nil {
		return 0
	}
	return *s.ATSScore
}

// StateUpdate is the partial state a stage returns. Nil fields leave the state
// untouched; a non-nil empty slice or map overwrites.
type StateUpdate struct {
	Stage StageName

	JDAnalysis        *JDAnalysis
	RelevantChunks    []ResumeChunk
	OptimizedSections map[string][]string
	RewriteAttempts   *int
	ATSScore          *float64
	ScoreBreakdown    *ScoreBreakdown
	GapReport         *GapReport
	TotalTokensUsed   *int

	// Tokens is the stage's cost for this invocation. It replaces the
	// stage's previous entry in TokenUsage.
	Tokens *int
	// Errors are appended to the state's error log.
	Errors []string
}

// OwnershipError is returned when an update writes a field its stage does not own.
type OwnershipError struct {
	Stage StageName
	Field string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("stage %s may not write %s", e.Stage, e.Field)
}

// Apply merges u into the state. The whole update is rejected, leaving the
// state unchanged, if it writes a field owned by another stage or does not
// advance rewrite_attempts by exactly one.
func (s *PipelineState) Apply(u *StateUpdate) error {
	if u == nil {
		return nil
	}
	owned := []struct {
		set   bool
		field string
		owner StageName
	}{
		{u.JDAnalysis != nil, "jd_analysis", StageJDAnalyzer},
		{u.RelevantChunks != nil, "relevant_chunks", StageResumeRetriever},
		{u.OptimizedSections != nil, "optimized_sections", StageResumeRewriter},
		{u.RewriteAttempts != nil, "rewrite_attempts", StageResumeRewriter},
		{u.ATSScore != nil, "ats_score", StageATSScorer},
		{u.ScoreBreakdown != nil, "score_breakdown", StageATSScorer},
		{u.GapReport != nil, "gap_report", StageGapAnalyzer},
		{u.TotalTokensUsed != nil, "total_tokens_used", StageResultAggregator},
	}
	for _, o := range owned {
		if o.set && u.Stage != o.owner {
			return &OwnershipError{Stage: u.Stage, Field: o.field}
		}
	}
	if u.RewriteAttempts != nil && *u.RewriteAttempts != s.RewriteAttempts+1 {
		return fmt.Errorf("rewrite_attempts must advance from %d to %d, got %d",
			s.RewriteAttempts, s.RewriteAttempts+1, *u.RewriteAttempts)
	}

	if u.JDAnalysis != nil {
		s.JDAnalysis = u.JDAnalysis
	}
	if u.RelevantChunks != nil {
		s.RelevantChunks = u.RelevantChunks
	}
	if u.OptimizedSections != nil {
		s.OptimizedSections = u.OptimizedSections
	}
	if u.RewriteAttempts != nil {
		s.RewriteAttempts = *u.RewriteAttempts
	}
	if u.ATSScore != nil {
		score := *u.ATSScore
		s.ATSScore = &score
	}
	if u.ScoreBreakdown != nil {
		s.ScoreBreakdown = u.ScoreBreakdown
	}
	if u.GapReport != nil {
		s.GapReport = u.GapReport
	}
	if u.TotalTokensUsed != nil {
		total := *u.TotalTokensUsed
		s.TotalTokensUsed = &total
	}
	if u.Tokens != nil {
		if s.TokenUsage == nil {
			s.TokenUsage = make(map[string]int)
		}
		s.TokenUsage[u.Stage.String()] = *u.Tokens
	}
	s.Errors = append(s.Errors, u.Errors...)
	s.Version++
	return nil
}
