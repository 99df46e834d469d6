package generator

import (
	"time"

	"top_criteria_generator/catalog"
	"top_criteria_generator/schema"
)

// GenerationContext is everything the prompt is rendered from.
type GenerationContext struct {
	Page     catalog.PageContent
	Casinos  []catalog.Casino
	Author   catalog.Author
	Language catalog.Language
	Geo      catalog.Geo
	// Criteria is a free-text focus label, e.g. "fast payout analysis". It
	// steers the copy but is never checked structurally.
	Criteria string
}

// Outcome is a successful generation.
type Outcome struct {
	RunID    string
	Snapshot *schema.Snapshot
	// TokensUsed is zero when the provider does not report usage.
	TokensUsed int64
	Duration   time.Duration
	Model      string
	Warnings   []string
}

// State is a step of a generation run.
type State string

const (
	StateIdle      State = "idle"
	StatePrompting State = "prompting"
	StateAwaiting  State = "awaiting-model"
	StateValidate  State = "validating"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
