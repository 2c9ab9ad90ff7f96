package pipeline

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
)

// Context is the immutable value threaded through the stages. Stages never
// modify it; they return a Delta that the orchestrator merges into a new
// Context.
type Context struct {
	RunID     string
	Topic     string
	Evidence  *evidence.Pool
	Summary   string
	CritiqueA string
	CritiqueB string
	Insight   string
}

// Delta carries the fields one stage produced. Empty fields are left alone.
type Delta struct {
	Evidence  *evidence.Pool
	Summary   string
	CritiqueA string
	CritiqueB string
	Insight   string
}

// With returns a copy of c with d applied.
func (c Context) With(d Delta) Context {
	if d.Evidence != nil {
		c.Evidence = d.Evidence
	}
	if d.Summary != "" {
		c.Summary = d.Summary
	}
	if d.CritiqueA != "" {
		c.CritiqueA = d.CritiqueA
	}
	if d.CritiqueB != "" {
		c.CritiqueB = d.CritiqueB
	}
	if d.Insight != "" {
		c.Insight = d.Insight
	}
	return c
}

// Sources returns a copy of the ordered source labels.
func (c Context) Sources() []string {
	if c.Evidence == nil {
		return []string{}
	}
	return slices.Clone(c.Evidence.Sources)
}
