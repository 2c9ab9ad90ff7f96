// Package pipeline runs one research request through its stages: evidence
// gathering, a drafted summary, two independent critiques and a final
// synthesis. The whole run shares one wall-clock budget.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/llm"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/tracing"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Config bounds a run.
type Config struct {
	Timeout          time.Duration
	MaxSnippetLength int
}

// Request is one research question plus the evidence plan captured from
// the service snapshot when the run started.
type Request struct {
	RunID string
	Topic string
	Plan  evidence.Plan
}

// Failure describes why a run ended in error.
type Failure struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Result is the outcome of one run. On error every generated field is empty
// and Failure is set.
type Result struct {
	RunID        string                 `json:"run_id"`
	Topic        string                 `json:"topic"`
	Summary      string                 `json:"summary"`
	CritiqueA    string                 `json:"critique_a"`
	CritiqueB    string                 `json:"critique_b"`
	Insight      string                 `json:"insight"`
	Sources      []string               `json:"sources"`
	Status       string                 `json:"status"`
	State        string                 `json:"-"`
	Acquisitions []evidence.Acquisition `json:"acquisitions,omitempty"`
	ItemCounts   map[string]int         `json:"evidence_items,omitempty"`
	Timings      []tracing.Timing       `json:"timings,omitempty"`
	Failure      *Failure               `json:"-"`
	StartedAt    time.Time              `json:"started_at"`
	Duration     time.Duration          `json:"-"`
}

type Orchestrator struct {
	gen     llm.Generator
	cfg     Config
	metrics *metrics.Metrics
}

// New builds an Orchestrator. A nil m skips metrics.
func New(gen llm.Generator, cfg Config, m *metrics.Metrics) *Orchestrator {
	if cfg.MaxSnippetLength <= 0 {
		cfg.MaxSnippetLength = 800
	}
	return &Orchestrator{gen: gen, cfg: cfg, metrics: m}
}

// Run executes the state machine. The returned Result is always non-nil;
// the error is non-nil exactly when Result.Status is "error", and carries
// the failing stage (see apperrors.Stage) and kind (apperrors.Kind).
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	ctx = logger.WithRunID(ctx, req.RunID)
	log := logger.FromContext(ctx).With("component", "pipeline")
	started := time.Now()

	ctx, root := tracing.Start(ctx, "research", req.RunID)
	m := &machine{}
	var final Context

	err := resilience.WithTimeout(ctx, o.cfg.Timeout, "research", func(ctx context.Context) error {
		pc, err := o.execute(ctx, m, Context{RunID: req.RunID, Topic: req.Topic}, req.Plan)
		if err != nil {
			return err
		}
		final = pc
		return nil
	})
	err = o.classify(ctx, m, err)
	root.End(err)
	root.Log(log)

	res := &Result{
		RunID:     req.RunID,
		Topic:     req.Topic,
		Sources:   []string{},
		Timings:   root.Timings(),
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if err != nil {
		_ = m.advance(StateFailed)
		res.Status = StatusError
		res.State = StateFailed.String()
		res.Failure = &Failure{Kind: apperrors.Kind(err), Stage: apperrors.Stage(err), Message: err.Error()}
		log.Error("research failed", "kind", res.Failure.Kind, "stage", res.Failure.Stage, "error", err,
			"duration_ms", res.Duration.Milliseconds())
		o.countRun(res)
		return res, err
	}

	res.Summary = final.Summary
	res.CritiqueA = final.CritiqueA
	res.CritiqueB = final.CritiqueB
	res.Insight = final.Insight
	res.Sources = final.Sources()
	res.Acquisitions = final.Evidence.Acquisitions
	res.ItemCounts = countByOrigin(final.Evidence)
	res.Status = StatusSuccess
	res.State = m.current().String()
	log.Info("research finished", "sources", len(res.Sources), "duration_ms", res.Duration.Milliseconds())
	o.countRun(res)
	return res, nil
}

// execute walks the stages in order. Each stage sees only the Context
// produced so far and returns a Delta.
func (o *Orchestrator) execute(ctx context.Context, m *machine, pc Context, plan evidence.Plan) (Context, error) {
	stages := []struct {
		state State
		run   func(context.Context, Context) (Delta, error)
	}{
		{StateEvidenceGathering, func(ctx context.Context, pc Context) (Delta, error) {
			pool, err := evidence.Gather(ctx, pc.Topic, plan)
			return Delta{Evidence: pool}, err
		}},
		{StateDrafting, o.draft},
		{StateCritiquing, o.critique},
		{StateSynthesizing, o.synthesize},
	}

	for _, st := range stages {
		if err := m.advance(st.state); err != nil {
			return pc, apperrors.AtStage(st.state.String(), fmt.Errorf("%w: %v", apperrors.ErrInternal, err))
		}
		stageCtx, span := tracing.Start(ctx, st.state.String(), "")
		start := time.Now()
		delta, err := st.run(stageCtx, pc)
		span.End(err)
		if o.metrics != nil {
			o.metrics.StageDuration.WithLabelValues(st.state.String()).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return pc, apperrors.AtStage(st.state.String(), err)
		}
		pc = pc.With(delta)
	}

	if err := validate(pc); err != nil {
		return pc, apperrors.AtStage(StateSynthesizing.String(), err)
	}
	if err := m.advance(StateDone); err != nil {
		return pc, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}
	return pc, nil
}

func (o *Orchestrator) draft(ctx context.Context, pc Context) (Delta, error) {
	text, err := o.generate(ctx, "draft", draftPrompt(pc.Topic, pc.Evidence, o.cfg.MaxSnippetLength))
	if err != nil {
		return Delta{}, err
	}
	if pc.Evidence == nil || pc.Evidence.Empty() {
		text = NoEvidenceNotice + "\n\n" + text
	}
	return Delta{Summary: text}, nil
}

// critique runs both reviewers concurrently. Each sees only the summary.
func (o *Orchestrator) critique(ctx context.Context, pc Context) (Delta, error) {
	var out [len(CritiqueLenses)]string
	g, gctx := errgroup.WithContext(ctx)
	for i, lens := range CritiqueLenses {
		g.Go(func() error {
			text, err := o.generate(gctx, "critique_"+lens.Name, critiquePrompt(lens, pc.Summary))
			if err != nil {
				return err
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Delta{}, err
	}
	for i, text := range out {
		if text == "" {
			return Delta{}, apperrors.Newf(apperrors.ErrIncompleteResult, 0, "critique %c is empty", 'A'+rune(i))
		}
	}
	return Delta{CritiqueA: out[0], CritiqueB: out[1]}, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, pc Context) (Delta, error) {
	text, err := o.generate(ctx, "synthesis", synthesisPrompt(pc.Summary, pc.CritiqueA, pc.CritiqueB, pc.Sources()))
	if err != nil {
		return Delta{}, err
	}
	return Delta{Insight: text}, nil
}

// generate calls the model and normalizes its failure modes: a done ctx is
// returned as is, anything else becomes a GenerationError, and blank output
// becomes an IncompleteResultError.
func (o *Orchestrator) generate(ctx context.Context, role, prompt string) (string, error) {
	text, err := o.gen.Generate(ctx, prompt)
	status := "ok"
	defer func() {
		if o.metrics != nil {
			o.metrics.GenerationCalls.WithLabelValues(role, status).Inc()
		}
	}()
	switch {
	case ctx.Err() != nil:
		status = "cancelled"
		return "", ctx.Err()
	case err != nil:
		status = "error"
		if !errors.Is(err, apperrors.ErrGeneration) {
			err = fmt.Errorf("%w: %s: %v", apperrors.ErrGeneration, role, err)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		status = "empty"
		return "", apperrors.Newf(apperrors.ErrIncompleteResult, 0, "%s produced no text", role)
	}
	return text, nil
}

// classify turns an expired budget into a TimeoutError tagged with the
// stage that was running when it expired.
func (o *Orchestrator) classify(ctx context.Context, m *machine, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return apperrors.AtStage(m.current().String(),
			apperrors.Newf(apperrors.ErrTimeout, 0, "research exceeded %v; try fewer sources or a narrower topic", o.cfg.Timeout))
	}
	return err
}

// validate requires every text field of the result.
func validate(pc Context) error {
	var missing []string
	for name, v := range map[string]string{
		"topic":      pc.Topic,
		"summary":    pc.Summary,
		"critique_a": pc.CritiqueA,
		"critique_b": pc.CritiqueB,
		"insight":    pc.Insight,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return apperrors.Newf(apperrors.ErrIncompleteResult, 0, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (o *Orchestrator) countRun(res *Result) {
	if o.metrics == nil {
		return
	}
	kind := ""
	if res.Failure != nil {
		kind = res.Failure.Kind
	}
	o.metrics.ResearchRunsTotal.WithLabelValues(res.Status, kind).Inc()
}

func countByOrigin(pool *evidence.Pool) map[string]int {
	counts := make(map[string]int)
	if pool == nil {
		return counts
	}
	for _, it := range pool.Items {
		counts[it.Origin.String()]++
	}
	return counts
}
