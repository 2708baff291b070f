package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var errIncompatibleResult = errors.New("incompatible result type")

// Evaluate evaluates every active rule of catalog against record, in catalog
// order, and aggregates the results. Rules whose evaluation fails because a
// field is missing or has an incompatible type are skipped. The record is not
// modified.
func Evaluate(record Record, catalog *Catalog) *Assessment {
	assessment, _ := EvaluateDetailed(record, catalog)
	return assessment
}

// EvaluateDetailed is Evaluate that also returns the per-rule outcomes
func EvaluateDetailed(record Record, catalog *Catalog) (*Assessment, []RuleOutcome) {
	outcomes := catalog.evaluateAll(record)
	return aggregate(catalog, outcomes), outcomes
}

// aggregate folds rule outcomes into an assessment. Outcomes are matched to
// rules by ID; unknown IDs are ignored. The zero floor is applied once, after
// every contribution has been summed.
func aggregate(catalog *Catalog, outcomes []RuleOutcome) *Assessment {
	a := &Assessment{
		PointsPerCategory: Breakdown{},
		MandatoryFailures: []Finding{},
		WarningFlags:      []Finding{},
	}

	index := make(map[string]int)
	total := 0
	for _, o := range outcomes {
		if o.Skipped {
			continue
		}
		pos, known := catalog.index[o.RuleID]
		if !known {
			continue
		}
		def := catalog.rules[pos].def

		switch def.Kind {
		case KindPoints:
			total += o.Points
			pos, seen := index[def.Category]
			if !seen {
				index[def.Category] = len(a.PointsPerCategory)
				a.PointsPerCategory = append(a.PointsPerCategory, CategoryPoints{Category: def.Category, Points: o.Points})
				continue
			}
			a.PointsPerCategory[pos].Points += o.Points

		case KindMandatoryFail:
			if o.Fired {
				a.MandatoryFailures = append(a.MandatoryFailures, Finding{ID: def.ID, Description: def.Description})
			}

		case KindFlag:
			if o.Fired {
				a.WarningFlags = append(a.WarningFlags, Finding{ID: def.ID, Description: def.Description})
			}
		}
	}

	a.TotalPoints = max(total, 0)
	return a
}

func (c *Catalog) evaluateAll(record Record) []RuleOutcome {
	activation := c.activation(record)
	outcomes := make([]RuleOutcome, len(c.rules))
	for i := range c.rules {
		outcomes[i] = c.rules[i].evaluate(activation)
	}
	return outcomes
}

// activation builds the evaluation input: a normalized copy of the record plus
// any derived field the record does not already carry
func (c *Catalog) activation(record Record) map[string]any {
	applicant := record.normalize()
	for _, f := range c.derived {
		if _, present := applicant[f.def.Name]; present {
			continue
		}
		out, _, err := f.program.Eval(map[string]any{ApplicantVar: applicant})
		if err != nil {
			continue
		}
		applicant[f.def.Name] = normalizeValue(out.Value())
	}
	return map[string]any{ApplicantVar: applicant}
}

func (r *compiledRule) evaluate(activation map[string]any) RuleOutcome {
	outcome := RuleOutcome{RuleID: r.def.ID, Kind: r.def.Kind}

	out, _, err := r.program.Eval(activation)
	if err != nil {
		return skipped(outcome, err)
	}

	if r.def.Kind == KindPoints {
		points, ok := toPoints(out.Value())
		if !ok {
			return skipped(outcome, fmt.Errorf("%w: %T", errIncompatibleResult, out.Value()))
		}
		outcome.Points = points
		return outcome
	}

	fired, ok := out.Value().(bool)
	if !ok {
		return skipped(outcome, fmt.Errorf("%w: %T", errIncompatibleResult, out.Value()))
	}
	outcome.Fired = fired
	return outcome
}

func skipped(o RuleOutcome, err error) RuleOutcome {
	o.Skipped = true
	o.Reason = err.Error()
	return o
}

func toPoints(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// Recorder receives evaluation telemetry. A nil Recorder is ignored.
type Recorder interface {
	ObserveEvaluation(catalog string, d time.Duration)
	RuleSkipped(catalog, ruleID string)
	RuleFired(catalog, ruleID string, kind Kind)
}

// Engine evaluates records against catalogs with logging, metrics, tracing and
// optional parallel rule evaluation. Results are identical to Evaluate.
type Engine struct {
	logger      *slog.Logger
	recorder    Recorder
	tracer      trace.Tracer
	parallelism int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) Option {
	return func(en *Engine) { en.logger = l }
}

// WithRecorder sets the telemetry recorder
func WithRecorder(r Recorder) Option {
	return func(en *Engine) { en.recorder = r }
}

// WithParallelism evaluates up to n rules of one record concurrently.
// Values below 2 keep evaluation sequential.
func WithParallelism(n int) Option {
	return func(en *Engine) { en.parallelism = n }
}

// NewEngine creates an engine
func NewEngine(opts ...Option) *Engine {
	en := &Engine{
		logger:      slog.Default(),
		tracer:      otel.Tracer("github.com/liamcoop/visarules/rules"),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// Evaluate evaluates record against catalog
func (en *Engine) Evaluate(ctx context.Context, record Record, catalog *Catalog) *Assessment {
	assessment, _ := en.EvaluateDetailed(ctx, record, catalog)
	return assessment
}

// EvaluateDetailed evaluates record against catalog and returns the per-rule outcomes
func (en *Engine) EvaluateDetailed(ctx context.Context, record Record, catalog *Catalog) (*Assessment, []RuleOutcome) {
	ctx, span := en.tracer.Start(ctx, "rules.Evaluate", trace.WithAttributes(
		attribute.String("catalog", catalog.Key()),
		attribute.Int("rules", catalog.Len()),
	))
	defer span.End()

	start := time.Now()

	var outcomes []RuleOutcome
	if en.parallelism > 1 {
		outcomes = en.evaluateParallel(catalog, record)
	} else {
		outcomes = catalog.evaluateAll(record)
	}

	assessment := aggregate(catalog, outcomes)
	elapsed := time.Since(start)

	for _, o := range outcomes {
		switch {
		case o.Skipped:
			en.logger.DebugContext(ctx, "rule skipped",
				"catalog", catalog.Key(),
				"rule_id", o.RuleID,
				"reason", o.Reason,
			)
			if en.recorder != nil {
				en.recorder.RuleSkipped(catalog.Key(), o.RuleID)
			}
		case o.Fired:
			if en.recorder != nil {
				en.recorder.RuleFired(catalog.Key(), o.RuleID, o.Kind)
			}
		}
	}
	if en.recorder != nil {
		en.recorder.ObserveEvaluation(catalog.Key(), elapsed)
	}

	span.SetAttributes(
		attribute.Int("total_points", assessment.TotalPoints),
		attribute.Int("mandatory_failures", len(assessment.MandatoryFailures)),
		attribute.Int("warning_flags", len(assessment.WarningFlags)),
	)

	return assessment, outcomes
}

// evaluateParallel evaluates rules concurrently. Each goroutine writes only its
// own slot, so the returned outcomes keep catalog order.
func (en *Engine) evaluateParallel(catalog *Catalog, record Record) []RuleOutcome {
	activation := catalog.activation(record)
	outcomes := make([]RuleOutcome, len(catalog.rules))

	var g errgroup.Group
	g.SetLimit(en.parallelism)
	for i := range catalog.rules {
		g.Go(func() error {
			outcomes[i] = catalog.rules[i].evaluate(activation)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// EvaluateBatch evaluates every record against catalog concurrently and
// returns the assessments in input order. It stops early if ctx is cancelled.
func (en *Engine) EvaluateBatch(ctx context.Context, records []Record, catalog *Catalog) ([]*Assessment, error) {
	results := make([]*Assessment, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(en.parallelism, runtime.NumCPU()))
	for i, rec := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = en.Evaluate(ctx, rec, catalog)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch evaluation of catalog %s: %w", catalog.Key(), err)
	}

	return results, nil
}
