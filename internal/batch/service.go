package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aescanero/dago-node-formula/internal/eval/cel"
	"github.com/aescanero/dago-node-formula/internal/eval/template"
	"github.com/aescanero/dago-node-formula/internal/formula"
)

// Case is one formula to evaluate.
type Case struct {
	Name      string             `json:"name,omitempty" yaml:"name,omitempty"`
	Formula   string             `json:"formula" yaml:"formula"`
	Variables map[string]float64 `json:"variables" yaml:"variables"`
}

// Outcome is the result of one case: exactly one of Result and Error is set.
type Outcome struct {
	Result *float64 `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Failed reports whether the case produced an error.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// Options configures a Service.
type Options struct {
	// Limits bounds each formula.
	Limits formula.Limits
	// Concurrency is the number of cases evaluated at once. Defaults to 1.
	Concurrency int
	// AdmissionRule is a CEL expression every case must satisfy. Empty admits all.
	AdmissionRule string
	// Rules evaluates AdmissionRule. Created when nil.
	Rules *cel.Evaluator
	// Catalog renders errors. Created with default messages when nil.
	Catalog *template.Catalog
}

// Service evaluates batches of formulas.
type Service struct {
	evaluator   *formula.Evaluator
	concurrency int
	rule        string
	rules       *cel.Evaluator
	catalog     *template.Catalog
	logger      *zap.Logger
}

// NewService creates a batch service
func NewService(opts Options, logger *zap.Logger) (*Service, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Rules == nil {
		opts.Rules = cel.NewEvaluator()
	}
	if opts.AdmissionRule != "" {
		if err := opts.Rules.ValidateExpression(opts.AdmissionRule); err != nil {
			return nil, fmt.Errorf("failed to compile admission rule: %w", err)
		}
	}
	if opts.Catalog == nil {
		catalog, err := template.NewCatalog(template.NewEngine(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create message catalog: %w", err)
		}
		opts.Catalog = catalog
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		evaluator:   formula.NewEvaluator(opts.Limits),
		concurrency: opts.Concurrency,
		rule:        opts.AdmissionRule,
		rules:       opts.Rules,
		catalog:     opts.Catalog,
		logger:      logger,
	}, nil
}

// EvaluateAll evaluates every case. The result has one outcome per case in
// input order; a failing case never affects the others.
func (s *Service) EvaluateAll(ctx context.Context, cases []Case) []Outcome {
	start := time.Now()
	outcomes := make([]Outcome, len(cases))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range cases {
		g.Go(func() error {
			outcomes[i] = s.evaluateCase(ctx, i, cases[i])
			return nil
		})
	}
	_ = g.Wait()

	s.logBatch(outcomes, start)
	return outcomes
}

// EvaluateJSON evaluates a JSON array of cases. An element that does not
// decode as a case becomes an error outcome; only a body that is not a JSON
// array fails the whole request.
func (s *Service) EvaluateJSON(ctx context.Context, body []byte) ([]Outcome, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}

	cases := make([]Case, len(raw))
	invalid := make(map[int]error)
	for i, r := range raw {
		if err := json.Unmarshal(r, &cases[i]); err != nil {
			invalid[i] = fmt.Errorf("invalid case: %w", err)
		}
	}
	if len(invalid) == 0 {
		return s.EvaluateAll(ctx, cases), nil
	}

	// Evaluate the decodable cases, then splice the decode errors back in.
	valid := make([]Case, 0, len(cases)-len(invalid))
	for i, c := range cases {
		if _, bad := invalid[i]; !bad {
			valid = append(valid, c)
		}
	}
	results := s.EvaluateAll(ctx, valid)
	outcomes := make([]Outcome, len(cases))
	for i, next := 0, 0; i < len(cases); i++ {
		if err, bad := invalid[i]; bad {
			s.logger.Warn("Invalid case", zap.Int("index", i), zap.Error(err))
			outcomes[i] = Outcome{Error: s.catalog.Render(err)}
			continue
		}
		outcomes[i] = results[next]
		next++
	}
	return outcomes, nil
}

func (s *Service) evaluateCase(ctx context.Context, index int, c Case) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Case evaluation panicked",
				zap.Int("index", index),
				zap.String("name", c.Name),
				zap.Any("panic", r),
			)
			out = Outcome{Error: s.catalog.Render(fmt.Errorf("internal error: %v", r))}
		}
	}()

	if err := s.admit(ctx, c); err != nil {
		return s.failure(index, c, err)
	}

	v, err := s.evaluator.Evaluate(ctx, c.Formula, formula.Bindings(c.Variables))
	if err != nil {
		return s.failure(index, c, err)
	}

	r := Round(v)
	s.logger.Debug("Case evaluated",
		zap.Int("index", index),
		zap.String("name", c.Name),
		zap.Float64("result", r),
	)
	return Outcome{Result: &r}
}

func (s *Service) admit(ctx context.Context, c Case) error {
	if s.rule == "" {
		return nil
	}
	ok, err := s.rules.Admit(ctx, s.rule, cel.Case{Name: c.Name, Formula: c.Formula, Variables: c.Variables})
	if err != nil {
		return &formula.Error{
			Code:     formula.CodeResourceExhausted,
			Message:  "admission rule failed: " + err.Error(),
			Metadata: map[string]string{"limit": "admission"},
			Cause:    err,
		}
	}
	if !ok {
		return &formula.Error{
			Code:     formula.CodeResourceExhausted,
			Message:  "case rejected by admission rule",
			Metadata: map[string]string{"limit": "admission"},
		}
	}
	return nil
}

func (s *Service) failure(index int, c Case, err error) Outcome {
	s.logger.Warn("Case failed",
		zap.Int("index", index),
		zap.String("name", c.Name),
		zap.String("code", string(formula.CodeOf(err))),
		zap.Error(err),
	)
	return Outcome{Error: s.catalog.Render(err)}
}

func (s *Service) logBatch(outcomes []Outcome, start time.Time) {
	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	s.logger.Info("Batch evaluated",
		zap.Int("cases", len(outcomes)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
}

// Round rounds v to 4 decimal places as %.4f formatting does. Values too
// large to carry a fraction are returned as is.
func Round(v float64) float64 {
	if math.Abs(v) >= 1e15 {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 4, 64), 64)
	if err != nil {
		return v
	}
	if r == 0 {
		return 0
	}
	return r
}
