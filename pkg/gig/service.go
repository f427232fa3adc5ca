package gig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cgast/gigsmith/internal/logger"
	"github.com/cgast/gigsmith/pkg/orchestrator"
	"github.com/cgast/gigsmith/pkg/synth"
	"github.com/cgast/gigsmith/pkg/task"
)

// ErrInvalidRequest is returned for requests that fail validation.
var ErrInvalidRequest = errors.New("invalid request")

// Request asks for one listing.
type Request struct {
	Keyword string `json:"keyword" validate:"required,min=2,max=120"`
}

// Response is the outcome of a request. On failure only Error is set.
type Response struct {
	RunID    string   `json:"run_id,omitempty"`
	Listing  *Listing `json:"listing,omitempty"`
	Repaired []string `json:"repaired,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// RunStore keeps reports of finished runs.
type RunStore interface {
	Record(res *orchestrator.Result) error
}

// Service turns keywords into listings.
type Service struct {
	graph    *orchestrator.Graph
	orch     *orchestrator.Orchestrator
	validate *validator.Validate
	store    RunStore
	logger   logger.Logger

	specs      []task.Spec
	synthOpts  []synth.Option
	runnerOpts []task.RunnerOption
	orchOpts   []orchestrator.Option
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSpecs replaces the task catalogue.
func WithSpecs(specs []task.Spec) ServiceOption {
	return func(s *Service) { s.specs = specs }
}

// WithSynthOptions adds synthesizer options, such as a fixed seed.
func WithSynthOptions(opts ...synth.Option) ServiceOption {
	return func(s *Service) { s.synthOpts = append(s.synthOpts, opts...) }
}

func WithRunnerOptions(opts ...task.RunnerOption) ServiceOption {
	return func(s *Service) { s.runnerOpts = append(s.runnerOpts, opts...) }
}

func WithOrchestratorOptions(opts ...orchestrator.Option) ServiceOption {
	return func(s *Service) { s.orchOpts = append(s.orchOpts, opts...) }
}

// WithStore records a report of every run.
func WithStore(store RunStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService builds the task graph and wires gen, the gig fallbacks and the
// orchestrator together. It fails when the catalogue is not a valid graph.
func NewService(gen task.Generator, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		specs:    Catalogue(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	g, err := orchestrator.BuildGraph(s.specs)
	if err != nil {
		return nil, err
	}
	s.graph = g

	fallback := synth.New(append(append(Fallbacks(), synth.WithLogger(s.logger)), s.synthOpts...)...)
	runner := task.NewRunner(gen, fallback, append([]task.RunnerOption{task.WithLogger(s.logger)}, s.runnerOpts...)...)
	s.orch = orchestrator.New(runner, append([]orchestrator.Option{orchestrator.WithLogger(s.logger)}, s.orchOpts...)...)
	return s, nil
}

// Graph returns the task graph the service runs.
func (s *Service) Graph() *orchestrator.Graph { return s.graph }

// Specs returns copies of the specs the service runs, in catalogue order.
func (s *Service) Specs() []task.Spec {
	specs := s.graph.Specs()
	out := make([]task.Spec, len(specs))
	for i, sp := range specs {
		out[i] = *sp
	}
	return out
}

// Generate produces a complete listing for req. Generation failures never
// surface here; only invalid requests and configuration errors do.
func (s *Service) Generate(ctx context.Context, req Request) Response {
	req.Keyword = strings.TrimSpace(req.Keyword)
	if err := s.Validate(req); err != nil {
		return Response{Error: err.Error()}
	}

	res, err := s.orch.Run(ctx, s.graph, map[string]any{"keyword": req.Keyword})
	if err != nil {
		return Response{Error: err.Error()}
	}
	listing, err := Compose(res)
	if err != nil {
		// A failed response carries no run id.
		s.logger.Error("compose listing", "run", res.RunID, "error", err)
		return Response{Error: err.Error()}
	}

	if s.store != nil {
		if err := s.store.Record(res); err != nil {
			s.logger.Warn("record run", "run", res.RunID, "error", err)
		}
	}
	return Response{RunID: res.RunID, Listing: listing, Repaired: res.Repaired()}
}

// Validate checks a request without running anything.
func (s *Service) Validate(req Request) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
