package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cgast/gigsmith/internal/config"
	"github.com/cgast/gigsmith/internal/logger"
	"github.com/cgast/gigsmith/internal/metrics"
	"github.com/cgast/gigsmith/pkg/events"
	"github.com/cgast/gigsmith/pkg/generate"
	"github.com/cgast/gigsmith/pkg/gig"
	"github.com/cgast/gigsmith/pkg/history"
	"github.com/cgast/gigsmith/pkg/orchestrator"
	"github.com/cgast/gigsmith/pkg/spec"
	"github.com/cgast/gigsmith/pkg/synth"
	"github.com/cgast/gigsmith/pkg/task"
)

// app holds the components a command runs with.
type app struct {
	cfg     config.Config
	log     logger.Logger
	svc     *gig.Service
	bus     *events.MemoryBus
	metrics *metrics.Metrics
	store   *history.Store
}

// appOptions are per-command adjustments on top of the config file.
type appOptions struct {
	seed      *uint64
	graphFile string
	noHistory bool
}

func loadConfig(flags *globalFlags) (config.Config, logger.Logger, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logJSON {
		cfg.LogJSON = true
	}

	lc := logger.DefaultConfig()
	lc.Level = logger.ParseLevel(cfg.LogLevel)
	lc.JSON = cfg.LogJSON
	return cfg, logger.NewLogger(lc), nil
}

func newApp(flags *globalFlags, opts appOptions) (*app, error) {
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{
		cfg:     cfg,
		log:     log,
		bus:     events.NewMemoryBus(),
		metrics: metrics.New(),
	}

	reg, gen, err := generate.FromConfig(cfg.Generator.Config)
	if err != nil {
		return nil, err
	}
	log.Debug("generator ready", "backend", cfg.Generator.Backend, "available", reg.Names())

	svcOpts := []gig.ServiceOption{
		gig.WithLogger(log),
		gig.WithRunnerOptions(
			task.WithTimeout(cfg.Generator.Timeout),
			task.WithRetry(cfg.Generator.Attempts, cfg.Generator.Backoff),
		),
		gig.WithOrchestratorOptions(
			orchestrator.WithMaxParallel(cfg.Orchestrator.MaxParallel),
			orchestrator.WithPublisher(a.bus),
			orchestrator.WithRecorder(a.metrics),
		),
	}

	seed := cfg.Fallback.Seed
	if opts.seed != nil {
		seed = opts.seed
	}
	if seed != nil {
		svcOpts = append(svcOpts, gig.WithSynthOptions(synth.WithSeed(*seed)))
	}

	graphFile := cfg.GraphFile
	if opts.graphFile != "" {
		graphFile = opts.graphFile
	}
	if graphFile != "" {
		specs, err := loadSpecs(graphFile)
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, gig.WithSpecs(specs))
		a.bus.Publish(events.NewEvent(events.EventGraphLoaded, map[string]any{
			"path":  graphFile,
			"tasks": len(specs),
		}))
		log.Info("task graph loaded", "path", graphFile, "tasks", len(specs))
	}

	if cfg.History.Persist && !opts.noHistory {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		store, err := history.Open(cfg.History.Path, cfg.History.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.store = store
		svcOpts = append(svcOpts, gig.WithStore(store))
	}

	svc, err := gig.NewService(gen, svcOpts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build task graph: %w", err)
	}
	a.svc = svc
	return a, nil
}

// loadSpecs reads a graph file and resolves it against the gig catalogue.
func loadSpecs(path string) ([]task.Spec, error) {
	g, err := spec.LoadGraph(path, nil)
	if err != nil {
		return nil, err
	}
	return spec.Resolve(g, gig.Catalogue())
}

// runs returns the history reader, or nil when history is off.
func (a *app) runs() history.Reader {
	if a.store == nil {
		return nil
	}
	return a.store
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close history", "error", err)
	}
}

func since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
