package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/evidence/recorder"
	"mercator-hq/certify/pkg/evidence/storage"
	"mercator-hq/certify/pkg/policy/dispatch"
	"mercator-hq/certify/pkg/policy/engine"
	"mercator-hq/certify/pkg/policy/git"
	"mercator-hq/certify/pkg/policy/index"
	"mercator-hq/certify/pkg/report"
	"mercator-hq/certify/pkg/scoring"
	"mercator-hq/certify/pkg/telemetry/logging"
	"mercator-hq/certify/pkg/telemetry/metrics"
)

// Runtime holds the collaborators shared by every run of a process. It is
// built once and passed to the entry points; nothing is global.
type Runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	scoring    scoring.Backend
	engine     engine.Engine
	index      *index.Index
	dispatcher *dispatch.Dispatcher
	reports    *report.Writer
	storage    evidence.Storage
	recorder   *recorder.Recorder
	metrics    *metrics.Collector
	now        func() time.Time

	// policyErr is why no dispatcher is available, if none is.
	policyErr     error
	policyVersion string
}

// Option overrides a collaborator built by NewRuntime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithScoringBackend replaces the configured scoring backend.
func WithScoringBackend(b scoring.Backend) Option {
	return func(rt *Runtime) { rt.scoring = b }
}

// WithEngine replaces the configured policy engine.
func WithEngine(e engine.Engine) Option {
	return func(rt *Runtime) { rt.engine = e }
}

// WithIndex uses idx instead of indexing the configured policy root.
func WithIndex(idx *index.Index) Option {
	return func(rt *Runtime) { rt.index = idx }
}

// WithEvidenceStorage replaces the configured evidence backend.
func WithEvidenceStorage(s evidence.Storage) Option {
	return func(rt *Runtime) { rt.storage = s }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(rt *Runtime) { rt.metrics = c }
}

// WithClock replaces the clock used for run timestamps and report names.
func WithClock(now func() time.Time) Option {
	return func(rt *Runtime) { rt.now = now }
}

// NewRuntime builds the runtime from cfg. A policy repository that cannot
// be synced or indexed does not fail construction: runs report it as a
// dispatch error instead. Misconfigured scoring, engine or evidence
// backends do fail.
func NewRuntime(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	rt := &Runtime{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(rt)
	}

	if rt.logger == nil {
		l, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		rt.logger = l
	}
	if rt.metrics == nil && cfg.Telemetry.Metrics.Enabled {
		rt.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	if rt.scoring == nil {
		b, err := scoring.New(cfg.Scoring, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create scoring backend: %w", err)
		}
		rt.scoring = b
	}

	if rt.engine == nil {
		e, err := engine.New(cfg.Engine, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create policy engine: %w", err)
		}
		rt.engine = e
	}

	if rt.index == nil {
		rt.index, rt.policyErr = rt.loadPolicies(ctx)
		if rt.policyErr != nil {
			rt.logger.Warn("policy repository unavailable, policy evaluation will fail",
				"root", cfg.Policy.Root,
				"error", rt.policyErr,
			)
		}
	}
	if rt.index != nil {
		rt.dispatcher = dispatch.New(rt.index, rt.engine, rt.logger, rt.metrics)
	}

	rt.reports = report.NewWriter(cfg.Report, rt.logger, rt.metrics)
	rt.reports.SetClock(rt.now)

	if rt.storage == nil && cfg.Evidence.Enabled {
		s, err := storage.New(cfg.Evidence, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open evidence storage: %w", err)
		}
		rt.storage = s
	}
	if rt.storage != nil {
		rt.recorder = recorder.New(rt.storage, rt.logger)
		rt.recorder.SetClock(rt.now)
	}

	rt.logger.Debug("runtime initialized",
		"scoring", rt.scoring.Name(),
		"engine", rt.engine.Name(),
		"policy_version", rt.policyVersion,
		"evidence", rt.storage != nil,
	)
	return rt, nil
}

// loadPolicies syncs the Git repository when configured and indexes the
// policy root.
func (rt *Runtime) loadPolicies(ctx context.Context) (*index.Index, error) {
	root := rt.cfg.Policy.Root
	if rt.cfg.Policy.Git.Enabled {
		src, err := git.NewSource(rt.cfg.Policy.Git, rt.logger)
		if err != nil {
			return nil, err
		}
		if _, err := src.Sync(ctx); err != nil {
			return nil, fmt.Errorf("failed to sync policy repository: %w", err)
		}
		if commit, err := src.CurrentCommit(); err == nil {
			rt.policyVersion = commit.SHA
		}
		root = src.PolicyPath()
	}

	return index.BuildWithOptions(root, index.Options{
		LibraryDirs: rt.cfg.Policy.LibraryDirs,
		Extension:   rt.cfg.Policy.Extension,
	})
}

// Config returns the configuration the runtime was built from.
func (rt *Runtime) Config() *config.Config { return rt.cfg }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Metrics returns the metrics collector, nil when metrics are disabled.
func (rt *Runtime) Metrics() *metrics.Collector { return rt.metrics }

// Index returns the policy index and the reason it is missing, if it is.
func (rt *Runtime) Index() (*index.Index, error) {
	if rt.index == nil {
		return nil, rt.unavailable()
	}
	return rt.index, nil
}

// PolicyVersion returns the commit of a Git-backed policy repository.
func (rt *Runtime) PolicyVersion() string { return rt.policyVersion }

// Close releases the evidence storage.
func (rt *Runtime) Close() error {
	if rt.storage == nil {
		return nil
	}
	return rt.storage.Close()
}

var errNoPolicies = errors.New("policy index unavailable")

func (rt *Runtime) unavailable() error {
	if rt.policyErr != nil {
		return fmt.Errorf("%w: %w", errNoPolicies, rt.policyErr)
	}
	return errNoPolicies
}
