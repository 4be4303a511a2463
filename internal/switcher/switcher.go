// Package switcher orchestrates one model switch: lock, snapshot, atomic
// pointer swap, container restart, health poll, and rollback when the
// new model never becomes healthy.
package switcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/model-switcher/model-switcher/internal/catalog"
	"github.com/model-switcher/model-switcher/internal/config"
	"github.com/model-switcher/model-switcher/internal/health"
	"github.com/model-switcher/model-switcher/internal/lock"
	"github.com/model-switcher/model-switcher/internal/logging"
	"github.com/model-switcher/model-switcher/internal/metrics"
	"github.com/model-switcher/model-switcher/internal/pointer"
	"github.com/model-switcher/model-switcher/pkg/models"
)

// Phase is one state of a switch invocation. No phase survives across
// invocations; the only persistent artifacts are the pointer and markers.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseLocked        Phase = "locked"
	PhaseSwapped       Phase = "swapped"
	PhaseRestarting    Phase = "restarting"
	PhaseHealthPolling Phase = "health-polling"
	PhaseHealthy       Phase = "healthy"
	PhaseRollingBack   Phase = "rolling-back"
	PhaseRolledBack    Phase = "rolled-back"
	PhaseFailed        Phase = "failed"
)

// ContainerController drives the dependent container
type ContainerController interface {
	IsRunning(ctx context.Context, name string) (bool, error)
	Restart(ctx context.Context, name string) error
	LogTail(ctx context.Context, name string, lines int) string
}

// HealthProber polls the inference server's readiness endpoint
type HealthProber interface {
	Probe(ctx context.Context, url string) (*health.ProbeResult, error)
}

// Switcher performs health-gated model switches
type Switcher struct {
	dir       string
	linkName  string
	lockPath  string
	container string
	healthURL string

	containers ContainerController
	prober     HealthProber
	confirm    HealthProber // short confirmation poll after a rollback

	metricsFile string
	logger      *slog.Logger
	newID       func() string
}

// Option configures the Switcher
type Option func(*Switcher)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Switcher) {
		s.logger = logger
	}
}

// WithProber substitutes the main health prober
func WithProber(p HealthProber) Option {
	return func(s *Switcher) {
		s.prober = p
	}
}

// WithConfirmProber substitutes the post-rollback confirmation prober
func WithConfirmProber(p HealthProber) Option {
	return func(s *Switcher) {
		s.confirm = p
	}
}

// WithIDFunc substitutes switch ID generation (for testing)
func WithIDFunc(fn func() string) Option {
	return func(s *Switcher) {
		s.newID = fn
	}
}

// New creates a switcher from configuration
func New(cfg *config.Config, containers ContainerController, opts ...Option) *Switcher {
	s := &Switcher{
		dir:         cfg.Models.Dir,
		linkName:    cfg.Models.ActiveLinkName,
		lockPath:    cfg.Models.LockPath(),
		container:   cfg.Container.Name,
		healthURL:   cfg.Health.URL,
		metricsFile: cfg.Metrics.File,
		containers:  containers,
		logger:      slog.Default(),
		newID:       func() string { return uuid.NewString()[:8] },
		prober: health.NewProber(
			health.WithWaitBudget(cfg.Health.WaitBudget),
			health.WithPollInterval(cfg.Health.PollInterval),
			health.WithRequestTimeout(cfg.Health.RequestTimeout),
		),
		confirm: health.NewProber(
			health.WithWaitBudget(cfg.Health.RollbackWaitBudget),
			health.WithPollInterval(cfg.Health.PollInterval),
			health.WithRequestTimeout(cfg.Health.RequestTimeout),
		),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Switch transitions the inference server to target. The returned result
// always carries a terminal outcome; err is non-nil for every outcome
// the operator must treat as a failure (including rolled-back).
func (s *Switcher) Switch(ctx context.Context, target string) (*models.SwitchResult, error) {
	switchID := s.newID()
	ctx = logging.WithSwitchID(ctx, switchID)
	ctx = logging.WithModel(ctx, target)
	ctx = logging.WithContainer(ctx, s.container)

	start := time.Now()
	result := &models.SwitchResult{
		Outcome:  models.OutcomeFailed,
		SwitchID: switchID,
		Model:    target,
	}
	defer func() {
		result.Duration = time.Since(start)
		metrics.SwitchesTotal.WithLabelValues(string(result.Outcome)).Inc()
		metrics.WriteTextfile(ctx, s.metricsFile)
		logging.Audit(ctx, "switch",
			"outcome", string(result.Outcome),
			"previous", result.Previous,
			"healthy", result.Healthy)
	}()

	// Selecting the active model is a no-op: no lock, no mutation
	if current, ok := catalog.ResolveCurrent(ctx, s.dir, s.linkName); ok && current == target {
		logging.Info(ctx, "model already active, nothing to do")
		result.Outcome = models.OutcomeNoop
		result.Previous = current
		result.Healthy = true
		return result, nil
	}

	if _, err := os.Stat(filepath.Join(s.dir, target)); err != nil {
		return result, &TargetNotFoundError{Name: target, Dir: s.dir}
	}

	lk, err := lock.Acquire(s.lockPath, switchID)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := lk.Release(); err != nil {
			logging.Warn(ctx, "failed to release lock", slog.String("error", err.Error()))
		}
	}()
	s.logPhase(ctx, PhaseLocked)

	prev, hasPrev := pointer.Backup(ctx, s.dir, s.linkName)
	result.Previous = prev

	if err := pointer.Swap(ctx, s.dir, s.linkName, target); err != nil {
		return result, err
	}
	s.logPhase(ctx, PhaseSwapped)

	pointer.WriteMarkers(ctx, s.dir, target, prev)

	running, err := s.containers.IsRunning(ctx, s.container)
	if err != nil {
		// Pointer already committed; the failure is only the status query
		result.Warnings = append(result.Warnings, "pointer updated but container status unknown")
		return result, err
	}
	if !running {
		logging.Warn(ctx, "container not running, switch takes effect on next start")
		pointer.DiscardBackup(ctx, s.dir, s.linkName)
		result.Outcome = models.OutcomeCommitted
		result.Warnings = append(result.Warnings,
			"container is not running; the new model loads on its next start")
		return result, nil
	}

	s.logPhase(ctx, PhaseRestarting)
	if err := s.containers.Restart(ctx, s.container); err != nil {
		// Fatal, no rollback: the pointer swap is valid for the next start
		metrics.RestartsTotal.WithLabelValues("error").Inc()
		return result, err
	}
	metrics.RestartsTotal.WithLabelValues("ok").Inc()

	s.logPhase(ctx, PhaseHealthPolling)
	probe, probeErr := s.prober.Probe(ctx, s.healthURL)
	if probe != nil {
		result.Attempts = probe.Attempts
		metrics.ObserveHealthPoll(probe.Duration, probe.Attempts)
	}

	if probeErr == nil {
		s.logPhase(ctx, PhaseHealthy)
		pointer.DiscardBackup(ctx, s.dir, s.linkName)
		result.Outcome = models.OutcomeCommitted
		result.Healthy = true
		return result, nil
	}
	if ctx.Err() != nil {
		return result, probeErr
	}

	logging.Error(ctx, "health check timed out", slog.String("error", probeErr.Error()))

	if !hasPrev {
		// First-ever switch: nothing to roll back to. Hard failure, the
		// operator must intervene.
		logging.Error(ctx, "no rollback backup exists, leaving pointer in place")
		return result, probeErr
	}

	return s.rollback(ctx, result, probeErr)
}

// rollback restores the previous pointer, restarts the container once
// more, and runs one short confirmation poll. Attempted exactly once.
func (s *Switcher) rollback(ctx context.Context, result *models.SwitchResult, timeoutErr error) (*models.SwitchResult, error) {
	s.logPhase(ctx, PhaseRollingBack)
	metrics.RollbacksTotal.Inc()

	restored, err := pointer.Restore(ctx, s.dir, s.linkName)
	if err != nil {
		return result, &RollbackError{Timeout: timeoutErr, Err: err}
	}
	logging.Info(ctx, "pointer restored", slog.String("restored", restored))

	pointer.WriteMarkers(ctx, s.dir, restored, result.Model)

	if err := s.containers.Restart(ctx, s.container); err != nil {
		metrics.RestartsTotal.WithLabelValues("error").Inc()
		return result, &RollbackError{Timeout: timeoutErr, Err: err}
	}
	metrics.RestartsTotal.WithLabelValues("ok").Inc()

	// Best-effort confirmation: the rollback stands either way
	probe, confirmErr := s.confirm.Probe(ctx, s.healthURL)
	if confirmErr != nil {
		logging.Warn(ctx, "previous model did not confirm healthy after rollback",
			slog.String("error", confirmErr.Error()))
	}

	s.logPhase(ctx, PhaseRolledBack)
	result.Outcome = models.OutcomeRolledBack
	result.Healthy = probe != nil && probe.Healthy
	return result, timeoutErr
}

func (s *Switcher) logPhase(ctx context.Context, phase Phase) {
	s.logger.DebugContext(ctx, "phase transition", slog.String("phase", string(phase)))
}
