package switcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/model-switcher/model-switcher/internal/config"
	"github.com/model-switcher/model-switcher/internal/health"
	"github.com/model-switcher/model-switcher/internal/lock"
	"github.com/model-switcher/model-switcher/internal/pointer"
	"github.com/model-switcher/model-switcher/pkg/models"
)

const linkName = "current.gguf"

// fakeContainers scripts the container collaborator
type fakeContainers struct {
	running     bool
	runningErr  error
	restartErrs []error // popped per restart; nil slice means all succeed
	restarts    int
}

func (f *fakeContainers) IsRunning(ctx context.Context, name string) (bool, error) {
	return f.running, f.runningErr
}

func (f *fakeContainers) Restart(ctx context.Context, name string) error {
	f.restarts++
	if len(f.restartErrs) > 0 {
		err := f.restartErrs[0]
		f.restartErrs = f.restartErrs[1:]
		return err
	}
	return nil
}

func (f *fakeContainers) LogTail(ctx context.Context, name string, lines int) string {
	return "log tail"
}

// fakeProber replays scripted probe outcomes
type fakeProber struct {
	healthy bool
	probes  int
}

func (f *fakeProber) Probe(ctx context.Context, url string) (*health.ProbeResult, error) {
	f.probes++
	if f.healthy {
		return &health.ProbeResult{Healthy: true, Attempts: 1, Duration: time.Millisecond}, nil
	}
	return &health.ProbeResult{Attempts: 5, Duration: time.Millisecond, LastError: "health endpoint returned 503"},
		&health.TimeoutError{URL: url, Attempts: 5, Budget: time.Second, LastError: "health endpoint returned 503"}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Models:    config.ModelsConfig{Dir: dir, ActiveLinkName: linkName},
		Container: config.ContainerConfig{Name: "llama-server", LogTailLines: 50},
		Health: config.HealthConfig{
			URL:                "http://localhost:8080/health",
			WaitBudget:         time.Second,
			PollInterval:       10 * time.Millisecond,
			RequestTimeout:     10 * time.Millisecond,
			RollbackWaitBudget: time.Second,
		},
	}
}

func writeModel(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
}

func activate(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, pointer.Swap(context.Background(), dir, linkName, name))
}

func readLink(t *testing.T, dir string) string {
	t.Helper()
	target, err := os.Readlink(filepath.Join(dir, linkName))
	require.NoError(t, err)
	return filepath.Base(target)
}

func lockAbsent(t *testing.T, cfg *config.Config) {
	t.Helper()
	_, err := os.Stat(cfg.Models.LockPath())
	assert.True(t, os.IsNotExist(err), "lock file must be released")
}

func TestSwitch_Committed(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	writeModel(t, dir, "b.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)
	containers := &fakeContainers{running: true}
	s := New(cfg, containers,
		WithProber(&fakeProber{healthy: true}),
		WithConfirmProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "b.gguf")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCommitted, result.Outcome)
	assert.Equal(t, "a.gguf", result.Previous)
	assert.True(t, result.Healthy)
	assert.Equal(t, "b.gguf", readLink(t, dir))
	assert.Equal(t, 1, containers.restarts)

	// Backup consumed, lock released, markers written
	_, ok := pointer.ReadBackup(dir, linkName)
	assert.False(t, ok)
	lockAbsent(t, cfg)

	hist := pointer.ReadHistory(dir)
	assert.Equal(t, "b.gguf", hist.Current)
	assert.Equal(t, "a.gguf", hist.Previous)
}

func TestSwitch_NoopWhenAlreadyActive(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	activate(t, dir, "a.gguf")

	containers := &fakeContainers{running: true}
	s := New(testConfig(dir), containers, WithProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "a.gguf")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeNoop, result.Outcome)
	assert.Equal(t, 0, containers.restarts)
	assert.Equal(t, "a.gguf", readLink(t, dir))
}

func TestSwitch_LockContention(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	writeModel(t, dir, "b.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)
	held, err := lock.Acquire(cfg.Models.LockPath(), "other")
	require.NoError(t, err)
	defer held.Release()

	containers := &fakeContainers{running: true}
	s := New(cfg, containers, WithProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "b.gguf")
	require.Error(t, err)

	var heldErr *lock.HeldError
	assert.True(t, errors.As(err, &heldErr))
	assert.Equal(t, models.OutcomeFailed, result.Outcome)

	// No filesystem mutation, no restart
	assert.Equal(t, "a.gguf", readLink(t, dir))
	assert.Equal(t, 0, containers.restarts)
	_, ok := pointer.ReadBackup(dir, linkName)
	assert.False(t, ok)
}

func TestSwitch_TargetMissing(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)
	s := New(cfg, &fakeContainers{running: true}, WithProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "missing.gguf")
	require.Error(t, err)

	var notFound *TargetNotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Equal(t, "a.gguf", readLink(t, dir))
	lockAbsent(t, cfg)
}

func TestSwitch_RolledBackOnTimeout(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	writeModel(t, dir, "b.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)
	containers := &fakeContainers{running: true}
	s := New(cfg, containers,
		WithProber(&fakeProber{healthy: false}),
		WithConfirmProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "b.gguf")
	require.Error(t, err)

	var timeout *health.TimeoutError
	assert.True(t, errors.As(err, &timeout))

	assert.Equal(t, models.OutcomeRolledBack, result.Outcome)
	assert.True(t, result.Healthy, "previous model confirmed healthy")
	assert.Equal(t, "a.gguf", readLink(t, dir))
	assert.Equal(t, 2, containers.restarts, "one restart for the switch, one for the rollback")

	_, ok := pointer.ReadBackup(dir, linkName)
	assert.False(t, ok, "backup consumed by the rollback")
	lockAbsent(t, cfg)

	hist := pointer.ReadHistory(dir)
	assert.Equal(t, "a.gguf", hist.Current)
}

func TestSwitch_TimeoutWithoutBackup(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "b.gguf")
	// No active pointer: first-ever switch

	cfg := testConfig(dir)
	containers := &fakeContainers{running: true}
	s := New(cfg, containers,
		WithProber(&fakeProber{healthy: false}),
		WithConfirmProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "b.gguf")
	require.Error(t, err)

	var timeout *health.TimeoutError
	assert.True(t, errors.As(err, &timeout))

	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Equal(t, "b.gguf", readLink(t, dir), "no recovery attempted, pointer left in place")
	assert.Equal(t, 1, containers.restarts)
	lockAbsent(t, cfg)
}

func TestSwitch_ContainerNotRunning(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	writeModel(t, dir, "b.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)
	containers := &fakeContainers{running: false}
	s := New(cfg, containers, WithProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "b.gguf")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCommitted, result.Outcome)
	assert.False(t, result.Healthy)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, 0, containers.restarts)
	assert.Equal(t, "b.gguf", readLink(t, dir))
	lockAbsent(t, cfg)
}

func TestSwitch_RestartFailed(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	writeModel(t, dir, "b.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)
	containers := &fakeContainers{running: true, restartErrs: []error{errors.New("exit status 1")}}
	s := New(cfg, containers, WithProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "b.gguf")
	require.Error(t, err)

	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	// The pointer swap stands: it is valid for the next manual start
	assert.Equal(t, "b.gguf", readLink(t, dir))
	assert.Equal(t, 1, containers.restarts)
	lockAbsent(t, cfg)
}

func TestSwitch_RollbackRestartFails(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	writeModel(t, dir, "b.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)
	containers := &fakeContainers{
		running:     true,
		restartErrs: []error{nil, errors.New("exit status 1")},
	}
	s := New(cfg, containers,
		WithProber(&fakeProber{healthy: false}),
		WithConfirmProber(&fakeProber{healthy: true}))

	result, err := s.Switch(context.Background(), "b.gguf")
	require.Error(t, err)

	var rollbackErr *RollbackError
	require.True(t, errors.As(err, &rollbackErr))
	assert.Equal(t, models.OutcomeFailed, result.Outcome)

	// The pointer itself was restored before the restart failed
	assert.Equal(t, "a.gguf", readLink(t, dir))
	lockAbsent(t, cfg)
}

func TestSwitch_RolledBackButUnconfirmed(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	writeModel(t, dir, "b.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)
	containers := &fakeContainers{running: true}
	s := New(cfg, containers,
		WithProber(&fakeProber{healthy: false}),
		WithConfirmProber(&fakeProber{healthy: false}))

	result, err := s.Switch(context.Background(), "b.gguf")
	require.Error(t, err)

	assert.Equal(t, models.OutcomeRolledBack, result.Outcome)
	assert.False(t, result.Healthy, "rollback is best-effort, not guaranteed healthy")
	assert.Equal(t, "a.gguf", readLink(t, dir))
}

func TestSwitch_PointerNeverDangling(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf")
	writeModel(t, dir, "b.gguf")
	activate(t, dir, "a.gguf")

	cfg := testConfig(dir)

	// A concurrent reader polls the pointer while switches run back and
	// forth; it must always resolve to an existing artifact.
	stop := make(chan struct{})
	violations := make(chan string, 1)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			target, err := os.Readlink(filepath.Join(dir, linkName))
			if err != nil {
				select {
				case violations <- "pointer missing: " + err.Error():
				default:
				}
				return
			}
			if _, err := os.Stat(filepath.Join(dir, filepath.Base(target))); err != nil {
				select {
				case violations <- "pointer dangling: " + target:
				default:
				}
				return
			}
		}
	}()

	s := New(cfg, &fakeContainers{running: true}, WithProber(&fakeProber{healthy: true}))
	targets := []string{"b.gguf", "a.gguf", "b.gguf", "a.gguf"}
	for _, target := range targets {
		_, err := s.Switch(context.Background(), target)
		require.NoError(t, err)
	}

	close(stop)
	select {
	case v := <-violations:
		t.Fatal(v)
	default:
	}
}
