package scheduler

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/possync/backend/internal/domain/sync"
)

type recordedRun struct {
	integrationID uuid.UUID
	start         time.Time
	end           time.Time
}

type fakeRunner struct {
	mu      gosync.Mutex
	runs    []recordedRun
	success bool
}

func (r *fakeRunner) Sync(_ context.Context, integrationID uuid.UUID, _ string, start, end time.Time) domain.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, recordedRun{integrationID: integrationID, start: start, end: end})
	return domain.Summary{Success: r.success, Period: domain.Window{Start: start, End: end}}
}

type fakeDueRepo struct {
	due []domain.Integration
	err error
}

func (r *fakeDueRepo) FindByID(context.Context, uuid.UUID) (*domain.Integration, error) {
	return nil, domain.ErrIntegrationNotFound
}

func (r *fakeDueRepo) FindDue(context.Context) ([]domain.Integration, error) {
	return r.due, r.err
}

func (r *fakeDueRepo) TryAcquireSyncLock(context.Context, uuid.UUID) (bool, error) {
	return false, nil
}

func (r *fakeDueRepo) ReleaseSyncLock(context.Context, uuid.UUID) error {
	return nil
}

func TestRunDue_FansOutPerIntegration(t *testing.T) {
	a := domain.Integration{ID: uuid.New(), Enabled: true, WindowDays: 7}
	b := domain.Integration{ID: uuid.New(), Enabled: true} // falls back to the default
	runner := &fakeRunner{success: true}

	s := NewSyncScheduler(
		Config{DefaultWindowDays: 2},
		runner,
		&fakeDueRepo{due: []domain.Integration{a, b}},
		zap.NewNop(),
	)
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, domain.BusinessLocation())
	s.now = func() time.Time { return now }

	s.RunDue(context.Background())

	require.Len(t, runner.runs, 2)
	assert.Equal(t, a.ID, runner.runs[0].integrationID)
	assert.Equal(t, b.ID, runner.runs[1].integrationID)

	// Integration a covers 7 days ending today; b covers the default 2.
	wantA, err := domain.ComputeWindow(now, 7)
	require.NoError(t, err)
	assert.True(t, runner.runs[0].start.Equal(wantA.Start))
	assert.True(t, runner.runs[0].end.Equal(wantA.End))

	wantB, err := domain.ComputeWindow(now, 2)
	require.NoError(t, err)
	assert.True(t, runner.runs[1].start.Equal(wantB.Start))
	assert.True(t, runner.runs[1].end.Equal(wantB.End))
}

func TestRunDue_ListFailureRunsNothing(t *testing.T) {
	runner := &fakeRunner{success: true}
	s := NewSyncScheduler(Config{}, runner, &fakeDueRepo{err: errors.New("db down")}, zap.NewNop())

	s.RunDue(context.Background())

	assert.Empty(t, runner.runs)
}

func TestRunDue_StopsOnCancelledContext(t *testing.T) {
	due := []domain.Integration{
		{ID: uuid.New(), Enabled: true},
		{ID: uuid.New(), Enabled: true},
	}
	runner := &fakeRunner{success: true}
	s := NewSyncScheduler(Config{}, runner, &fakeDueRepo{due: due}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunDue(ctx)

	assert.Empty(t, runner.runs)
}

func TestSyncScheduler_StartStop(t *testing.T) {
	runner := &fakeRunner{success: true}
	s := NewSyncScheduler(Config{CronSchedule: "0 5 * * *"}, runner, &fakeDueRepo{}, zap.NewNop())

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrSchedulerAlreadyStarted)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	// Stopping again is a no-op.
	require.NoError(t, s.Stop(ctx))
}

func TestSyncScheduler_RejectsInvalidSchedule(t *testing.T) {
	s := NewSyncScheduler(Config{CronSchedule: "not a schedule"}, &fakeRunner{}, &fakeDueRepo{}, zap.NewNop())
	assert.Error(t, s.Start())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var c Config
	c.applyDefaults()

	assert.Equal(t, "0 5 * * *", c.CronSchedule)
	assert.Equal(t, 3, c.DefaultWindowDays)
	assert.Equal(t, 30*time.Minute, c.RunTimeout)
}
