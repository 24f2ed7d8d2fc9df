package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReconciler struct {
	calls int32
	err   error
	block chan struct{}
	panic bool
}

func (c *countingReconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.block != nil {
		<-c.block
	}
	if c.panic {
		panic("reconcile exploded")
	}
	return ReconcileReport{Reindexed: 2}, c.err
}

func TestMaintenanceRunOnce(t *testing.T) {
	r := &countingReconciler{}
	m := NewMaintenance(r, "", 0, zerolog.Nop())

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Reindexed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.calls))

	r.err = errors.New("db locked")
	_, err = m.RunOnce(context.Background())
	assert.EqualError(t, err, "db locked")
}

func TestMaintenanceSkipsOverlappingRuns(t *testing.T) {
	r := &countingReconciler{block: make(chan struct{})}
	m := NewMaintenance(r, "", 0, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		_, _ = m.RunOnce(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&r.calls) == 1 }, time.Second, time.Millisecond)

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Reindexed)

	close(r.block)
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.calls))
}

func TestMaintenanceSchedule(t *testing.T) {
	r := &countingReconciler{}

	m := NewMaintenance(r, "@every 1s", time.Second, zerolog.Nop())
	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&r.calls) >= 1 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)

	assert.Error(t, NewMaintenance(r, "not a schedule", 0, zerolog.Nop()).Start())

	disabled := NewMaintenance(r, "", 0, zerolog.Nop())
	require.NoError(t, disabled.Start())
	disabled.Stop(context.Background())
}

func TestMaintenanceSurvivesPanickingJob(t *testing.T) {
	r := &countingReconciler{panic: true}

	m := NewMaintenance(r, "@every 1s", time.Second, zerolog.Nop())
	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&r.calls) >= 2 }, 4*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)

	// the running flag is released after a panic
	r.panic = false
	_, err := m.RunOnce(context.Background())
	require.NoError(t, err)
}
