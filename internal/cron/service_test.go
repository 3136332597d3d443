package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keydeck/keydeck-backend/pkg/logger"
)

type countingJob struct {
	name     string
	interval time.Duration
	runs     atomic.Int64
	err      error
}

func (j *countingJob) Name() string            { return j.name }
func (j *countingJob) Interval() time.Duration { return j.interval }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

type stubLock struct {
	locked bool
}

func (l *stubLock) Acquire(ctx context.Context) (bool, error) { return !l.locked, nil }
func (l *stubLock) Release(ctx context.Context) error         { return nil }

func stubLockFactory(jobName string, ttl time.Duration) (Lock, error) {
	return &stubLock{}, nil
}

func TestServiceRunsEachJobImmediately(t *testing.T) {
	t.Parallel()

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	first := &countingJob{name: "first", interval: time.Hour}
	second := &countingJob{name: "second", interval: time.Hour, err: errors.New("boom")}

	svc, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(first, second),
		Locks:    stubLockFactory,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = svc.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, int64(1), first.runs.Load())
	assert.Equal(t, int64(1), second.runs.Load())
}

func TestServiceSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	job := &countingJob{name: "locked", interval: time.Hour}

	svc, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Locks: func(jobName string, ttl time.Duration) (Lock, error) {
			return &stubLock{locked: true}, nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = svc.Run(ctx)

	assert.Equal(t, int64(0), job.runs.Load())
}

func TestRegistrySkipsNilJobs(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil, &countingJob{name: "real", interval: time.Minute})
	registry.Register(nil)
	assert.Len(t, registry.Jobs(), 1)
}
