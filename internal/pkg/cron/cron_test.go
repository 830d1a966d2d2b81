package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRecordsStatus(t *testing.T) {
	s := New(nil)
	s.Register(Job{Name: "ok", Interval: time.Hour, Fn: func(context.Context) error { return nil }})
	s.Register(Job{Name: "bad", Interval: time.Hour, Fn: func(context.Context) error { return errors.New("disk full") }})
	s.Register(Job{Name: "panics", Interval: time.Hour, Fn: func(context.Context) error { panic("boom") }})

	ctx := context.Background()
	require.NoError(t, s.Run(ctx, "ok"))
	assert.EqualError(t, s.Run(ctx, "bad"), "disk full")
	assert.ErrorContains(t, s.Run(ctx, "panics"), "panicked: boom")
	assert.ErrorIs(t, s.Run(ctx, "missing"), ErrJobNotFound)

	items := s.List()
	require.Len(t, items, 3)
	assert.Equal(t, "bad", items[0].Name)
	assert.Equal(t, StatusReject, items[0].Status)
	assert.Equal(t, "disk full", items[0].Message)
	assert.Equal(t, StatusFulfill, items[1].Status)
	assert.NotNil(t, items[1].LastRunAt)
	assert.Equal(t, StatusReject, items[2].Status)
}

func TestStartRunsOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := New(nil)
	s.Register(Job{Name: "tick", Interval: 10 * time.Millisecond, Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestRunRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	s := New(nil)
	s.Register(Job{Name: "slow", Interval: time.Hour, Fn: func(context.Context) error {
		<-release
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), "slow") }()
	assert.Eventually(t, func() bool { return s.List()[0].Status == StatusRunning }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Run(context.Background(), "slow"), ErrJobRunning)
	close(release)
	require.NoError(t, <-done)
}
