package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/metrics"
)

type fakeLock struct {
	acquired bool
	held     bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name  string
	err   error
	every time.Duration
	runs  int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type periodicTestJob struct {
	*testJob
}

func (p periodicTestJob) Every() time.Duration { return p.every }

func newTestService(t *testing.T, lock Lock, clock *time.Time, jobs ...Job) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronJobMetrics(reg)
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  cronMetrics,
		Now:      func() time.Time { return *clock },
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service, reg
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	service, _ := newTestService(t, &fakeLock{}, &clock, success, failure)

	err := service.runCycle(context.Background())
	if err == nil {
		t.Fatal("expected the failed job to surface")
	}
	if !errors.Is(err, failure.err) {
		t.Fatalf("expected job error to be wrapped, got %v", err)
	}
	if success.runs != 1 {
		t.Fatalf("expected success job to run once, ran %d", success.runs)
	}
	if failure.runs != 1 {
		t.Fatalf("expected failure job to run once, ran %d", failure.runs)
	}
}

func TestServiceHonoursJobCadence(t *testing.T) {
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	everyTick := &testJob{name: "unlock"}
	daily := &testJob{name: "retention", every: 24 * time.Hour}
	service, _ := newTestService(t, &fakeLock{}, &clock, everyTick, periodicTestJob{daily})

	for i := 0; i < 3; i++ {
		if err := service.runCycle(context.Background()); err != nil {
			t.Fatalf("run cycle: %v", err)
		}
		clock = clock.Add(time.Hour)
	}
	if everyTick.runs != 3 {
		t.Fatalf("expected tick job to run every cycle, ran %d", everyTick.runs)
	}
	if daily.runs != 1 {
		t.Fatalf("expected daily job to run once, ran %d", daily.runs)
	}

	clock = clock.Add(24 * time.Hour)
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if daily.runs != 2 {
		t.Fatalf("expected daily job to run again once due, ran %d", daily.runs)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	job := &testJob{name: "unlock"}
	service, reg := newTestService(t, &fakeLock{held: true}, &clock, job)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d", job.runs)
	}
	expected := `
# HELP wallet_cron_cycles_skipped_total Cron cycles skipped because another replica held the lock.
# TYPE wallet_cron_cycles_skipped_total counter
wallet_cron_cycles_skipped_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "wallet_cron_cycles_skipped_total"); err != nil {
		t.Fatalf("unexpected skip metric: %v", err)
	}
}

func TestServiceRunOnceIgnoresCadenceAndRecordsMetrics(t *testing.T) {
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	daily := &testJob{name: "retention", every: 24 * time.Hour}
	failing := &testJob{name: "unlock", err: errors.New("db down")}
	service, reg := newTestService(t, &fakeLock{}, &clock, periodicTestJob{daily}, failing)

	_ = service.RunOnce(context.Background())
	if err := service.RunOnce(context.Background()); err == nil {
		t.Fatal("expected failing job error")
	}
	if daily.runs != 2 {
		t.Fatalf("expected run once to bypass cadence, ran %d", daily.runs)
	}
	expected := `
# HELP wallet_job_failure_total Failed cron job executions.
# TYPE wallet_job_failure_total counter
wallet_job_failure_total{job="unlock"} 2
# HELP wallet_job_success_total Successful cron job executions.
# TYPE wallet_job_success_total counter
wallet_job_success_total{job="retention"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "wallet_job_success_total", "wallet_job_failure_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
