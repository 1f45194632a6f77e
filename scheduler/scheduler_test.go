package scheduler

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devskill-org/natural-time/naturaltime"
)

func testConfig() *Config {
	config := DefaultConfig()
	config.HTTPPort = 0
	config.DryRun = true
	config.CacheResetInterval = 0
	return config
}

func TestNewAlmanacScheduler(t *testing.T) {
	tests := []struct {
		name   string
		engine *naturaltime.Engine
		logger *log.Logger
	}{
		{
			name:   "valid parameters",
			engine: naturaltime.NewEngine(nil, nil),
			logger: log.New(os.Stdout, "TEST ", log.LstdFlags),
		},
		{
			name:   "nil engine and logger",
			engine: nil,
			logger: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := NewAlmanacScheduler(testConfig(), tt.engine, tt.logger)

			if scheduler == nil {
				t.Fatal("NewAlmanacScheduler returned nil")
			}
			if scheduler.IsRunning() {
				t.Error("New scheduler should not be running")
			}
			if scheduler.logger == nil {
				t.Error("Expected default logger when nil provided")
			}
			if scheduler.Engine() == nil {
				t.Error("Expected default engine when nil provided")
			}
			if tt.engine != nil && scheduler.Engine() != tt.engine {
				t.Error("Expected the provided engine to be used")
			}
		})
	}
}

func TestNewAlmanacSchedulerWithServer(t *testing.T) {
	config := testConfig()
	if s := NewAlmanacSchedulerWithServer(config, nil, nil); s.webServer != nil {
		t.Error("Port 0 should disable the web server")
	}

	config.HTTPPort = 18080
	if s := NewAlmanacSchedulerWithServer(config, nil, nil); s.webServer == nil {
		t.Error("Expected web server for a positive port")
	}
}

func TestSchedulerRunningState(t *testing.T) {
	scheduler := NewAlmanacScheduler(testConfig(), nil, nil)

	if scheduler.IsRunning() {
		t.Error("New scheduler should not be running")
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Start(ctx, false)
	}()

	time.Sleep(100 * time.Millisecond)

	if !scheduler.IsRunning() {
		t.Error("Scheduler should be running after Start()")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error after cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Scheduler did not stop within timeout")
	}

	if scheduler.IsRunning() {
		t.Error("Scheduler should not be running after context cancellation")
	}
	if scheduler.GetLatestAlmanac() == nil {
		t.Error("Expected the almanac job to run on start")
	}
}

func TestSchedulerDoubleStart(t *testing.T) {
	scheduler := NewAlmanacScheduler(testConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Start(ctx, false)
	}()

	time.Sleep(100 * time.Millisecond)

	if err := scheduler.Start(ctx, false); err == nil {
		t.Error("Expected error when starting scheduler twice")
	}

	cancel()
	<-done
}

func TestSchedulerStop(t *testing.T) {
	scheduler := NewAlmanacScheduler(testConfig(), nil, nil)

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Start(context.Background(), false)
	}()

	time.Sleep(100 * time.Millisecond)

	if !scheduler.IsRunning() {
		t.Error("Scheduler should be running")
	}

	scheduler.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Scheduler did not stop within timeout")
	}

	if scheduler.IsRunning() {
		t.Error("Scheduler should not be running after Stop()")
	}

	// Stopping twice is a no-op
	scheduler.Stop()
}

func TestBuildAlmanac(t *testing.T) {
	config := testConfig()
	config.Latitude, config.Longitude = 0, 0
	scheduler := NewAlmanacScheduler(config, nil, nil)

	unix := time.Date(2024, 12, 21, 12, 0, 0, 0, time.UTC).UnixMilli()
	almanac, err := scheduler.BuildAlmanac(context.Background(), unix)
	if err != nil {
		t.Fatalf("BuildAlmanac returned error: %v", err)
	}

	if almanac.Date.Year != 12 || almanac.Date.DayOfYear != 365 || !almanac.Date.IsRainbowDay {
		t.Errorf("Unexpected natural date %v", almanac.Date)
	}
	if !almanac.Sun.Sunrise.Found() || !almanac.Sun.Sunset.Found() {
		t.Errorf("Expected equatorial sunrise and sunset, got %+v", almanac.Sun)
	}
	if almanac.Mustaches.AverageAngle > 2 {
		t.Errorf("Equatorial mustaches should be small, got %v", almanac.Mustaches.AverageAngle)
	}
}

func TestBuildAlmanacCancelled(t *testing.T) {
	scheduler := NewAlmanacScheduler(testConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := scheduler.BuildAlmanac(ctx, time.Now().UnixMilli()); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRunAlmanacJobDryRun(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	scheduler := NewAlmanacScheduler(testConfig(), nil, logger)
	scheduler.now = func() time.Time {
		return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	}

	scheduler.runAlmanacJob(context.Background())

	almanac := scheduler.GetLatestAlmanac()
	if almanac == nil {
		t.Fatal("Expected latest almanac after job")
	}
	if got := almanac.Date.UnixTime; got != scheduler.now().UnixMilli() {
		t.Errorf("Almanac built for %d, expected %d", got, scheduler.now().UnixMilli())
	}
	if !strings.Contains(buf.String(), "DRY-RUN") {
		t.Errorf("Expected dry-run log line, got:\n%s", buf.String())
	}

	status := scheduler.GetStatus()
	if !status.HasAlmanac || status.LastBuild == nil {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestRunCacheReset(t *testing.T) {
	scheduler := NewAlmanacScheduler(testConfig(), nil, log.New(&bytes.Buffer{}, "", 0))
	if _, err := scheduler.BuildAlmanac(context.Background(), time.Now().UnixMilli()); err != nil {
		t.Fatal(err)
	}
	if scheduler.Engine().CacheStats().Entries == 0 {
		t.Fatal("Expected cached entries after building an almanac")
	}

	scheduler.runCacheReset()

	stats := scheduler.Engine().CacheStats()
	if stats.Entries != 0 || stats.Resets != 1 {
		t.Errorf("Unexpected cache stats after reset: %+v", stats)
	}
}

func TestPeriodicTaskStops(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	task := PeriodicTask{
		name:     "Counter",
		interval: 10 * time.Millisecond,
		runFunc: func() {
			mu.Lock()
			runs++
			mu.Unlock()
		},
	}

	stopChan := make(chan struct{})
	done := make(chan struct{})
	go func() {
		task.run(context.Background(), stopChan, log.New(&bytes.Buffer{}, "", 0))
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	close(stopChan)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Task did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if runs < 2 {
		t.Errorf("Expected several runs, got %d", runs)
	}
}

func TestPeriodicTaskInitialDelayCancelled(t *testing.T) {
	ran := false
	task := PeriodicTask{
		name:         "Delayed",
		initialDelay: time.Hour,
		interval:     time.Hour,
		runFunc:      func() { ran = true },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task.run(ctx, make(chan struct{}), log.New(&bytes.Buffer{}, "", 0))

	if ran {
		t.Error("Task should not run when cancelled during the initial delay")
	}
}
