package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/devskill-org/natural-time/cache"
	"github.com/devskill-org/natural-time/naturaltime"
)

// PeriodicTask represents a task that runs periodically with an optional initial delay
type PeriodicTask struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	runFunc      func()
}

// run executes the periodic task in a loop, respecting the initial delay and context cancellation
func (pt *PeriodicTask) run(ctx context.Context, stopChan <-chan struct{}, logger *log.Logger) {
	if pt.initialDelay > 0 {
		logger.Printf("[%s] Waiting for initial delay: %v", pt.name, pt.initialDelay)
		select {
		case <-time.After(pt.initialDelay):
			logger.Printf("[%s] Initial delay passed, running first iteration", pt.name)
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] Stopped during initial delay due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped during initial delay due to stop signal", pt.name)
			return
		}
	}

	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()

	logger.Printf("[%s] Started with interval: %v", pt.name, pt.interval)

	for {
		select {
		case <-ticker.C:
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] Stopped due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped due to stop signal", pt.name)
			return
		}
	}
}

// AlmanacScheduler builds the almanac of every natural day at the configured
// location and serves natural dates over HTTP
type AlmanacScheduler struct {
	// Configuration
	config *Config

	// State
	engine    *naturaltime.Engine
	latest    *Almanac
	lastBuild time.Time
	isRunning bool
	stopChan  chan struct{}
	mu        sync.RWMutex

	// Web server
	webServer *WebServer

	// Database connection
	db *sql.DB

	// Logging
	logger *log.Logger

	// Test hook for the current time
	now func() time.Time
}

// NewAlmanacScheduler creates a new scheduler instance. A nil engine gets a
// default one.
func NewAlmanacScheduler(config *Config, engine *naturaltime.Engine, logger *log.Logger) *AlmanacScheduler {
	if logger == nil {
		logger = log.Default()
	}
	if engine == nil {
		engine = naturaltime.NewEngine(nil, nil)
	}

	return &AlmanacScheduler{
		config:   config,
		engine:   engine,
		stopChan: make(chan struct{}),
		logger:   logger,
		now:      time.Now,
	}
}

// NewAlmanacSchedulerWithServer creates a new scheduler instance with the HTTP API
func NewAlmanacSchedulerWithServer(config *Config, engine *naturaltime.Engine, logger *log.Logger) *AlmanacScheduler {
	scheduler := NewAlmanacScheduler(config, engine, logger)
	scheduler.webServer = NewWebServer(scheduler, config.HTTPPort)
	return scheduler
}

// SetConfig updates the configuration
func (s *AlmanacScheduler) SetConfig(config *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// GetConfig returns the current configuration
func (s *AlmanacScheduler) GetConfig() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Engine returns the natural time engine used by the scheduler
func (s *AlmanacScheduler) Engine() *naturaltime.Engine {
	return s.engine
}

// debugf logs only when the configured log level is debug
func (s *AlmanacScheduler) debugf(format string, args ...any) {
	if s.GetConfig().LogLevel == "debug" {
		s.logger.Printf("DEBUG: "+format, args...)
	}
}

// Start runs the daily almanac job at every natural midnight until the context
// is cancelled or Stop is called
func (s *AlmanacScheduler) Start(ctx context.Context, serverOnly bool) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stopChan := s.stopChan
	s.mu.Unlock()

	config := s.GetConfig()

	if config.DryRun {
		s.logger.Printf("DRY-RUN MODE ENABLED: Almanacs will not be stored")
	}

	// Start web server if configured
	if s.webServer != nil {
		err := s.webServer.Start()
		if err != nil {
			s.logger.Printf("Failed to start web server: %v", err)
		} else {
			s.logger.Printf("Web server started on port %d", s.webServer.port)
		}
		if serverOnly {
			return err
		}
	}

	if config.PostgresConnString != "" {
		if err := s.openDB(ctx, config.PostgresConnString); err != nil {
			s.logger.Printf("Almanac persistence disabled: %v", err)
		}
	}

	s.runAlmanacJob(ctx)

	schedule := NaturalMidnightSchedule{Engine: s.engine, Longitude: config.Longitude}
	s.logger.Printf("Next natural midnight: %s", schedule.Next(s.now()).Format(time.RFC3339))

	daily := cron.New()
	daily.Schedule(schedule, cron.FuncJob(func() {
		s.runAlmanacJob(ctx)
	}))
	daily.Start()

	var tasks []PeriodicTask
	if config.CacheResetInterval > 0 {
		tasks = append(tasks, PeriodicTask{
			name:         "CacheReset",
			initialDelay: config.CacheResetInterval,
			interval:     config.CacheResetInterval,
			runFunc:      s.runCacheReset,
		})
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.run(ctx, stopChan, s.logger)
		}()
	}

	select {
	case <-ctx.Done():
	case <-stopChan:
	}

	<-daily.Stop().Done()
	wg.Wait()

	s.logger.Printf("All periodic tasks stopped")
	s.stop()
	return nil
}

// openDB connects to Postgres and makes sure the almanac table exists
func (s *AlmanacScheduler) openDB(ctx context.Context, connString string) error {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := ensureAlmanacSchema(ctx, db); err != nil {
		db.Close()
		return err
	}
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	return nil
}

// runCacheReset drops cached events so memory stays bounded
func (s *AlmanacScheduler) runCacheReset() {
	before := s.engine.CacheStats()
	s.engine.ResetCaches()
	s.logger.Printf("Cache reset: dropped %d entries (hits %d, misses %d)", before.Entries, before.Hits, before.Misses)
}

// Stop gracefully stops the scheduler
func (s *AlmanacScheduler) Stop() {
	s.stop()
}

func (s *AlmanacScheduler) stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}

	s.isRunning = false

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	db := s.db
	s.db = nil
	s.mu.Unlock()

	// Handlers read scheduler state, so the server is stopped without the lock
	if s.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.webServer.Stop(ctx); err != nil {
			s.logger.Printf("Error stopping web server: %v", err)
		}
	}

	if db != nil {
		if err := db.Close(); err != nil {
			s.logger.Printf("Error closing database: %v", err)
		}
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *AlmanacScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current status of the scheduler
func (s *AlmanacScheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		IsRunning:  s.isRunning,
		HasAlmanac: s.latest != nil,
		Cache:      s.engine.CacheStats(),
	}
	if !s.lastBuild.IsZero() {
		lastBuild := s.lastBuild
		status.LastBuild = &lastBuild
	}
	return status
}

// SchedulerStatus represents the current status of the scheduler
type SchedulerStatus struct {
	IsRunning  bool        `json:"is_running"`
	HasAlmanac bool        `json:"has_almanac"`
	LastBuild  *time.Time  `json:"last_build,omitempty"`
	Cache      cache.Stats `json:"cache"`
}
