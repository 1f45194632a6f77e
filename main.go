// Package main provides the natural time almanac service entry point and CLI interface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/devskill-org/natural-time/naturaltime"
	"github.com/devskill-org/natural-time/scheduler"
	"github.com/devskill-org/natural-time/utils"
)

func main() {
	// Command line flags
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path (.json, .yaml or .yml)")
		at         = flag.String("at", "", "Print the almanac for an instant (RFC 3339 or unix ms, \"now\" for the current time) and exit")
		days       = flag.Int("days", 0, "Print a table of this many natural days starting at -at and exit")
		help       = flag.Bool("help", false, "Show help message")
		serverOnly = flag.Bool("serverOnly", false, "Run only web server without the daily almanac job")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	config, err := scheduler.LoadConfig(*configFile)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Configuration file %s not found, using defaults\n", *configFile)
		config, err = scheduler.DefaultConfig(), nil
	}
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		return
	}

	if *at != "" || *days > 0 {
		instant := *at
		if instant == "now" {
			instant = ""
		}
		unixMs, err := utils.ParseInstant(instant, time.Now())
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		engine := naturaltime.NewEngine(nil, nil)
		if *days > 0 {
			printDays(engine, config, unixMs, *days)
		} else {
			printAlmanac(engine, config, unixMs)
		}
		return
	}

	fmt.Printf("Starting natural time almanac service with the following configuration:\n")
	fmt.Printf("  Location: %.4f, %.4f\n", config.Latitude, config.Longitude)
	fmt.Printf("  HTTP Port: %d\n", config.HTTPPort)
	fmt.Printf("  Broadcast Interval: %s\n", config.BroadcastInterval)
	fmt.Printf("  Cache Reset Interval: %s\n", config.CacheResetInterval)

	if config.DryRun {
		fmt.Printf("  Mode: DRY-RUN (almanacs will not be stored)\n")
	}
	fmt.Println()

	// Create logger
	logger := log.New(os.Stdout, "[ALMANAC] ", log.LstdFlags)

	// Create scheduler
	almanacScheduler := scheduler.NewAlmanacSchedulerWithServer(config, nil, logger)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start scheduler in a goroutine
	go func() {
		if err := almanacScheduler.Start(ctx, *serverOnly); err != nil {
			logger.Printf("Scheduler error: %v", err)
		}
	}()

	logger.Printf("Scheduler started. Press Ctrl+C to stop...")

	// Wait for shutdown signal
	<-sigChan
	logger.Printf("Shutdown signal received, stopping scheduler...")

	cancel()
	almanacScheduler.Stop()

	logger.Printf("Scheduler stopped successfully")
}

func printAlmanac(engine *naturaltime.Engine, config *scheduler.Config, unixMs int64) {
	almanac, err := scheduler.ComputeAlmanac(context.Background(), engine, unixMs, config.Latitude, config.Longitude)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(almanac); err != nil {
		fmt.Println("Error:", err)
	}
}

func printDays(engine *naturaltime.Engine, config *scheduler.Config, unixMs int64, days int) {
	ctx := context.Background()

	fmt.Println("\n========================================")
	fmt.Printf("NATURAL DAYS AT %.4f, %.4f\n", config.Latitude, config.Longitude)
	fmt.Println("========================================")

	fmt.Println("┌──────────────────┬─────────────────────┬──────────┬──────────┬──────────┬──────────┬──────────┬──────────┐")
	fmt.Println("│   Natural date   │   Nadir (UTC)       │ Sunrise  │  Noon    │ Sunset   │ Moonrise │ Moonset  │  Phase   │")
	fmt.Println("├──────────────────┼─────────────────────┼──────────┼──────────┼──────────┼──────────┼──────────┼──────────┤")

	for i := 0; i < days; i++ {
		almanac, err := scheduler.ComputeAlmanac(ctx, engine, unixMs, config.Latitude, config.Longitude)
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		nd := almanac.Date
		fmt.Printf("│ %16s │ %19s │ %8s │ %8s │ %8s │ %8s │ %8s │ %7.1f° │\n",
			strings.Fields(nd.String())[0],
			time.UnixMilli(nd.Nadir).UTC().Format("2006-01-02 15:04"),
			formatDeg(almanac.Sun.Sunrise),
			formatDeg(almanac.SunPosition.Transit),
			formatDeg(almanac.Sun.Sunset),
			formatDeg(almanac.Moon.Moonrise),
			formatDeg(almanac.Moon.Moonset),
			almanac.MoonPosition.PhaseDeg,
		)
		unixMs = nd.DayEnd()
	}

	fmt.Println("└──────────────────┴─────────────────────┴──────────┴──────────┴──────────┴──────────┴──────────┴──────────┘")
}

func formatDeg(et naturaltime.EventTime) string {
	if !et.Found() {
		return et.Status.String()
	}
	return fmt.Sprintf("%.2f°", et.Deg)
}

func showHelp() {
	fmt.Println("Natural Time - Solar calendar and almanac service")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Derives natural dates from instants and longitudes. A natural year starts at the")
	fmt.Println("  local noon after the December solstice, has 13 moons of 28 days and one or two")
	fmt.Println("  rainbow days. Time of day is an angle: 0° at local solar midnight, 180° at noon.")
	fmt.Println()
	fmt.Println("  Key Features:")
	fmt.Println("  - Natural date for any instant and longitude")
	fmt.Println("  - Sun and Moon events expressed as natural time angles")
	fmt.Println("  - Daily almanac job at local solar midnight")
	fmt.Println("  - HTTP API and live WebSocket feed")
	fmt.Println("  - Optional PostgreSQL storage of daily almanacs")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  natural-time [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run the service with default settings")
	fmt.Println("  natural-time")
	fmt.Println()
	fmt.Println("  # Custom configuration")
	fmt.Println("  natural-time --config=config.yaml")
	fmt.Println()
	fmt.Println("  # Print the almanac for now")
	fmt.Println("  natural-time -at now")
	fmt.Println()
	fmt.Println("  # Print a table of the next 28 natural days")
	fmt.Println("  natural-time -at now -days 28")
	fmt.Println()
	fmt.Println("  # Run only web server without the daily job")
	fmt.Println("  natural-time -serverOnly")
	fmt.Println()
	fmt.Println("  # Show this help")
	fmt.Println("  natural-time -help")
}
