package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/okian/classboard/internal/loadgen"
	"github.com/okian/classboard/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8000", "Base URL of the service")
		assignment  = flag.String("assignment", "", "Assignment id to submit to (required)")
		students    = flag.Int("students", loadgen.DefaultStudents, "Number of synthetic students")
		submissions = flag.Int("submissions", loadgen.DefaultSubmissionsPerRun, "Submissions per student")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent requests in flight")
		timeout     = flag.Duration("timeout", loadgen.DefaultTimeout, "HTTP request timeout")
		seed        = flag.Uint64("seed", 0, "Metric generator seed (0 = random)")
		logFormat   = flag.String("log-format", "text", "Log format: text or json")
		verbose     = flag.Bool("verbose", false, "Log every rejected submission")
	)
	flag.Parse()

	if *assignment == "" {
		flag.Usage()
		os.Exit(2)
	}
	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := logger.InitWithOptions(logger.Options{Format: *logFormat, Level: level}); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	stats, err := loadgen.Run(ctx, loadgen.Config{
		BaseURL:      *baseURL,
		AssignmentID: *assignment,
		Students:     *students,
		Submissions:  *submissions,
		Workers:      *workers,
		Timeout:      *timeout,
		Seed:         *seed,
		Verbose:      *verbose,
	})
	fmt.Printf("generated=%d accepted=%d rejected=%d failed=%d entries=%d took=%s\n",
		stats.Generated, stats.Accepted, stats.Rejected, stats.Failed, stats.LeaderboardEntries, stats.Duration)
	if err != nil {
		os.Stderr.WriteString("load run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
