// Package runner executes a batch visual regression run: every screenshot
// in a folder is compared against the baseline of the same name on a worker
// pool, with periodic progress output.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"visualcheck/baseline"
	"visualcheck/comparator"
	"visualcheck/imaging"
	"visualcheck/logging"
	"visualcheck/report"
	"visualcheck/signalhandler"
	"visualcheck/types"
)

// Options defines the options for a batch run.
type Options struct {
	CurrentDir string
	ReportDir  string
	DebugMode  bool
	MaxWorkers int
	Threshold  *float64
}

// RunStats aggregates the outcome of a batch run.
type RunStats struct {
	Total      int
	Matched    int
	Mismatched int
	Errors     int
	Results    []types.RunResult
}

// Run walks the current-screenshot folder and compares each image against
// its baseline. Mismatches get a report written under ReportDir.
func Run(store *baseline.Store, cmp *comparator.Comparator, opts Options) (*RunStats, error) {
	if opts.CurrentDir == "" {
		return nil, fmt.Errorf("%w: current screenshot folder not set", types.ErrInvalidArgument)
	}
	info, err := os.Stat(opts.CurrentDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a readable directory", types.ErrInvalidArgument, opts.CurrentDir)
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = signalhandler.GetOptimalProcs()
	}

	names := collectScreenshots(opts.CurrentDir)
	if opts.DebugMode {
		logging.DebugLog("Starting batch run on folder: %s (%d screenshots, %d workers)",
			opts.CurrentDir, len(names), workers)
	}

	var wg sync.WaitGroup
	resultsChan := make(chan types.RunResult, 100)
	semaphore := make(chan struct{}, workers)

	tracker := newProgressTracker(len(names))
	stats := &RunStats{Total: len(names)}
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for result := range resultsChan {
			tracker.record(result)
			stats.Results = append(stats.Results, result)
			switch {
			case result.Error != nil:
				stats.Errors++
				logging.LogError("comparison failed for %s: %v", result.Name, result.Error)
			case result.Match:
				stats.Matched++
			default:
				stats.Mismatched++
			}
		}
	}()

	startTime := time.Now()
	for _, name := range names {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(name string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			resultsChan <- compareOne(store, cmp, name, opts)
		}(name)
	}

	wg.Wait()
	close(resultsChan)
	<-collectDone
	tracker.stop()

	fmt.Printf("\nBatch run complete: %d compared in %v (%d matched, %d mismatched, %d errors)\n",
		stats.Total, time.Since(startTime).Round(time.Second),
		stats.Matched, stats.Mismatched, stats.Errors)

	if opts.DebugMode {
		logging.DebugLog("Batch run finished: total=%d matched=%d mismatched=%d errors=%d",
			stats.Total, stats.Matched, stats.Mismatched, stats.Errors)
	}
	return stats, nil
}

// collectScreenshots lists the PNG files directly under dir. Subdirectories
// are not descended into; a nested screenshot would collide with a top-level
// one of the same base name.
func collectScreenshots(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			names = append(names, entry.Name())
		}
	}
	return names
}

// compareOne loads one screenshot, compares it against the baseline of the
// same name and, on mismatch, writes a report.
func compareOne(store *baseline.Store, cmp *comparator.Comparator, name string, opts Options) types.RunResult {
	runResult := types.RunResult{Name: name}

	current, err := imaging.Load(filepath.Join(opts.CurrentDir, name))
	if err != nil {
		runResult.Error = err
		return runResult
	}
	defer current.Close()

	base, err := store.Read(name)
	if err != nil {
		runResult.Error = err
		return runResult
	}
	defer base.Close()

	result, err := cmp.Compare(current, base, comparator.Options{Threshold: opts.Threshold})
	if err != nil {
		runResult.Error = err
		return runResult
	}
	defer result.DiffImage.Close()

	runResult.Match = result.Match
	runResult.Similarity = result.Similarity
	runResult.Regions = len(result.Differences)
	logging.LogComparison(name, result.Match, result.Similarity, len(result.Differences))

	if !result.Match && opts.ReportDir != "" {
		differences, err := cmp.FindVisualDifferences(base, current)
		if err == nil {
			reportName := strings.TrimSuffix(name, ".png")
			err = report.Generate(differences, reportName, opts.ReportDir)
			if err == nil {
				err = report.SaveOverlay(base, current, filepath.Join(opts.ReportDir, reportName+"_diff.png"))
			}
		}
		if err != nil {
			logging.LogWarning("failed to write report for %s: %v", name, err)
		}
	}
	return runResult
}
