package jobs

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// stagingPrefix matches the per-invocation staging directories created
// during photo materialization
const stagingPrefix = "fortuna-"

// TempSweepJob removes staging directories stranded by invocations that
// never reached their cleanup pass (e.g. killed by a host timeout mid-call)
type TempSweepJob struct {
	tempDir  string
	maxAge   time.Duration
	interval time.Duration
}

// NewTempSweepJob creates a sweep job over the given temp directory
func NewTempSweepJob(tempDir string, maxAge, interval time.Duration) *TempSweepJob {
	return &TempSweepJob{
		tempDir:  tempDir,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Name identifies the job in scheduler logs
func (j *TempSweepJob) Name() string {
	return "temp-sweep"
}

// Interval returns how often the sweep runs
func (j *TempSweepJob) Interval() time.Duration {
	return j.interval
}

// Run deletes staging directories older than the cutoff. Directories still
// inside the age window belong to invocations that may be running.
func (j *TempSweepJob) Run(ctx context.Context) error {
	entries, err := os.ReadDir(j.tempDir)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-j.maxAge)
	removed := 0

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), stagingPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("⚠️ [TEMP-SWEEP] Failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("🧹 [TEMP-SWEEP] Removed %d stranded staging dir(s)", removed)
	}
	return nil
}
