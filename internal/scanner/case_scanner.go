// Package scanner is the batch orchestrator: it enumerates candidate case
// folders under a root, runs each one in an isolated worker process with a
// wall-clock timeout, tracks idempotence markers, and reports progress.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dlaslab/htmlviewer-engine/internal/db"
	"github.com/dlaslab/htmlviewer-engine/internal/detect"
	"github.com/dlaslab/htmlviewer-engine/internal/meta"
	"github.com/dlaslab/htmlviewer-engine/internal/pipeline"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// CaseTimeout is the per-case wall clock in automatic mode.
const CaseTimeout = 60 * time.Second

// killGrace is how long a timed-out worker gets to exit after the terminate
// signal before it is hard-killed.
const killGrace = 3 * time.Second

// DialogFunc is the manual-mode collaborator: given basenames and the
// default group map, it returns a user-confirmed map over the same keys.
type DialogFunc func(basenames []string, defaults map[string]models.Group) map[string]models.Group

// Options configures one batch run.
type Options struct {
	Root           string
	Keyword        string  // case-insensitive substring filter on folder basenames
	TimeLimitHours float64 // 0 disables the mtime filter
	SkipProcessed  bool
	OutDir         string // aggregated output folder; empty keeps HTML next to each case
	UserLogoB64    string
	Manual         bool
	Dialog         DialogFunc
	Progress       pipeline.ProgressFunc
	WorkerBinary   string        // defaults to the running executable
	Timeout        time.Duration // defaults to CaseTimeout
}

// Orchestrator runs batches and exposes thread-safe progress, mirroring the
// API shape of a long-running scan engine.
type Orchestrator struct {
	opts  Options
	store *db.AuditStore
	jobID string

	doneCount  atomic.Int64
	totalCount atomic.Int64
	isRunning  atomic.Bool
	stopFlag   atomic.Bool
}

// Progress is the orchestrator's current state for the API.
type Progress struct {
	IsRunning bool   `json:"isRunning"`
	Done      int64  `json:"done"`
	Total     int64  `json:"total"`
	JobID     string `json:"jobId"`
}

func NewOrchestrator(opts Options, store *db.AuditStore) *Orchestrator {
	if opts.Progress == nil {
		opts.Progress = func(models.ProgressEvent) {}
	}
	return &Orchestrator{opts: opts, store: store, jobID: uuid.New().String()}
}

// JobID identifies this batch in progress events and audit rows.
func (o *Orchestrator) JobID() string { return o.jobID }

// GetProgress returns the current batch progress (thread-safe).
func (o *Orchestrator) GetProgress() Progress {
	return Progress{
		IsRunning: o.isRunning.Load(),
		Done:      o.doneCount.Load(),
		Total:     o.totalCount.Load(),
		JobID:     o.jobID,
	}
}

// Stop requests a level-triggered stop, honored between candidates. The
// currently-running worker is allowed to finish or time out.
func (o *Orchestrator) Stop() { o.stopFlag.Store(true) }

// EnumerateCandidates walks the root and applies the time and keyword
// filters, then expands ZIPs for each surviving folder.
func (o *Orchestrator) EnumerateCandidates(scratchRoot string) []string {
	var folders []string
	cutoff := time.Time{}
	if o.opts.TimeLimitHours > 0 {
		cutoff = time.Now().Add(-time.Duration(o.opts.TimeLimitHours * float64(time.Hour)))
	}
	keyword := strings.ToLower(o.opts.Keyword)

	filepath.WalkDir(o.opts.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if !cutoff.IsZero() {
			if info, err := d.Info(); err == nil && info.ModTime().Before(cutoff) {
				return nil
			}
		}
		if keyword != "" && !strings.Contains(strings.ToLower(d.Name()), keyword) {
			return nil
		}
		folders = append(folders, path)
		return nil
	})

	var candidates []string
	for _, folder := range folders {
		candidates = append(candidates, detect.ExpandZIPs(folder, scratchRoot)...)
	}
	return candidates
}

// Run executes the batch. The scratch root for ZIP expansion is removed when
// the run completes, regardless of outcome.
func (o *Orchestrator) Run(ctx context.Context) models.BatchReport {
	o.isRunning.Store(true)
	defer o.isRunning.Store(false)
	o.stopFlag.Store(false)

	scratchRoot := filepath.Join(os.TempDir(), "htmlviewer_"+o.jobID[:8])
	defer os.RemoveAll(scratchRoot)

	candidates := o.EnumerateCandidates(scratchRoot)
	o.totalCount.Store(int64(len(candidates)))
	o.doneCount.Store(0)
	log.Printf("[CaseScanner] Starting batch %s: %d candidates under %s",
		o.jobID[:8], len(candidates), o.opts.Root)

	report := models.BatchReport{
		JobID:      o.jobID,
		Root:       o.opts.Root,
		Candidates: len(candidates),
		Outcomes:   make(map[string]models.CaseResult),
	}

	for i, candidate := range candidates {
		if o.stopFlag.Load() {
			log.Printf("[CaseScanner] Stop requested, %d candidates left unprocessed", len(candidates)-i)
			break
		}
		select {
		case <-ctx.Done():
			log.Printf("[CaseScanner] Context cancelled at candidate %d", i)
			o.opts.Progress(models.ProgressEvent{
				JobID: o.jobID, Percent: 100,
				Message: "Batch cancelled", Done: true, Report: &report,
			})
			return report
		default:
		}

		started := time.Now()
		result := o.runCandidate(candidate)
		report.Outcomes[candidate] = result
		o.doneCount.Add(1)
		o.opts.Progress(models.ProgressEvent{
			JobID:    o.jobID,
			CasePath: candidate,
			Percent:  float64(i+1) / float64(len(candidates)) * 100,
			Message:  fmt.Sprintf("[%d/%d] %s: %s", i+1, len(candidates), filepath.Base(candidate), result.Status),
		})

		if o.store != nil {
			if err := o.store.SaveCaseOutcome(ctx, o.jobID, candidate, result, time.Since(started).Milliseconds()); err != nil {
				log.Printf("[CaseScanner] Audit persist error for %s: %v", candidate, err)
			}
		}
	}

	log.Printf("[CaseScanner] Batch %s complete: %d/%d processed",
		o.jobID[:8], o.doneCount.Load(), len(candidates))
	o.opts.Progress(models.ProgressEvent{
		JobID:   o.jobID,
		Percent: 100,
		Message: fmt.Sprintf("Batch complete: %d/%d processed", o.doneCount.Load(), len(candidates)),
		Done:    true,
		Report:  &report,
	})
	return report
}

// runCandidate decides the disposition of one candidate folder.
func (o *Orchestrator) runCandidate(candidate string) models.CaseResult {
	if o.opts.SkipProcessed && pipeline.HasMarker(candidate) {
		return models.CaseResult{Status: models.StatusSkipped, Payload: "already processed"}
	}

	meshes := DiscoverMeshes(candidate)
	if len(meshes) == 0 {
		return models.CaseResult{Status: models.StatusSkipped, Payload: "no meshes"}
	}
	mode := detect.Mode(candidate)

	outName := filepath.Base(candidate) + ".html"
	outDir := candidate
	if o.opts.OutDir != "" {
		outDir = o.opts.OutDir
	}
	outHTML := filepath.Join(outDir, outName)

	job := models.WorkerJob{
		JobID:     o.jobID,
		MeshPaths: meshes,
		OutHTML:   outHTML,
		Folder:    candidate,
		Mode:      mode,
		LogoB64:   o.opts.UserLogoB64,
	}

	if o.opts.Manual {
		return o.runInProcess(job)
	}
	return o.runIsolated(job)
}

// runInProcess executes the coordinator directly; manual mode routes the
// default group map through the dialog collaborator first.
func (o *Orchestrator) runInProcess(job models.WorkerJob) models.CaseResult {
	if o.opts.Dialog != nil {
		defaults := defaultGroups(job)
		basenames := make([]string, 0, len(job.MeshPaths))
		for _, p := range job.MeshPaths {
			basenames = append(basenames, filepath.Base(p))
		}
		job.GroupOverride = o.opts.Dialog(basenames, defaults)
	}
	err := pipeline.Convert(pipeline.Options{
		JobID:         job.JobID,
		MeshPaths:     job.MeshPaths,
		OutHTML:       job.OutHTML,
		Folder:        job.Folder,
		Mode:          job.Mode,
		UserLogoB64:   job.LogoB64,
		GroupOverride: job.GroupOverride,
		Progress:      o.opts.Progress,
	})
	if err != nil {
		return models.CaseResult{Status: models.StatusError, Payload: err.Error()}
	}
	return models.CaseResult{Status: models.StatusSuccess, Payload: filepath.Base(job.OutHTML)}
}

func metaProvider(job models.WorkerJob) (meta.Provider, error) {
	return meta.NewProvider(job.Folder, job.Mode)
}

// defaultGroups builds the pre-confirmation map shown by the dialog.
func defaultGroups(job models.WorkerJob) map[string]models.Group {
	defaults := make(map[string]models.Group, len(job.MeshPaths))
	for _, p := range job.MeshPaths {
		defaults[filepath.Base(p)] = models.GroupEtc
	}
	if prov, err := metaProvider(job); err == nil {
		if groups, _, err := prov.Maps(); err == nil {
			for base := range defaults {
				if g, ok := groups[strings.ToLower(base)]; ok {
					defaults[base] = g
				}
			}
		}
	}
	return defaults
}

// runIsolated spawns the hidden case-worker subcommand so a native crash or
// hang in mesh code cannot take down the orchestrator. The child reports a
// single JSON result message on stdout; silence means crash.
func (o *Orchestrator) runIsolated(job models.WorkerJob) models.CaseResult {
	jobFile, err := writeJobFile(job)
	if err != nil {
		return models.CaseResult{Status: models.StatusError, Payload: err.Error()}
	}
	defer os.Remove(jobFile)

	binary := o.opts.WorkerBinary
	if binary == "" {
		binary, err = os.Executable()
		if err != nil {
			return models.CaseResult{Status: models.StatusError, Payload: err.Error()}
		}
	}

	cmd := exec.Command(binary, "case-worker", "--job", jobFile)
	var stdout strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	// Bound pipe teardown so a grandchild inheriting stdout cannot pin Wait.
	cmd.WaitDelay = killGrace
	if err := cmd.Start(); err != nil {
		return models.CaseResult{Status: models.StatusError, Payload: err.Error()}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := o.opts.Timeout
	if timeout == 0 {
		timeout = CaseTimeout
	}
	select {
	case err := <-done:
		if err != nil {
			log.Printf("[CaseScanner] CRASH in %s: %v", job.Folder, err)
			return models.CaseResult{Status: models.StatusCrash, Payload: err.Error()}
		}
	case <-time.After(timeout):
		// Terminate, then hard-kill if the worker ignores it.
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(killGrace):
			_ = cmd.Process.Kill()
			<-done
		}
		log.Printf("[CaseScanner] TIMEOUT in %s after %s", job.Folder, timeout)
		return models.CaseResult{Status: models.StatusTimeout, Payload: "worker exceeded wall clock"}
	}

	var result models.CaseResult
	line := strings.TrimSpace(stdout.String())
	if line == "" {
		return models.CaseResult{Status: models.StatusCrash, Payload: "worker exited without a result"}
	}
	if idx := strings.LastIndexByte(line, '\n'); idx >= 0 {
		line = line[idx+1:]
	}
	if err := json.Unmarshal([]byte(line), &result); err != nil {
		return models.CaseResult{Status: models.StatusCrash, Payload: "unparsable worker result"}
	}
	return result
}

func writeJobFile(job models.WorkerJob) (string, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "casejob_*.json")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return "", err
	}
	return f.Name(), f.Close()
}
