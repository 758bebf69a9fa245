// Package worker is the child-process side of case isolation. It reads one
// job description, runs the coordinator, and reports a single result message
// on stdout. The parent treats silence as a crash.
package worker

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dlaslab/htmlviewer-engine/internal/pipeline"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// Run executes the job file and emits the result message. The returned exit
// code is 0 whenever a result was reported, even for a failed case: the
// parent distinguishes error results from crashes by the presence of the
// message.
func Run(jobPath string) int {
	raw, err := os.ReadFile(jobPath)
	if err != nil {
		report(models.CaseResult{Status: models.StatusError, Payload: err.Error()})
		return 0
	}
	var job models.WorkerJob
	if err := json.Unmarshal(raw, &job); err != nil {
		report(models.CaseResult{Status: models.StatusError, Payload: "malformed job: " + err.Error()})
		return 0
	}

	log.Printf("[Worker] Converting %s (mode %s, %d meshes)", job.Folder, job.Mode, len(job.MeshPaths))
	err = pipeline.Convert(pipeline.Options{
		JobID:         job.JobID,
		MeshPaths:     job.MeshPaths,
		OutHTML:       job.OutHTML,
		Folder:        job.Folder,
		Mode:          job.Mode,
		UserLogoB64:   job.LogoB64,
		GroupOverride: job.GroupOverride,
		Progress: func(ev models.ProgressEvent) {
			log.Printf("[Worker] %5.1f%% %s", ev.Percent, ev.Message)
		},
	})
	if err != nil {
		report(models.CaseResult{Status: models.StatusError, Payload: err.Error()})
		return 0
	}
	report(models.CaseResult{Status: models.StatusSuccess, Payload: filepath.Base(job.OutHTML)})
	return 0
}

// report writes the single result message to stdout.
func report(r models.CaseResult) {
	raw, err := json.Marshal(r)
	if err != nil {
		fmt.Println(`{"status":"error","payload":"marshal failure"}`)
		return
	}
	fmt.Println(string(raw))
}
