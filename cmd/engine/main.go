// Command engine is the DLAS case-to-HTML converter: batch conversion of
// dental CAD case folders into self-contained viewer documents, plus an
// optional API serve mode.
package main

import (
	"context"
	"encoding/base64"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dlaslab/htmlviewer-engine/internal/api"
	"github.com/dlaslab/htmlviewer-engine/internal/config"
	"github.com/dlaslab/htmlviewer-engine/internal/db"
	"github.com/dlaslab/htmlviewer-engine/internal/scanner"
	"github.com/dlaslab/htmlviewer-engine/internal/worker"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

var (
	flagToken string
	flagSID   string
)

func main() {
	root := &cobra.Command{
		Use:   "engine",
		Short: "DLAS dental case to HTML viewer converter",
	}
	// Opaque pass-throughs for the heartbeat collaborator; the core does not
	// interpret them.
	root.PersistentFlags().StringVar(&flagToken, "token", "", "license token (pass-through)")
	root.PersistentFlags().StringVar(&flagSID, "sid", "", "session id (pass-through)")

	root.AddCommand(newConvertCmd(), newServeCmd(), newWorkerCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newConvertCmd() *cobra.Command {
	var (
		rootDir       string
		outDir        string
		keyword       string
		hours         float64
		skipProcessed bool
		logoPath      string
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert every case folder under a root to viewer HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Printf("Starting %s (batch mode)", api.EngineVersion)
			store := openAuditStore()
			defer store.Close()

			orch := scanner.NewOrchestrator(scanner.Options{
				Root:           rootDir,
				Keyword:        keyword,
				TimeLimitHours: hours,
				SkipProcessed:  skipProcessed,
				OutDir:         outDir,
				UserLogoB64:    loadUserLogo(logoPath),
				Progress: func(ev models.ProgressEvent) {
					log.Printf("%5.1f%% %s", ev.Percent, ev.Message)
				},
			}, store)
			report := orch.Run(context.Background())

			failures := 0
			for _, res := range report.Outcomes {
				switch res.Status {
				case "TIMEOUT", "CRASH", "error":
					failures++
				}
			}
			log.Printf("Batch done: %d candidates, %d failures", report.Candidates, failures)
			return nil
		},
	}
	cmd.Flags().StringVar(&rootDir, "root", ".", "root folder to scan for cases")
	cmd.Flags().StringVar(&outDir, "out", "", "aggregated output folder (default: next to each case)")
	cmd.Flags().StringVar(&keyword, "keyword", "", "case-insensitive folder name filter")
	cmd.Flags().Float64Var(&hours, "hours", 0, "only folders modified within this many hours")
	cmd.Flags().BoolVar(&skipProcessed, "skip-processed", true, "skip folders carrying the processed marker")
	cmd.Flags().StringVar(&logoPath, "logo", "", "user logo PNG embedded into each document")
	return cmd
}

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Printf("Starting %s (serve mode)", api.EngineVersion)
			store := openAuditStore()
			defer store.Close()

			wsHub := api.NewHub()
			go wsHub.Run()

			r := api.SetupRouter(store, wsHub, flagToken)
			log.Printf("Engine running on :%s", port)
			return r.Run(":" + port)
		},
	}
	cmd.Flags().StringVar(&port, "port", config.GetEnvOrDefault("PORT", "5340"), "listen port")
	return cmd
}

// newWorkerCmd is the hidden child-process entrypoint used for per-case
// isolation.
func newWorkerCmd() *cobra.Command {
	var jobPath string
	cmd := &cobra.Command{
		Use:    "case-worker",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(worker.Run(jobPath))
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "job description file")
	cmd.MarkFlagRequired("job")
	return cmd
}

// openAuditStore connects the optional Postgres audit store. The engine runs
// fine without one.
func openAuditStore() *db.AuditStore {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil
	}
	store, err := db.Connect(dbURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to PostgreSQL, continuing without audit records. Error: %v", err)
		return nil
	}
	if err := store.InitSchema(); err != nil {
		log.Printf("Warning: audit schema init failed: %v", err)
	}
	return store
}

// loadUserLogo resolves the logo: an explicit flag wins, else the persisted
// configuration.
func loadUserLogo(flagPath string) string {
	path := flagPath
	if path == "" {
		path = config.Load().UserLogoPath
	}
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: cannot read user logo %s: %v", path, err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}
