// Command reconcile is the CLI companion to the API server: upload a
// statement and reconcile it in one shot, inspect vendors, or export a
// run without going through HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/extraction"
	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/qbo"
	"github.com/ledgermatch/ledgermatch-backend/internal/application/service"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/vendor"
	"github.com/ledgermatch/ledgermatch-backend/internal/export"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/analytics"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/config"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/logging"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/objectstore"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

var version = "dev"

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storage.Storage
	svc     *service.ReconcileService
	tracker *analytics.Tracker
}

func newApp(configPath string) (*app, error) {
	cfg := config.LoadOrEnvWithPath(configPath)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "cli")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := objectstore.NewGCS(cfg.GCS.Bucket)
	if err != nil {
		store.Close()
		return nil, err
	}

	tracker := analytics.NewTracker()
	gateway, err := qbo.NewClient(qbo.Options{
		ClientID:     cfg.QBO.ClientID,
		ClientSecret: cfg.QBO.ClientSecret,
		RealmID:      cfg.QBO.RealmID,
		RefreshToken: cfg.QBO.RefreshToken,
		Environment:  cfg.QBO.Environment,
		Logger:       logger,
		Tracker:      tracker,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	extractor := extraction.NewGeminiExtractor(cfg.Gemini.Model, logger)
	svc := service.NewReconcileService(cfg, store, gateway, extractor, objects, tracker, logger)

	return &app{cfg: cfg, logger: logger, store: store, svc: svc, tracker: tracker}, nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "reconcile",
		Short:         "Reconcile scanned bank statements against the QuickBooks bank feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(vendorsCmd(&configPath))
	root.AddCommand(exportCmd(&configPath))
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCmd(configPath *string) *cobra.Command {
	var (
		accountID string
		companyID string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <statement.pdf>",
		Short: "Upload a statement and reconcile it against the bank feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			doc, err := a.svc.UploadDocument(ctx, filepath.Base(args[0]), "application/pdf", companyID, data)
			if err != nil {
				return err
			}
			fmt.Printf("uploaded document %s\n", doc.ID)

			jobID, err := a.svc.StartReconcile(ctx, service.ReconcileRequest{
				DocumentID: doc.ID,
				AccountID:  accountID,
			})
			if err != nil {
				return err
			}

			job, err := waitForJob(ctx, a.svc, jobID, timeout)
			if err != nil {
				return err
			}
			if job.Status == service.StatusFailed {
				return fmt.Errorf("reconcile failed: %v", job.Error)
			}

			s := job.Summary
			fmt.Printf("run %s completed\n", job.RunID)
			fmt.Printf("  transactions:    %d\n", s.Total)
			fmt.Printf("  matched:         %d (%s)\n", s.Matched, s.MatchRate)
			fmt.Printf("  high confidence: %d\n", s.HighConfidence)
			fmt.Printf("  needs review:    %d\n", s.NeedsReview)
			fmt.Printf("  unmatched:       %d\n", s.Unmatched)
			fmt.Printf("  check images:    %d\n", s.WithCheckImages)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "QuickBooks bank account ID (required)")
	cmd.Flags().StringVar(&companyID, "company", "", "company identifier")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "how long to wait for the run")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func waitForJob(ctx context.Context, svc *service.ReconcileService, jobID string, timeout time.Duration) (*service.ReconcileJob, error) {
	deadline := time.Now().Add(timeout)
	for {
		job, err := svc.GetJob(jobID)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case service.StatusCompleted, service.StatusFailed, service.StatusCancelled:
			return job, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for job %s (phase %s)", jobID, job.Progress.CurrentPhase)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func vendorsCmd(configPath *string) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "List vendors known locally, or test name resolution with --match",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			vendors, err := a.store.ListVendors()
			if err != nil {
				return err
			}

			if match != "" {
				candidates := make([]vendor.Candidate, 0, len(vendors))
				for _, v := range vendors {
					candidates = append(candidates, vendor.Candidate{ID: v.QBOID, Name: v.Name})
				}
				resolver := vendor.NewResolver(a.cfg.Matching.VendorSimilarityThreshold)
				if found, score := resolver.FindOrSuggest(match, candidates); found != nil {
					fmt.Printf("%q resolves to %q (score %.2f)\n", match, found.Name, score)
				} else {
					fmt.Printf("%q matches nothing (best score %.2f); would create %q\n",
						match, score, vendor.SuggestName(match))
				}
				return nil
			}

			if len(vendors) == 0 {
				fmt.Println("no vendors recorded")
				return nil
			}
			for _, v := range vendors {
				fmt.Printf("%-40s qbo=%s created=%s\n", v.Name, v.QBOID, v.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "resolve an extracted payee name against known vendors")
	return cmd
}

func exportCmd(configPath *string) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a reconcile run to CSV or XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			runID := args[0]
			if _, err := a.store.GetRun(runID); err != nil {
				return fmt.Errorf("run %s: %w", runID, err)
			}
			records, err := a.store.GetMatchRecordsByRun(runID)
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("reconcile-%s.%s", runID, format)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			switch format {
			case "csv":
				err = export.WriteCSV(f, records)
			case "xlsx":
				err = export.WriteXLSX(f, records)
			default:
				return fmt.Errorf("unknown format %q (want csv or xlsx)", format)
			}
			if err != nil {
				return err
			}

			fmt.Printf("wrote %d records to %s\n", len(records), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file (default reconcile-<run-id>.<format>)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("reconcile", version)
		},
	}
}
