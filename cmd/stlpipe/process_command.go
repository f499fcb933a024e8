package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"stlpipe/internal/config"
	"stlpipe/internal/extract"
	"stlpipe/internal/history"
	"stlpipe/internal/logging"
	"stlpipe/internal/notifications"
	"stlpipe/internal/publish"
	"stlpipe/internal/services"
	"stlpipe/internal/workflow"
)

var errJobsFailed = errors.New("one or more archives failed")

type processOptions struct {
	output            string
	gdriveFolder      string
	noUpload          bool
	noCleanup         bool
	preserveStructure bool
	workers           int
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <source-folder>",
		Short: "Extract, sort, and publish every archive in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cfg); err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve source folder: %w", err)
			}
			return runProcess(cmd.Context(), cmd.OutOrStdout(), cfg, logger, source)
		},
	}

	cmd.Flags().StringVar(&opts.output, "output", "", "Output directory (overrides paths.output_dir)")
	cmd.Flags().StringVar(&opts.gdriveFolder, "gdrive-folder", "", "Google Drive folder ID (overrides gdrive.folder_id)")
	cmd.Flags().BoolVar(&opts.noUpload, "no-upload", false, "Sort and package only; skip Google Drive")
	cmd.Flags().BoolVar(&opts.noCleanup, "no-cleanup", false, "Keep scratch workspaces after each job")
	cmd.Flags().BoolVar(&opts.preserveStructure, "preserve-structure", false, "Keep folder layout inside the model archive")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent jobs (overrides workflow.workers)")
	return cmd
}

func (o processOptions) apply(cfg *config.Config) error {
	if o.output != "" {
		expanded, err := config.ExpandPath(o.output)
		if err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
		cfg.Paths.OutputDir = expanded
	}
	if o.gdriveFolder != "" {
		cfg.GDrive.FolderID = o.gdriveFolder
	}
	if o.noUpload {
		cfg.Upload.Enabled = false
	}
	if o.noCleanup {
		cfg.Workflow.Cleanup = false
	}
	if o.preserveStructure {
		cfg.Sort.PreserveStructure = true
	}
	if o.workers < 0 {
		return errors.New("--workers must be positive")
	}
	if o.workers > 0 {
		cfg.Workflow.Workers = o.workers
	}
	return cfg.EnsureDirectories()
}

func runProcess(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, source string) error {
	archives, err := extract.ScanArchives(source)
	if err != nil {
		return fmt.Errorf("scan %s: %w", source, err)
	}
	if len(archives) == 0 {
		fmt.Fprintf(out, "No archives found in %s\n", source)
		return nil
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
	}
	notifier := notifications.NewService(cfg)

	opts := []workflow.Option{
		workflow.WithObservers(
			workflow.HistoryObserver(store, logger),
			workflow.NotificationObserver(notifier, logger),
		),
	}
	if cfg.Upload.Enabled {
		drive, err := publish.NewDrive(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect google drive (run `stlpipe drive auth` or pass --no-upload): %w", err)
		}
		opts = append(opts, workflow.WithPublisher(publish.NewPublisher(drive, logger)))
	}
	coordinator := workflow.New(cfg, logger, opts...)
	defer coordinator.Shutdown()

	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger = logging.WithContext(ctx, logger)
	started := time.Now()
	logger.Info("batch started",
		logging.String("source", source),
		logging.Int("archives", len(archives)),
		logging.Int("workers", cfg.Workflow.Workers),
		logging.String(logging.FieldEventType, "batch_start"),
	)

	tickets := make([]*workflow.Ticket, 0, len(archives))
	for _, path := range archives {
		art, err := workflow.NewArtifact(path)
		if err != nil {
			return err
		}
		tickets = append(tickets, coordinator.Submit(ctx, art))
	}
	jobs := make([]*workflow.Job, 0, len(tickets))
	// Jobs end promptly once ctx is cancelled, reporting themselves as
	// cancelled, so the table below is printed after an interrupt too.
	waitCtx := context.WithoutCancel(ctx)
	for _, ticket := range tickets {
		job, err := ticket.Wait(waitCtx)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	summary := summarize(jobs)
	fmt.Fprintln(out, renderJobTable(jobs))
	fmt.Fprintln(out, summary.String())

	elapsed := time.Since(started)
	logger.Info("batch finished",
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Errors),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "batch_complete"),
	)
	if err := notifier.Publish(context.WithoutCancel(ctx), notifications.EventBatchCompleted, notifications.Payload{
		"processed": len(jobs),
		"failed":    summary.Errors,
		"duration":  elapsed,
	}); err != nil {
		logging.WarnWithContext(logger, "batch notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "batch summary not delivered"),
		)
	}

	if summary.Errors > 0 {
		return errJobsFailed
	}
	return nil
}

type batchSummary struct {
	Processed int
	Images    int
	Models    int
	Zips      int
	Uploaded  int
	Errors    int
}

func summarize(jobs []*workflow.Job) batchSummary {
	var s batchSummary
	for _, job := range jobs {
		switch job.State {
		case workflow.StateDone:
			s.Processed++
		case workflow.StateFailed:
			s.Errors++
		}
		if job.Bundle != nil {
			s.Images += len(job.Bundle.Images)
			s.Models += job.Bundle.ModelCount()
			if job.Bundle.ArchivePath != "" {
				s.Zips++
			}
		}
		if job.RemoteID != "" {
			s.Uploaded++
		}
	}
	return s
}

func (s batchSummary) String() string {
	return fmt.Sprintf("Archives processed: %d\nImages: %d\nModel files: %d\nZips created: %d\nUploaded: %d\nErrors: %d",
		s.Processed, s.Images, s.Models, s.Zips, s.Uploaded, s.Errors)
}

func renderJobTable(jobs []*workflow.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		images, models := "-", "-"
		if job.Bundle != nil {
			images = strconv.Itoa(len(job.Bundle.Images))
			models = strconv.Itoa(job.Bundle.ModelCount())
		}
		detail := job.Link
		switch {
		case job.State == workflow.StateFailed:
			detail = string(job.Reason)
		case detail == "" && job.Bundle != nil:
			detail = job.Bundle.ArchivePath
		}
		rows = append(rows, []string{job.Artifact.Name, string(job.State), images, models, detail})
	}
	return renderTable(
		[]string{"Archive", "State", "Images", "Models", "Result"},
		rows,
		text.AlignLeft, text.AlignLeft, text.AlignRight, text.AlignRight,
	)
}
