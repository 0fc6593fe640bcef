package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tubesum/internal/config"
	"tubesum/internal/models"
)

var runPollInterval time.Duration

// runCmd submits URLs and waits for them, like the original batch entry point.
var runCmd = &cobra.Command{
	Use:   "run <url> [url...]",
	Short: "Summarize videos and wait for the results",
	Long: `Submits one job per URL, waits until every job is completed or failed and
prints a summary table. Documents are appended to output.summaries_file.
Exits non-zero if any job failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := checkRunConfig(appInstance.Config); err != nil {
			return err
		}
		ctx := cmd.Context()

		var ids []string
		for _, u := range args {
			id, err := appInstance.Pipeline.Submit(ctx, u)
			if err != nil && id == "" {
				return fmt.Errorf("submit %s: %w", u, err)
			}
			if err != nil {
				log.WithField("job_id", id).Warnf("Dispatch failed: %v", err)
			}
			fmt.Printf("Queued %s as job %s\n", u, id)
			ids = append(ids, id)
		}

		jobs, err := waitForJobs(ctx, appInstance.Pipeline, ids, runPollInterval)
		if err != nil {
			return err
		}
		failed := renderJobTable(os.Stdout, jobs)
		fmt.Printf("Results appended to %s\n", appInstance.Results.Path())
		if failed > 0 {
			return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().DurationVar(&runPollInterval, "poll-interval", 2*time.Second, "how often to check job status")
	rootCmd.AddCommand(runCmd)
}

// checkRunConfig rejects setups where run would wait on jobs nothing can
// execute. Asynq tasks for jobs in this process's memory store are invisible
// to every other worker.
func checkRunConfig(cfg *config.Config) error {
	if cfg.Pipeline.Dispatcher == config.DispatcherAsynq && cfg.Store.Backend == config.BackendMemory {
		return fmt.Errorf("run cannot use pipeline.dispatcher=%s with store.backend=%s: use dispatcher %s or a sqlite/postgres store shared with a worker",
			config.DispatcherAsynq, config.BackendMemory, config.DispatcherLocal)
	}
	return nil
}

// jobGetter reads job snapshots.
type jobGetter interface {
	Get(ctx context.Context, jobID string) (*models.Job, error)
}

// waitForJobs polls until every job is terminal and returns them in ids order.
func waitForJobs(ctx context.Context, jobs jobGetter, ids []string, interval time.Duration) ([]*models.Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		out := make([]*models.Job, 0, len(ids))
		pending := 0
		for _, id := range ids {
			job, err := jobs.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get job %s: %w", id, err)
			}
			if !job.Status.IsTerminal() {
				pending++
			}
			out = append(out, job)
		}
		if pending == 0 {
			return out, nil
		}
		log.Debugf("%d of %d jobs still running", pending, len(ids))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// renderJobTable prints one row per job and returns how many failed.
func renderJobTable(w io.Writer, jobs []*models.Job) int {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job", "Video", "Title", "Status", "Created", "Error"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	failed := 0
	for _, j := range jobs {
		if j.Status == models.JobStatusFailed {
			failed++
		}
		table.Append([]string{
			j.ID,
			j.VideoID,
			truncate(j.Title, 40),
			statusText(j.Status),
			j.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			truncate(j.Error, 80),
		})
	}
	table.Render()
	return failed
}

func statusText(s models.JobStatus) string {
	switch s {
	case models.JobStatusCompleted:
		return color.GreenString(string(s))
	case models.JobStatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
