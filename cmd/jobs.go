package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tubesum/internal/clix"
	"tubesum/internal/store"
)

// jobsCmd groups read-only job store commands.
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect summarization jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJobsCmd.RunE(cmd, args)
	},
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		jobs, err := appInstance.Pipeline.List(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("error listing jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}
		renderJobTable(os.Stdout, jobs)
		return nil
	},
}

var getJobCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show one job and its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		job, err := appInstance.Pipeline.Get(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("job %s not found", args[0])
		}
		if err != nil {
			return fmt.Errorf("error reading job: %w", err)
		}

		fmt.Printf("Job:     %s\nURL:     %s\nVideo:   %s\nTitle:   %s\nStatus:  %s\nCreated: %s\n",
			job.ID, job.SourceURL, job.VideoID, job.Title, statusText(job.Status),
			job.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		if job.CompletedAt != nil {
			fmt.Printf("Done:    %s\n", job.CompletedAt.UTC().Format("2006-01-02 15:04:05"))
		}
		if job.Error != "" {
			fmt.Printf("Error:   %s\n", job.Error)
		}
		if job.SummaryText != "" {
			fmt.Printf("\n%s", job.SummaryText)
		}
		return nil
	},
}

func init() {
	clix.AddPaginationFlags(listJobsCmd.Flags())
	clix.AddPaginationFlags(jobsCmd.Flags())

	jobsCmd.AddCommand(listJobsCmd)
	jobsCmd.AddCommand(getJobCmd)
	rootCmd.AddCommand(jobsCmd)
}
