package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/fatih/color"
	"github.com/hibiken/asynq"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"tubesum/internal/app"
	"tubesum/internal/config"
	"tubesum/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check external tools, the job store and Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		results := runChecks(ctx, checksFor(appInstance))
		if failed := renderChecks(os.Stdout, results); failed > 0 {
			return fmt.Errorf("%d checks failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

type checkResult struct {
	name   string
	detail string
	err    error
}

func binaryCheck(name, binary string) check {
	return check{name: name, run: func(context.Context) (string, error) {
		return exec.LookPath(binary)
	}}
}

func checksFor(a *app.App) []check {
	cfg := a.Config
	checks := []check{
		binaryCheck("fetch.binary", cfg.Fetch.Binary),
		binaryCheck("extract.ffmpeg_binary", cfg.Extract.FFmpegBinary),
		binaryCheck("extract.ffprobe_binary", cfg.Extract.FFprobeBinary),
	}
	if cfg.Transcription.Provider == config.ProviderWhisperCpp {
		checks = append(checks,
			binaryCheck("transcription.whisper_cpp.binary", cfg.Transcription.WhisperCpp.Binary),
			check{name: "transcription.whisper_cpp.model_path", run: func(context.Context) (string, error) {
				_, err := os.Stat(cfg.Transcription.WhisperCpp.ModelPath)
				return cfg.Transcription.WhisperCpp.ModelPath, err
			}},
		)
	}
	checks = append(checks,
		check{name: "store", run: func(ctx context.Context) (string, error) {
			return cfg.Store.Backend, a.JobStore.Ping(ctx)
		}},
		check{name: "summarization", run: func(context.Context) (string, error) {
			cs := a.CompletionService
			detail := fmt.Sprintf("%s/%s", cs.Name(), cs.ModelName())
			if s := cs.Status(); s != store.ProviderStatusActive {
				return detail, fmt.Errorf("provider status %s", s)
			}
			return detail, nil
		}},
	)
	if cfg.Pipeline.Dispatcher == config.DispatcherAsynq {
		checks = append(checks, check{name: "redis", run: func(context.Context) (string, error) {
			inspector := asynq.NewInspector(a.RedisOptions().ClientOpt())
			defer inspector.Close()
			queues, err := inspector.Queues()
			return fmt.Sprintf("%s (%d queues)", cfg.Redis.Address, len(queues)), err
		}})
	}
	return checks
}

func runChecks(ctx context.Context, checks []check) []checkResult {
	out := make([]checkResult, 0, len(checks))
	for _, c := range checks {
		detail, err := c.run(ctx)
		out = append(out, checkResult{name: c.name, detail: detail, err: err})
	}
	return out
}

// renderChecks prints the check table and returns how many failed.
func renderChecks(w io.Writer, results []checkResult) int {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Check", "Result", "Detail"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	failed := 0
	for _, r := range results {
		status := color.GreenString("ok")
		detail := r.detail
		if r.err != nil {
			failed++
			status = color.RedString("FAIL")
			detail = r.err.Error()
		}
		table.Append([]string{r.name, status, detail})
	}
	table.Render()
	return failed
}
