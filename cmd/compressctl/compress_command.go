package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"compress-service/app"
	"compress-service/ddd/application/cqe"
	"compress-service/ddd/domain/vo"
	"compress-service/ddd/infrastructure/notify"
	"compress-service/ddd/infrastructure/storage"
	"compress-service/pkg/config"
)

// localUser owns every job started from the CLI.
const localUser = "local"

type compressOptions struct {
	quality   string
	outDir    string
	workDir   string
	duration  float64
	overrides map[string]string
}

func newCompressCommand(ctx *commandContext) *cobra.Command {
	opts := compressOptions{}
	cmd := &cobra.Command{
		Use:   "compress FILE",
		Short: "Compress one video file and write the result to a local directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := runCompress(runCtx, cfg, args[0], opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			if !report.Succeeded() {
				return fmt.Errorf("compression %s: %s", report.Outcome, report.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.quality, "quality", "q", "auto", "Quality: auto, a quality word, 10-90, a preset name or custom")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "compressed", "Directory receiving the compressed artifacts")
	cmd.Flags().StringVar(&opts.workDir, "work-dir", filepath.Join(os.TempDir(), "compressctl"), "Scratch directory for job files")
	cmd.Flags().Float64Var(&opts.duration, "duration", 0, "Declared duration in seconds, used when probing fails")
	cmd.Flags().StringToStringVar(&opts.overrides, "set", nil, "Custom field overrides, e.g. --set crf=28 --set resolution=1280x720")
	return cmd
}

// runCompress assembles an in-process engine with local adapters and runs one
// job to completion. Cancelling ctx cancels the job.
func runCompress(ctx context.Context, base *config.Config, path string, opts compressOptions, out io.Writer) (vo.FinalReport, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return vo.FinalReport{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return vo.FinalReport{}, err
	}
	if info.IsDir() {
		return vo.FinalReport{}, fmt.Errorf("%s is a directory", path)
	}

	// 本地模式只用内存会话，不连接任何外部资源
	cfg := *base
	cfg.Session.Backend = "memory"
	cfg.Redis.Enabled = false
	cfg.Database.Enabled = false
	cfg.Kafka.Enabled = false
	cfg.Minio.Enabled = false
	cfg.Compress.AllowedExtensions = nil
	cfg.Compress.MaxFileSize = 0
	if opts.workDir != "" {
		cfg.Compress.WorkRoot = opts.workDir
	}

	reporter := newCLIReporter(out)
	stack, err := app.BuildStack(&cfg, app.Overrides{
		Media:    storage.NewLocalMediaResolver(filepath.Dir(abs)),
		Sink:     storage.NewLocalDirSink(opts.outDir),
		Reporter: reporter,
		OpsLog:   notify.NewLogOpsLog(),
	})
	if err != nil {
		return vo.FinalReport{}, err
	}

	job, err := stack.App.Submit(ctx, &cqe.CompressRequestMsg{
		UserID:          localUser,
		Key:             abs,
		FileName:        filepath.Base(abs),
		Size:            info.Size(),
		DurationSeconds: opts.duration,
		Quality:         opts.quality,
		Overrides:       opts.overrides,
	})
	if err != nil {
		return vo.FinalReport{}, err
	}
	fmt.Fprintf(out, "job %s started for %s (%s)\n", job.JobID, filepath.Base(abs), humanize.IBytes(uint64(info.Size())))

	finished := make(chan struct{})
	go func() {
		stack.Orchestrator.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		fmt.Fprintln(out, "interrupt received, cancelling job")
		if _, err := stack.Orchestrator.Cancel(context.Background(), vo.Actor{ID: localUser}, localUser); err != nil {
			fmt.Fprintf(out, "cancel failed: %v\n", err)
		}
		<-finished
	}

	report, ok := reporter.report()
	if !ok {
		return vo.FinalReport{}, errors.New("job finished without a final report")
	}
	return report, nil
}

func renderReport(r vo.FinalReport) string {
	rows := [][]string{
		{"Job", r.JobID},
		{"Outcome", string(r.Outcome)},
		{"Message", r.Message},
	}
	if r.Succeeded() {
		rows = append(rows,
			[]string{"Original", humanize.IBytes(uint64(r.OriginalSize))},
			[]string{"Compressed", humanize.IBytes(uint64(r.CompressedSize))},
			[]string{"Saved", fmt.Sprintf("%.1f%%", r.SavedPercent)},
			[]string{"Parameters", r.Parameters},
			[]string{"Location", r.Location},
		)
	} else if r.FailedStage != "" {
		rows = append(rows, []string{"Failed stage", string(r.FailedStage)})
	}

	stages := make([]string, 0, len(r.Durations))
	for s := range r.Durations {
		stages = append(stages, string(s))
	}
	sort.Strings(stages)
	for _, s := range stages {
		rows = append(rows, []string{"Time " + s, r.Durations[vo.Stage(s)].Round(time.Millisecond).String()})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
