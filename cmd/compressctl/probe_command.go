package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"compress-service/ddd/infrastructure/executor"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE",
		Short: "Show the duration and bitrate ffmpeg reports for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			res, err := executor.NewFFmpegSupervisor(cfg.Compress.FFmpeg).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			bitrate := "n/a"
			if res.BitrateKbps > 0 {
				bitrate = strconv.FormatInt(res.BitrateKbps, 10) + " kb/s"
			}
			rows := [][]string{
				{"File", args[0]},
				{"Size", humanize.IBytes(uint64(info.Size()))},
				{"Duration", (time.Duration(res.DurationSeconds * float64(time.Second))).Round(10 * time.Millisecond).String()},
				{"Bitrate", bitrate},
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return err
		},
	}
}
