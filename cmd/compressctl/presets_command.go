package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"compress-service/ddd/domain/service"
)

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the named compression presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := service.Presets()
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				rows = append(rows, []string{p.Name, p.Resolution, p.VideoCodec, strconv.Itoa(p.CRF), p.SpeedPreset})
			}
			out := renderTable(
				[]string{"Name", "Resolution", "Codec", "CRF", "Speed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
}
