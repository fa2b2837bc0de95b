package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
	"board-vision/internal/infrastructure/capture"
)

type scanOptions struct {
	InputPath string
	NthFrame  int
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Replay a recorded game and list every position change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanOpts.InputPath == "" {
			return errors.New("--input is required")
		}
		if scanOpts.NthFrame < 1 {
			return fmt.Errorf("--nth-frame must be at least 1, got %d", scanOpts.NthFrame)
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		source, err := capture.Open(scanOpts.InputPath)
		if err != nil {
			return err
		}
		defer source.Close()

		total := -1
		seeker, _ := source.(capture.Seeker)
		if seeker != nil && seeker.FrameCount() > 0 {
			total = seeker.FrameCount()
		}

		bar := progressbar.NewOptions(total,
			progressbar.OptionSetDescription("♟ Scanning"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		pipeline := appContainer.Pipeline()
		var last *entity.PipelineUpdate
		changes := 0
		for {
			frame, err := source.Next(ctx)
			if errors.Is(err, port.ErrSourceExhausted) || ctx.Err() != nil {
				break
			}
			if err != nil {
				bar.Add(1)
				continue
			}

			u, err := pipeline.ProcessFrame(ctx, frame)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nframe skipped: %v\n", err)
			}
			if u != nil {
				last = u
				if u.Change != entity.NoChange {
					changes++
					bar.Clear()
					fmt.Fprintln(out, formatLine(*u))
				}
			}

			bar.Add(scanOpts.NthFrame)
			if seeker != nil {
				seeker.Skip(scanOpts.NthFrame - 1)
			}
		}
		bar.Finish()
		fmt.Fprintln(os.Stderr)

		if last != nil {
			if err := appContainer.Updates.SaveLast(ctx, scanOpts.InputPath, *last); err != nil {
				return fmt.Errorf("save last update: %w", err)
			}
		}
		fmt.Fprintf(out, "%d position changes\n", changes)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.InputPath, "input", "i", "", "Path to video or image directory")
	scanCmd.Flags().IntVarP(&scanOpts.NthFrame, "nth-frame", "n", 10, "Process every Nth frame")
	rootCmd.AddCommand(scanCmd)
}
