package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"board-vision/internal/domain/entity"
	"board-vision/internal/infrastructure/capture"
)

var locateCmd = &cobra.Command{
	Use:   "locate <image>",
	Short: "Print the board region found in a still image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := capture.LoadImage(args[0])
		if err != nil {
			return err
		}
		res, err := appContainer.Inspections.Locate(frame)
		if err != nil {
			return err
		}
		if !res.Found {
			return fmt.Errorf("no board found in %s", args[0])
		}
		r := res.Region
		fmt.Fprintf(cmd.OutOrStdout(), "x=%d y=%d width=%d height=%d (image %dx%d)\n",
			r.X, r.Y, r.Width, r.Height, res.ImageWidth, res.ImageHeight)
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Recognize the position in a still image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := capture.LoadImage(args[0])
		if err != nil {
			return err
		}
		res, err := appContainer.Inspections.Inspect(cmd.Context(), frame)
		if err != nil {
			return err
		}
		if !res.Found {
			return fmt.Errorf("no board found in %s", args[0])
		}
		printClassification(cmd.OutOrStdout(), res.Classification)
		return nil
	},
}

// printClassification печатает FEN и сетку меток с уверенностью.
func printClassification(out io.Writer, c *entity.Classification) {
	fmt.Fprintf(out, "%s\n", c.FEN)
	fmt.Fprintf(out, "perspective=%s flipped=%t source=%s avg=%.2f\n\n", c.Perspective, c.WasFlipped, c.Source, c.AvgConfidence)
	for row := 0; row < 8; row++ {
		fmt.Fprintf(out, "%d ", 8-row)
		for file := 0; file < 8; file++ {
			i := entity.Square(row, file)
			fmt.Fprintf(out, " %s:%.2f", c.Snapshot.Pieces[i], c.Snapshot.Confidences[i])
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "   a      b      c      d      e      f      g      h")
}

func init() {
	rootCmd.AddCommand(locateCmd, classifyCmd)
}
