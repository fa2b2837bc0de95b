package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	telegram "board-vision/internal/api"
	"board-vision/internal/domain/entity"
	"board-vision/internal/infrastructure/capture"
)

var runSource string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch a live source and report every move",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLive(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().StringVarP(&runSource, "source", "s", "", "Video file, camera index or image directory (default: VIDEO_SOURCE)")
	rootCmd.AddCommand(runCmd)
}

func runLive(ctx context.Context, out io.Writer) error {
	cfg := appContainer.Config
	name := runSource
	if name == "" {
		name = cfg.VideoSource
	}

	source, err := capture.Open(name)
	if err != nil {
		return err
	}
	defer source.Close()

	stream := appContainer.Stream(source, name)
	stream.AddNotifier(&consoleNotifier{out: out})

	if last, err := stream.Restore(ctx); err != nil {
		log.Printf("warning: %v", err)
	} else if last != nil {
		fmt.Fprintf(out, "last known position: %s\n", last.FEN)
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID,
			appContainer.Subscribers, appContainer.Inspections, stream, capture.HighlightRegion)
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		stream.AddNotifier(bot)
		go func() {
			if err := bot.Run(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	}

	log.Printf("Watching %s every %s", name, cfg.CaptureInterval)
	if err := stream.Run(ctx); err != nil {
		return err
	}

	s := stream.Stats()
	log.Printf("Stopped: %d submitted, %d emitted, %d dropped, %d stale, %d failed",
		s.Submitted, s.Emitted, s.Dropped, s.Suppressed, s.Failed)
	return nil
}

// consoleNotifier печатает каждое изменение позиции.
type consoleNotifier struct {
	out io.Writer
}

func (n *consoleNotifier) Notify(ctx context.Context, u entity.PipelineUpdate) error {
	if u.Change == entity.NoChange {
		return nil
	}
	_, err := fmt.Fprintln(n.out, formatLine(u))
	return err
}

func formatLine(u entity.PipelineUpdate) string {
	return fmt.Sprintf("#%d %-9s %s  conf=%.2f low=%d %s %.1fms",
		u.RequestID, u.Change, u.FEN, u.Performance.AvgConfidence,
		u.Performance.LowConfidenceCount, u.Performance.Source, u.Performance.TotalMs)
}

