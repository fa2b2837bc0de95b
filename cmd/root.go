package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"board-vision/config"
	"board-vision/internal/container"
)

// Version версия приложения.
const Version = "0.1.0"

// appContainer общие зависимости подкоманд
var appContainer *container.Container

var rootCmd = &cobra.Command{
	Use:          "board-vision",
	Short:        "Chess board recognition from a video stream",
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if forceFlip {
			cfg.ForceFlip = true
		}

		appContainer, err = container.New(cmd.Context(), cfg)
		return err
	},
}

var forceFlip bool

func Execute() {
	// Ctrl+C и SIGTERM отменяют контекст команды
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := execute(ctx, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute запускает команду и закрывает зависимости, в том числе после ошибки команды.
func execute(ctx context.Context, args []string) error {
	if args != nil {
		rootCmd.SetArgs(args)
	}
	defer closeContainer()
	return rootCmd.ExecuteContext(ctx)
}

func closeContainer() {
	if appContainer != nil {
		appContainer.Close()
		appContainer = nil
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&forceFlip, "flip", false, "Rotate the recognized board by 180° (overrides FORCE_FLIP)")
}
