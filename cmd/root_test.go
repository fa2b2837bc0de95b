package main

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"board-vision/internal/container"
)

func TestExecute_ClosesContainerOnCommandError(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "MODEL_URL", "MODEL_PATH", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID"} {
		t.Setenv(key, "")
	}

	var built *container.Container
	failing := &cobra.Command{
		Use: "failing",
		RunE: func(cmd *cobra.Command, args []string) error {
			built = appContainer
			return errors.New("command failed")
		},
	}
	rootCmd.AddCommand(failing)
	t.Cleanup(func() { rootCmd.RemoveCommand(failing) })

	err := execute(context.Background(), []string{"failing"})
	require.ErrorContains(t, err, "command failed")
	require.NotNil(t, built)
	require.Nil(t, appContainer)
}
