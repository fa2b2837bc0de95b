package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"board-vision/config"
	"board-vision/internal/infrastructure/storage"
)

func TestNew_InMemoryHeuristic(t *testing.T) {
	cfg := &config.Config{
		CaptureInterval:        time.Second,
		BoardRefreshInterval:   2 * time.Second,
		LowConfidenceThreshold: 0.6,
		ForceFlip:              true,
	}
	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Updates.(*storage.MemoryUpdateRepository)
	require.True(t, ok)

	pc := c.PipelineConfig()
	require.Equal(t, 2*time.Second, pc.BoardRefreshInterval)
	require.Equal(t, 0.6, pc.LowConfidenceThreshold)
	require.True(t, pc.ForceFlip)

	require.NotNil(t, c.Pipeline())
	require.NotNil(t, c.Inspections)
}
