package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopExecutorRunsCommandAndReportsNonHermetic(t *testing.T) {
	spec, err := NewBuilder("echo", t.TempDir()).Build()
	require.NoError(t, err)

	out, err := NoopExecutor{}.Execute(context.Background(), spec, []string{"echo", "hi"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Contains(t, string(out.Stdout), "hi")
	assert.False(t, out.Hermetic)
}

func TestNoopExecutorReportsNonZeroExitCode(t *testing.T) {
	dir := t.TempDir()
	spec, err := NewBuilder("false", dir).Build()
	require.NoError(t, err)

	out, err := NoopExecutor{}.Execute(context.Background(), spec, []string{"sh", "-c", "exit 3"}, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, out.ExitCode)
}
