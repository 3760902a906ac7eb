package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge.evalgo.org/cloud"
)

func TestProvisionReportsRunningWorker(t *testing.T) {
	p := New()
	id, err := p.Provision(context.Background(), map[string]string{"region": "local"})
	require.NoError(t, err)

	info, err := p.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, cloud.PhaseRunning, info.Phase)
	assert.Equal(t, "local", info.Labels["region"])
}

func TestTerminateMovesWorkerToTerminated(t *testing.T) {
	p := New()
	id, err := p.Provision(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, p.Terminate(context.Background(), id))

	info, err := p.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, cloud.PhaseTerminated, info.Phase)
}

func TestStatusOfUnknownWorkerErrors(t *testing.T) {
	p := New()
	_, err := p.Status(context.Background(), cloud.WorkerId("nope"))
	assert.ErrorIs(t, err, cloud.ErrUnknownWorker)
}

func TestTerminateOfUnknownWorkerErrors(t *testing.T) {
	p := New()
	err := p.Terminate(context.Background(), cloud.WorkerId("nope"))
	assert.ErrorIs(t, err, cloud.ErrUnknownWorker)
}
