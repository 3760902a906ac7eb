package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge.evalgo.org/bldrerr"
)

func TestDoSucceedsWithoutRetryOnFirstTry(t *testing.T) {
	o := New(nil)
	calls := 0
	err := o.Do(context.Background(), bldrerr.KindSystem, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRecoverableSystemErrorUntilSuccess(t *testing.T) {
	o := New(map[bldrerr.Kind]RetryPolicy{
		bldrerr.KindSystem: {MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2, JitterRatio: 0},
	})
	calls := 0
	err := o.Do(context.Background(), bldrerr.KindSystem, func(context.Context) error {
		calls++
		if calls < 3 {
			return bldrerr.New(bldrerr.KindSystem, "transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryBuildErrors(t *testing.T) {
	o := New(nil)
	calls := 0
	err := o.Do(context.Background(), bldrerr.KindBuild, func(context.Context) error {
		calls++
		return bldrerr.New(bldrerr.KindBuild, "compile error")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoSurfacesUnrecoverableErrorImmediately(t *testing.T) {
	o := New(map[bldrerr.Kind]RetryPolicy{
		bldrerr.KindSystem: {MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	})
	calls := 0
	err := o.Do(context.Background(), bldrerr.KindSystem, func(context.Context) error {
		calls++
		return errors.New("not a bldrerr.Error, treated as unrecoverable")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsMaxAttemptsAndReturnsLastError(t *testing.T) {
	o := New(map[bldrerr.Kind]RetryPolicy{
		bldrerr.KindNetwork: {MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	})
	calls := 0
	err := o.Do(context.Background(), bldrerr.KindNetwork, func(context.Context) error {
		calls++
		return bldrerr.New(bldrerr.KindNetwork, "still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	total, successful, failed := o.Stats().Snapshot()
	assert.Equal(t, 1, total[bldrerr.KindNetwork])
	assert.Equal(t, 0, successful[bldrerr.KindNetwork])
	assert.Equal(t, 1, failed[bldrerr.KindNetwork])
}

func TestDoRespectsContextCancellationDuringBackoff(t *testing.T) {
	o := New(map[bldrerr.Kind]RetryPolicy{
		bldrerr.KindSystem: {MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1},
	})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := o.Do(ctx, bldrerr.KindSystem, func(context.Context) error {
		calls++
		return bldrerr.New(bldrerr.KindSystem, "retry me")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDelayIsZeroForFirstAttempt(t *testing.T) {
	o := New(nil)
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, Exponential: true}
	assert.Equal(t, time.Duration(0), o.delay(p, 0))
}

func TestDelayIsCappedAtMaxDelay(t *testing.T) {
	o := New(nil)
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, Exponential: true, JitterRatio: 0}
	d := o.delay(p, 5)
	assert.LessOrEqual(t, d, 2*time.Second)
}
