package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_SettlesWithResult(t *testing.T) {
	release := make(chan struct{})

	task := Go(func() (int, error) {
		<-release

		return 42, nil
	})

	assert.False(t, task.Settled())
	close(release)

	value, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.True(t, task.Settled())
}

func TestGo_SettlesWithError(t *testing.T) {
	boom := errors.New("boom")

	task := Go(func() (string, error) {
		return "", boom
	})

	_, err := task.Result()
	assert.ErrorIs(t, err, boom)
}

func TestGo_RecoversPanic(t *testing.T) {
	task := Go(func() (int, error) {
		panic("unexpected")
	})

	_, err := task.Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected")
}

func TestWait_AbandonedByContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	task := Go(func() (int, error) {
		<-release

		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, task.Settled())
}

func TestResolved(t *testing.T) {
	task := Resolved[*int](nil, nil)

	assert.True(t, task.Settled())

	value, err := task.Result()
	require.NoError(t, err)
	assert.Nil(t, value)

	select {
	case <-task.Done():
	default:
		t.Fatal("resolved task should be done")
	}
}
