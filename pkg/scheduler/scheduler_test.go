package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assetmigration/pkg/job"
)

type fakeResumer struct {
	calls int
	err   error
}

func (f *fakeResumer) Continue(ctx context.Context) (string, error) {
	f.calls++
	return "job-1", f.err
}

func TestNewRejectsBadCron(t *testing.T) {
	_, err := New("not a cron expr", &fakeResumer{}, zap.NewNop())
	assert.Error(t, err)
}

func TestTickResumesInterruptedJob(t *testing.T) {
	resumer := &fakeResumer{}
	s, err := New("*/15 * * * *", resumer, zap.NewNop())
	require.NoError(t, err)

	s.tick()
	assert.Equal(t, 1, resumer.calls)
}

func TestTickIgnoresNothingToResume(t *testing.T) {
	resumer := &fakeResumer{err: job.ErrNotResumable}
	s, err := New("@hourly", resumer, zap.NewNop())
	require.NoError(t, err)

	// Must not panic or retry; the next tick will look again.
	s.tick()
	s.tick()
	assert.Equal(t, 2, resumer.calls)
}
