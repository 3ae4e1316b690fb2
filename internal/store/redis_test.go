package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJob(t *testing.T) {
	job, err := DecodeJob([]byte(`{"jobId":"j1","jobType":"open_drawer","businessId":"b1","payload":{"pin":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, model.JobOpenDrawer, job.Type)
	assert.Equal(t, model.JobPending, job.Status)

	payload, err := job.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, model.OpenDrawerPayload{Pin: 1}, payload)

	_, err = DecodeJob([]byte(`{"jobType":"open_drawer"}`))
	assert.Error(t, err)
	_, err = DecodeJob([]byte(`not json`))
	assert.Error(t, err)
}

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue(context.Background(), RedisConfig{
		Address:      mr.Addr(),
		QueueKey:     "printbridge:jobs",
		StatusPrefix: "printbridge:job:",
		PollTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, mr
}

func TestNewRedisQueueUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisQueue(context.Background(), RedisConfig{Address: addr})
	assert.Error(t, err)
}

func TestRedisQueueRun(t *testing.T) {
	q, mr := newTestQueue(t)

	_, err := mr.Lpush("printbridge:jobs", `not json`)
	require.NoError(t, err)
	mr.Push("printbridge:jobs",
		`{"jobType":"open_drawer","printerId":"till"}`,
		`{"jobId":"j1","jobType":"open_drawer","printerId":"till"}`)

	out := make(chan model.PrintJob, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx, out) }()

	select {
	case job := <-out:
		assert.Equal(t, "j1", job.ID)
		assert.Equal(t, model.JobPending, job.Status)
	case <-time.After(3 * time.Second):
		t.Fatal("no job popped")
	}

	// a job pushed while Run is blocked in BLPOP is delivered too
	mr.Push("printbridge:jobs", `{"jobId":"j2","jobType":"open_drawer","printerId":"till"}`)
	select {
	case job := <-out:
		assert.Equal(t, "j2", job.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no job popped after push")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, out, "malformed and id-less jobs are dropped")
	assert.False(t, mr.Exists("printbridge:jobs"))
}

func TestRedisQueueSetJobStatusWriteOnce(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SetJobStatus(ctx, "j1", model.JobCompleted))
	err := q.SetJobStatus(ctx, "j1", model.JobFailed)
	assert.ErrorIs(t, err, model.ErrStatusAlreadySet)

	assert.Equal(t, string(model.JobCompleted), mr.HGet("printbridge:job:j1", "status"))
	assert.NotEmpty(t, mr.HGet("printbridge:job:j1", "updated_at"))
}
