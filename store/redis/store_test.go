package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/store"
	redisstore "github.com/xraph/queuectl/store/redis"
	"github.com/xraph/queuectl/store/storetest"
)

func newStore(t *testing.T, opts ...redisstore.Option) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.New(client, opts...), mr
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newStore(t)
		return s
	})
}

func TestConformance_SmallBatches(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newStore(t, redisstore.WithBatchSize(1))
		return s
	})
}

func TestKeysLayout(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	j := job.New(id.NewJobID(), "echo hi", 3, time.Now().UTC())
	require.NoError(t, s.InsertJob(ctx, j))

	jID := j.ID.String()
	assert.True(t, mr.Exists("queuectl:job:"+jID))
	members, err := mr.ZMembers("queuectl:state:pending")
	require.NoError(t, err)
	assert.Equal(t, []string{jID}, members)

	ok, err := s.ConditionalUpdate(ctx, j.ID, job.StatePending, job.Patch{
		State:     job.StateProcessing,
		WorkerID:  id.NewWorkerID(),
		UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Zero(t, s.Client().ZCard(ctx, "queuectl:state:pending").Val())
	members, err = mr.ZMembers("queuectl:state:processing")
	require.NoError(t, err)
	assert.Equal(t, []string{jID}, members)
	assert.NotEmpty(t, mr.HGet("queuectl:job:"+jID, "worker_id"))
}

func TestConditionalUpdate_ClearsWorker(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	j := job.New(id.NewJobID(), "true", 3, now)
	j.State = job.StateProcessing
	j.WorkerID = id.NewWorkerID()
	require.NoError(t, s.InsertJob(ctx, j))

	ok, err := s.ConditionalUpdate(ctx, j.ID, job.StateProcessing, job.Patch{
		State:     job.StateCompleted,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, ok)

	key := "queuectl:job:" + j.ID.String()
	assert.Empty(t, mr.HGet(key, "worker_id"))
	assert.Equal(t, "completed", mr.HGet(key, "state"))
}

func TestCountByState_OmitsEmpty(t *testing.T) {
	s, _ := newStore(t)
	counts, err := s.CountByState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := redisstore.Open("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Close())

	_, err = redisstore.Open("://bad")
	assert.Error(t, err)
}

func TestBorrowedClientNotClosed(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Ping(context.Background()))
}
