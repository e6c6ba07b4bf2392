//go:build integration

package quota_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vericore/internal/kyc/recognition/quota"
	"vericore/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *quota.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = quota.NewRedisStore(s.redis.Client.Client, "test:quota:")
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestAllowUpToLimit() {
	ctx := context.Background()
	for i := range 5 {
		res, err := s.store.Allow(ctx, "session", 5, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(5-(i+1), res.Remaining)
	}
	res, err := s.store.Allow(ctx, "session", 5, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.True(res.ResetAt.After(time.Now()))

	count, err := s.store.CurrentCount(ctx, "session", time.Minute)
	s.Require().NoError(err)
	s.Equal(5, count)
}

// Concurrent callers across connections never exceed the limit.
func (s *RedisStoreSuite) TestConcurrentAllow() {
	ctx := context.Background()
	const goroutines = 40
	var wg sync.WaitGroup
	var allowed atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(ctx, "global", 10, time.Minute)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(10), allowed.Load())
}

func (s *RedisStoreSuite) TestReset() {
	ctx := context.Background()
	_, err := s.store.AllowN(ctx, "reset", 3, 3, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "reset"))

	res, err := s.store.Allow(ctx, "reset", 3, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
