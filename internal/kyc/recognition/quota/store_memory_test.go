package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 10
	testWindow = time.Minute
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore(WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestAllow() {
	s.Run("first call allowed", func() {
		result, err := s.store.Allow(s.ctx, "session:first", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(testLimit-1, result.Remaining)
		s.Equal(s.now.Add(testWindow), result.ResetAt)
	})

	s.Run("calls up to limit allowed", func() {
		var result *Result
		var err error
		for range testLimit {
			result, err = s.store.Allow(s.ctx, "session:limit", testLimit, testWindow)
		}
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(0, result.Remaining)
	})

	s.Run("call over limit denied with retry hint", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "session:over", testLimit, testWindow)
			s.Require().NoError(err)
		}
		result, err := s.store.Allow(s.ctx, "session:over", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(testWindow, result.RetryAfter(s.now))
	})

	s.Run("keys are independent", func() {
		for range testLimit {
			_, _ = s.store.Allow(s.ctx, "session:a", testLimit, testWindow)
		}
		result, err := s.store.Allow(s.ctx, "session:b", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryStoreSuite) TestWindowSlides() {
	key := "session:slide"
	for range 3 {
		_, err := s.store.Allow(s.ctx, key, 3, testWindow)
		s.Require().NoError(err)
	}
	denied, err := s.store.Allow(s.ctx, key, 3, testWindow)
	s.Require().NoError(err)
	s.False(denied.Allowed)

	s.now = s.now.Add(testWindow + time.Second)
	allowed, err := s.store.Allow(s.ctx, key, 3, testWindow)
	s.Require().NoError(err)
	s.True(allowed.Allowed)

	count, err := s.store.CurrentCount(s.ctx, key, testWindow)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *InMemoryStoreSuite) TestAllowN() {
	s.Run("cost that does not fit records nothing", func() {
		_, err := s.store.AllowN(s.ctx, "n", 8, testLimit, testWindow)
		s.Require().NoError(err)
		result, err := s.store.AllowN(s.ctx, "n", 3, testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)

		count, err := s.store.CurrentCount(s.ctx, "n", testWindow)
		s.Require().NoError(err)
		s.Equal(8, count)
	})
}

func (s *InMemoryStoreSuite) TestReset() {
	for range testLimit {
		_, _ = s.store.Allow(s.ctx, "reset", testLimit, testWindow)
	}
	s.Require().NoError(s.store.Reset(s.ctx, "reset"))
	result, err := s.store.Allow(s.ctx, "reset", testLimit, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *InMemoryStoreSuite) TestConcurrentAllow() {
	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(s.ctx, "concurrent", testLimit, testWindow)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(testLimit, allowed)
}
