//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tradesync/internal/jobs/lock"
	"tradesync/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *lock.Redis
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.locker = lock.NewRedis(s.redis.Client)
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestSingleHolder() {
	ctx := context.Background()
	token, ok, err := s.locker.TryLock(ctx, "run", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	_, ok, err = s.locker.TryLock(ctx, "run", time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	s.ErrorIs(s.locker.Unlock(ctx, "run", "someone-else"), lock.ErrNotHeld)
	s.Require().NoError(s.locker.Unlock(ctx, "run", token))

	_, ok, err = s.locker.TryLock(ctx, "run", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RedisLockSuite) TestExpiry() {
	ctx := context.Background()
	_, ok, err := s.locker.TryLock(ctx, "short", 100*time.Millisecond)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Eventually(func() bool {
		_, ok, err := s.locker.TryLock(ctx, "short", time.Minute)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond)
}
