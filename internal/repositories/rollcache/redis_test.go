package rollcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/pkg/clock"
	"github.com/KirkDiggler/roll-sync/internal/platform"
	"github.com/KirkDiggler/roll-sync/internal/repositories/rollcache"
	"github.com/KirkDiggler/roll-sync/internal/testutils"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	ctx     context.Context
	repo    rollcache.Repository
	cleanup func()
	ff      func(d time.Duration)
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()

	mr, client, cleanup := testutils.CreateTestRedis(s.T())
	s.cleanup = cleanup
	s.ff = mr.FastForward

	repo, err := rollcache.NewRedisRepository(&rollcache.Config{
		Client: client,
		Clock:  clock.New(),
	})
	s.Require().NoError(err)
	s.repo = repo
}

func (s *RedisRepositoryTestSuite) TearDownTest() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func testRollEvent(entityID, action string) *platform.RollEvent {
	return &platform.RollEvent{
		MessageID: "msg-1",
		Roll: platform.Roll{
			RollID: "roll-1",
			Action: action,
			DiceNotation: platform.DiceNotation{
				Set: []platform.DieSet{{
					DieType: "d20",
					Count:   1,
					Dice:    []platform.Die{{DieValue: 17}},
				}},
			},
			Context: platform.RollContext{EntityID: entityID},
		},
	}
}

func (s *RedisRepositoryTestSuite) TestPutAndTake() {
	err := s.repo.Put(s.ctx, rollcache.PutInput{
		EntityID: "42",
		Action:   "Fireball",
		Event:    testRollEvent("42", "Fireball"),
	})
	s.Require().NoError(err)

	out, err := s.repo.Take(s.ctx, rollcache.TakeInput{EntityID: "42", Action: "Fireball"})
	s.Require().NoError(err)
	s.Equal("Fireball", out.Roll.Event.Action())
	s.Equal("42", out.Roll.Event.EntityID())
}

func (s *RedisRepositoryTestSuite) TestTakeConsumesEntry() {
	err := s.repo.Put(s.ctx, rollcache.PutInput{
		EntityID: "42",
		Action:   "Fireball",
		Event:    testRollEvent("42", "Fireball"),
	})
	s.Require().NoError(err)

	_, err = s.repo.Take(s.ctx, rollcache.TakeInput{EntityID: "42", Action: "Fireball"})
	s.Require().NoError(err)

	// Second take must miss: entries are consumed at most once.
	_, err = s.repo.Take(s.ctx, rollcache.TakeInput{EntityID: "42", Action: "Fireball"})
	s.True(errors.IsNotFound(err))
}

func (s *RedisRepositoryTestSuite) TestEntryExpires() {
	err := s.repo.Put(s.ctx, rollcache.PutInput{
		EntityID: "42",
		Action:   "Fireball",
		Event:    testRollEvent("42", "Fireball"),
	})
	s.Require().NoError(err)

	s.ff(rollcache.DefaultTTL + time.Second)

	has, err := s.repo.Has(s.ctx, rollcache.HasInput{EntityID: "42", Action: "Fireball"})
	s.Require().NoError(err)
	s.False(has)

	_, err = s.repo.Take(s.ctx, rollcache.TakeInput{EntityID: "42", Action: "Fireball"})
	s.True(errors.IsNotFound(err))
}

func (s *RedisRepositoryTestSuite) TestHasDoesNotConsume() {
	err := s.repo.Put(s.ctx, rollcache.PutInput{
		EntityID: "42",
		Action:   "Fireball",
		Event:    testRollEvent("42", "Fireball"),
	})
	s.Require().NoError(err)

	has, err := s.repo.Has(s.ctx, rollcache.HasInput{EntityID: "42", Action: "Fireball"})
	s.Require().NoError(err)
	s.True(has)

	_, err = s.repo.Take(s.ctx, rollcache.TakeInput{EntityID: "42", Action: "Fireball"})
	s.NoError(err)
}

func (s *RedisRepositoryTestSuite) TestDeleteIsIdempotent() {
	s.NoError(s.repo.Delete(s.ctx, rollcache.DeleteInput{EntityID: "42", Action: "Fireball"}))
	s.NoError(s.repo.Delete(s.ctx, rollcache.DeleteInput{EntityID: "42", Action: "Fireball"}))
}

func (s *RedisRepositoryTestSuite) TestValidation() {
	err := s.repo.Put(s.ctx, rollcache.PutInput{Action: "Fireball", Event: testRollEvent("", "Fireball")})
	s.True(errors.IsInvalidArgument(err))

	_, err = s.repo.Take(s.ctx, rollcache.TakeInput{EntityID: "42"})
	s.True(errors.IsInvalidArgument(err))
}

func TestRedisRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RedisRepositoryTestSuite))
}
