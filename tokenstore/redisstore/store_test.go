package redisstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/jrsteele09/go-underwriter/tokenstore/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tContainer "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type RedisStoreTestSuite struct {
	suite.Suite
	ctx       context.Context
	container tContainer.Container
	client    *redis.Client
}

func (s *RedisStoreTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := tContainer.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := tContainer.GenericContainer(s.ctx, tContainer.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "6379")
	s.Require().NoError(err)

	client, err := redisstore.NewClient(s.ctx, redisstore.Config{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	s.Require().NoError(err)
	s.client = client
}

func (s *RedisStoreTestSuite) TearDownSuite() {
	if s.client != nil {
		s.Require().NoError(s.client.Close())
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(s.ctx))
	}
}

func (s *RedisStoreTestSuite) TestGetSetRemove() {
	store := redisstore.New(s.client, "alice", time.Second)

	_, ok := store.Get(tokenstore.KeyToken)
	s.False(ok)

	s.Require().NoError(store.Set(tokenstore.KeyToken, "abc"))
	v, ok := store.Get(tokenstore.KeyToken)
	s.True(ok)
	s.Equal("abc", v)

	s.Require().NoError(store.Remove(tokenstore.KeyToken))
	_, ok = store.Get(tokenstore.KeyToken)
	s.False(ok)
}

func (s *RedisStoreTestSuite) TestProfilesAreIsolated() {
	alice := redisstore.New(s.client, "alice-2", time.Second)
	bob := redisstore.New(s.client, "bob-2", time.Second)

	s.Require().NoError(alice.Set(tokenstore.KeyUser, "alice"))
	_, ok := bob.Get(tokenstore.KeyUser)
	s.False(ok)
}

func TestRedisStoreTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container suite skipped in short mode")
	}
	tContainer.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(RedisStoreTestSuite))
}
