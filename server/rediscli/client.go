// Copyright (C) 2025 Christian Rößner
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package rediscli

import (
	"github.com/croessner/secenh/server/config"
	"github.com/redis/go-redis/v9"
)

// Client defines an interface for interacting with a Redis client with methods for handle retrieval.
type Client interface {
	// GetWriteHandle retrieves the Redis client's write handle for operations requiring write access.
	GetWriteHandle() redis.UniversalClient

	// GetReadHandle retrieves a Redis client's read handle, falling back to the write handle.
	GetReadHandle() redis.UniversalClient

	// Close releases all resources associated with the client.
	Close()
}

// redisClient represents a Redis client with separate handles for write and read operations.
type redisClient struct {
	writeHandle redis.UniversalClient
	readHandle  redis.UniversalClient
}

var _ Client = (*redisClient)(nil)

// NewClient creates a Redis client from the given configuration section. The
// read handle stays nil unless a distinct replica address is configured.
func NewClient(redisCfg *config.RedisSection) Client {
	newClient := &redisClient{}

	newClient.writeHandle = newRedisClient(redisCfg, redisCfg.Master)

	if redisCfg.Replica.Address != "" && redisCfg.Replica.Address != redisCfg.Master.Address {
		newClient.readHandle = newRedisClient(redisCfg, redisCfg.Replica)
	}

	return newClient
}

// newRedisClient returns a new Redis client for one endpoint. Each endpoint
// carries its own credentials; a replica may authenticate differently than
// the master.
func newRedisClient(redisCfg *config.RedisSection, endpoint config.RedisAddress) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         endpoint.Address,
		Username:     endpoint.Username,
		Password:     endpoint.Password,
		DB:           redisCfg.DatabaseNmbr,
		PoolSize:     redisCfg.GetPoolSize(),
		MinIdleConns: redisCfg.IdlePoolSize,
	})
}

// GetWriteHandle returns the Redis client's write handle.
func (clt *redisClient) GetWriteHandle() redis.UniversalClient {
	return clt.writeHandle
}

// GetReadHandle returns the read handle if a replica is configured, otherwise the write handle.
func (clt *redisClient) GetReadHandle() redis.UniversalClient {
	if clt.readHandle != nil {
		return clt.readHandle
	}

	return clt.writeHandle
}

// Close terminates all active connections held by the redisClient.
func (clt *redisClient) Close() {
	if clt.writeHandle != nil {
		clt.writeHandle.Close()
	}

	if clt.readHandle != nil {
		clt.readHandle.Close()
	}
}

// testClient is a concrete implementation of the Client interface using a single Redis UniversalClient.
type testClient struct {
	client redis.UniversalClient
}

var _ Client = (*testClient)(nil)

// GetWriteHandle returns the Redis UniversalClient used for write operations.
func (tc *testClient) GetWriteHandle() redis.UniversalClient {
	return tc.client
}

// GetReadHandle retrieves the Redis UniversalClient instance for read operations.
func (tc *testClient) GetReadHandle() redis.UniversalClient {
	return tc.client
}

// Close terminates the connection managed by the testClient.
func (tc *testClient) Close() {
	tc.client.Close()
}

// NewTestClient returns a Client implementation wrapping the provided Redis
// client. Tests use this together with redismock.
func NewTestClient(db redis.UniversalClient) Client {
	return &testClient{client: db}
}
