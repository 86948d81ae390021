/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package redis_db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the client shared by the sync queue and the sweep lock.
type Redis struct {
	address string
	client  redis.UniversalClient
}

// ParseRedisURL turns the configured Redis address into client options.
// Docker-style "host:port" addresses are used as-is; anything else must be a
// redis:// or rediss:// URL. A bare password before "@" is accepted.
func ParseRedisURL(rawURL string) (*redis.Options, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	if strings.Count(rawURL, ":") == 1 && !strings.Contains(rawURL, "@") && !strings.Contains(rawURL, "//") {
		opts := &redis.Options{Addr: rawURL}
		if strings.Contains(rawURL, "redis.cache.windows.net") {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return opts, nil
	}

	for _, scheme := range []string{"redis://", "rediss://"} {
		if !strings.HasPrefix(rawURL, scheme) || !strings.Contains(rawURL, "@") {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(rawURL, scheme), "@", 2)
		if !strings.Contains(parts[0], ":") {
			rawURL = fmt.Sprintf("%s:%s@%s", scheme, parts[0], parts[1])
		}
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis address %q: %w", rawURL, err)
	}
	return opts, nil
}

// NewRedisClient connects to address and verifies the connection with a ping.
func NewRedisClient(address string) (*Redis, error) {
	opts, err := ParseRedisURL(address)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{address: address, client: client}, nil
}

// Client returns the underlying client for direct Redis operations.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

func (r *Redis) Close() error {
	return r.client.Close()
}
