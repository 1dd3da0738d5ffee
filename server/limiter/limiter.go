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

// Package limiter throttles login attempts with two sliding-window failure
// counters: a short window keyed by (IP, username) and a longer one keyed by
// the IP alone. A successful login pays one failure back instead of clearing
// the window, so alternating guess/success cycles still accumulate.
package limiter

import (
	"context"
	"strconv"
	"time"

	"github.com/croessner/secenh/server/cache"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/errors"
	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/log"
	"github.com/croessner/secenh/server/util"
	"github.com/go-kit/log/level"
)

// Limiter holds the counter configuration and its backing cache. The
// geolocation client is optional and only enriches throttle logs.
type Limiter struct {
	cfg   *config.LimiterSection
	cache cache.Cache
	geo   *ipapi.Client
}

// New returns a Limiter using the shared cache.
func New(cfg *config.LimiterSection, sharedCache cache.Cache, geo *ipapi.Client) *Limiter {
	return &Limiter{cfg: cfg, cache: sharedCache, geo: geo}
}

// IdentityKey is the counter key for one (IP, username) pair.
func IdentityKey(ip, username string) string {
	return ip + "|" + username
}

// IPKey is the counter key for an IP across all usernames.
func IPKey(ip string) string {
	return ip
}

// counter describes one failure counter.
type counter struct {
	key string
	ttl time.Duration
}

// counters returns both counters for an attempt. The TTL of a counter is set
// once when it is created; later failures inside the window do not extend it.
func (l *Limiter) counters(ip, username string) []counter {
	return []counter{
		{key: IdentityKey(ip, username), ttl: l.cfg.GetIdentityTTL()},
		{key: IPKey(ip), ttl: l.cfg.GetIPTTL()},
	}
}

// RecordFailure bumps both counters for a failed login attempt. Attempts
// without a resolvable client IP are not counted.
func (l *Limiter) RecordFailure(ctx context.Context, ip, username string) error {
	if ip == "" {
		return nil
	}

	for _, c := range l.counters(ip, username) {
		if _, err := l.cache.Add(ctx, definitions.CacheGroupLimiter, c.key, "0", c.ttl); err != nil {
			return err
		}

		if _, err := l.cache.Increment(ctx, definitions.CacheGroupLimiter, c.key); err != nil {
			return err
		}
	}

	return nil
}

// RecordSuccess pays one recorded failure back on both counters. A counter
// reaching zero is removed; an absent counter stays absent.
func (l *Limiter) RecordSuccess(ctx context.Context, ip, username string) error {
	if ip == "" {
		return nil
	}

	for _, c := range l.counters(ip, username) {
		_, found, err := l.cache.Get(ctx, definitions.CacheGroupLimiter, c.key)
		if err != nil {
			return err
		}

		if !found {
			continue
		}

		value, err := l.cache.Decrement(ctx, definitions.CacheGroupLimiter, c.key)
		if err != nil {
			return err
		}

		if value <= 0 {
			if err := l.cache.Delete(ctx, definitions.CacheGroupLimiter, c.key); err != nil {
				return err
			}
		}
	}

	return nil
}

// CheckLimits reports whether a login attempt may proceed. Whitelisted IPs
// always pass. Throttled attempts return ErrLoginLimitExceeded; evaluation
// never bumps the counters.
func (l *Limiter) CheckLimits(ctx context.Context, guid, ip, username string) error {
	if ip == "" {
		return nil
	}

	if util.IsInNetwork(l.cfg.GetWhitelist(), guid, ip) {
		return nil
	}

	identityCount, err := l.counterValue(ctx, IdentityKey(ip, username))
	if err != nil {
		return err
	}

	ipCount, err := l.counterValue(ctx, IPKey(ip))
	if err != nil {
		return err
	}

	var window string

	switch {
	case identityCount >= int64(l.cfg.GetIdentityThreshold()):
		window = "identity"
	case ipCount >= int64(l.cfg.GetIPThreshold()):
		window = "ip"
	default:
		return nil
	}

	ThrottledLoginsTotal.WithLabelValues(window).Inc()

	l.logThrottle(ctx, guid, ip, username)

	return errors.ErrLoginLimitExceeded
}

// counterValue reads one counter, treating absence as zero.
func (l *Limiter) counterValue(ctx context.Context, key string) (int64, error) {
	value, found, err := l.cache.Get(ctx, definitions.CacheGroupLimiter, key)
	if err != nil {
		return 0, err
	}

	if !found {
		return 0, nil
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}

	return count, nil
}

// logThrottle writes the throttle warning, enriched with the geolocation of
// the offending IP when available.
func (l *Limiter) logThrottle(ctx context.Context, guid, ip, username string) {
	geoip := definitions.NotAvailable

	if l.geo != nil {
		if record := l.geo.Geolocate(ctx, ip); record != nil {
			geoip = ipapi.DescribeJoined(record)
		}
	}

	level.Warn(log.Logger).Log(
		definitions.LogKeyGUID, guid,
		definitions.LogKeyLoginLimiter, true,
		definitions.LogKeyClientIP, ip,
		definitions.LogKeyUsername, username,
		definitions.LogKeyGeoIP, geoip,
		definitions.LogKeyMsg, "Login limit exceeded",
	)
}
