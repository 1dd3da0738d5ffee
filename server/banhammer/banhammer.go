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

// Package banhammer maintains TTL-keyed ban sets for IP addresses and
// User-Agents and enforces them on every request. Enforcement checks every
// plausible client IP, including the spoofable proxy headers: an attacker
// who injects a banned IP into any header is blocked even though their real
// connecting IP may differ. This deliberately biases toward over-blocking.
package banhammer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/croessner/secenh/server/cache"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/ident"
	"github.com/croessner/secenh/server/log"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
)

// Banhammer is the ban store plus its enforcement logic.
type Banhammer struct {
	cfg   *config.BanhammerSection
	cache cache.Cache
}

// New returns a Banhammer using the shared cache.
func New(cfg *config.BanhammerSection, sharedCache cache.Cache) *Banhammer {
	return &Banhammer{cfg: cfg, cache: sharedCache}
}

// GetIPKey returns the cache key for a banned IP.
func GetIPKey(ip string) string {
	return "ip:" + strings.ToLower(ip)
}

// GetUAKey returns the cache key for a banned User-Agent.
func GetUAKey(userAgent string) string {
	return "ua:" + userAgent
}

// BanIP writes a ban entry for an IP. A non-positive TTL selects the
// configured default.
func (b *Banhammer) BanIP(ctx context.Context, ip string, ttl int64) error {
	return b.cache.Set(ctx, definitions.CacheGroupBan, GetIPKey(ip), "1", b.ttlOrDefault(ttl))
}

// BanUA writes a ban entry for an exact User-Agent string.
func (b *Banhammer) BanUA(ctx context.Context, userAgent string, ttl int64) error {
	return b.cache.Set(ctx, definitions.CacheGroupBan, GetUAKey(userAgent), "1", b.ttlOrDefault(ttl))
}

// UnbanIP removes the ban entry for an IP.
func (b *Banhammer) UnbanIP(ctx context.Context, ip string) error {
	return b.cache.Delete(ctx, definitions.CacheGroupBan, GetIPKey(ip))
}

// UnbanUA removes the ban entry for a User-Agent.
func (b *Banhammer) UnbanUA(ctx context.Context, userAgent string) error {
	return b.cache.Delete(ctx, definitions.CacheGroupBan, GetUAKey(userAgent))
}

// IsIPBanned reports whether an IP has a ban entry.
func (b *Banhammer) IsIPBanned(ctx context.Context, ip string) (bool, error) {
	_, found, err := b.cache.Get(ctx, definitions.CacheGroupBan, GetIPKey(ip))

	return found, err
}

// IsUABanned reports whether a User-Agent has a ban entry.
func (b *Banhammer) IsUABanned(ctx context.Context, userAgent string) (bool, error) {
	_, found, err := b.cache.Get(ctx, definitions.CacheGroupBan, GetUAKey(userAgent))

	return found, err
}

// CheckRequest evaluates the ban sets against the request and terminates it
// on a match. It returns true when the request was rejected. Ban writes on
// the admin surface re-run this so a self-banning admin terminates their own
// request too.
func (b *Banhammer) CheckRequest(ctx *gin.Context) bool {
	candidates := ident.Candidates(ctx.Request)

	if len(candidates) > 0 {
		keys := make([]string, 0, len(candidates))
		for candidate := range candidates {
			keys = append(keys, GetIPKey(candidate))
		}

		banned, err := b.cache.GetMultiple(ctx.Request.Context(), definitions.CacheGroupBan, keys)
		if err == nil {
			for candidate, source := range candidates {
				if _, hit := banned[GetIPKey(candidate)]; hit {
					b.goodbye(ctx, candidate, source)

					return true
				}
			}
		}
	}

	if userAgent := ctx.Request.UserAgent(); userAgent != "" {
		if hit, err := b.IsUABanned(ctx.Request.Context(), userAgent); err == nil && hit {
			b.goodbye(ctx, userAgent, "User-Agent")

			return true
		}
	}

	for _, rule := range b.cfg.GetRanges() {
		rejected, err := b.CheckRange(ctx, rule.From, rule.To)
		if err != nil {
			level.Error(log.Logger).Log(
				definitions.LogKeyGUID, ctx.GetString(definitions.CtxGUIDKey),
				definitions.LogKeyMsg, "Skipping unusable range rule "+rule.From+" - "+rule.To,
				definitions.LogKeyError, err,
			)

			continue
		}

		if rejected {
			return true
		}
	}

	for _, rule := range b.cfg.GetHeaders() {
		if b.CheckHeader(ctx, rule.Name, rule.Value) {
			return true
		}
	}

	return false
}

// CheckHeader terminates the request when the named header carries exactly
// the given value. It returns true when the request was rejected.
func (b *Banhammer) CheckHeader(ctx *gin.Context, header, value string) bool {
	if ctx.Request.Header.Get(header) == value {
		b.goodbye(ctx, value, header)

		return true
	}

	return false
}

// Middleware returns the gin middleware running CheckRequest on every
// request before any other handler.
func (b *Banhammer) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if b.CheckRequest(ctx) {
			return
		}

		ctx.Next()
	}
}

// goodbye rejects the request with 403, flushes the response to the client
// before any further work and aborts the handler chain. Flushing first keeps
// the latency visible to a detected-bad actor minimal.
func (b *Banhammer) goodbye(ctx *gin.Context, value, criterion string) {
	ctx.Header("Cache-Control", "no-cache, must-revalidate, max-age=0")
	ctx.Header("Expires", "Sat, 24 Aug 1991 00:00:00 GMT")
	ctx.Header("Connection", "close")
	ctx.String(http.StatusForbidden, "Forbidden\n")
	ctx.Writer.Flush()
	ctx.Abort()

	BlockedRequestsTotal.WithLabelValues(criterion).Inc()

	level.Warn(log.Logger).Log(
		definitions.LogKeyGUID, ctx.GetString(definitions.CtxGUIDKey),
		definitions.LogKeyBanhammer, true,
		definitions.LogKeyCriterion, criterion,
		definitions.LogKeyUriPath, ctx.Request.URL.Path,
		definitions.LogKeyMsg, "Blocking request basing on \""+criterion+"\" = \""+value+"\"",
	)
}

// ttlOrDefault maps a TTL in seconds to a duration, falling back to the
// configured default for non-positive values.
func (b *Banhammer) ttlOrDefault(ttl int64) time.Duration {
	if ttl <= 0 {
		return b.cfg.GetDefaultTTL()
	}

	return time.Duration(ttl) * time.Second
}
