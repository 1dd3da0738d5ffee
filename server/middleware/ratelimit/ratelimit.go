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

// Package ratelimit bounds the request rate per client IP with token
// buckets. It protects the HTTP surface itself; the login limiter handles
// the credential-guessing case separately.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/croessner/secenh/server/definitions"
	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Idle buckets are evicted
// after an hour.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *gocache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter returns a limiter allowing rps sustained requests per
// second with the given burst per client IP.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: gocache.New(time.Hour, 10*time.Minute),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// limiter returns the bucket for one client IP, creating it on first use.
func (r *RateLimiter) limiter(clientIP string) *rate.Limiter {
	r.mu.Lock()

	defer r.mu.Unlock()

	if cached, ok := r.limiters.Get(clientIP); ok {
		return cached.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(r.limit, r.burst)

	r.limiters.Set(clientIP, limiter, gocache.DefaultExpiration)

	return limiter
}

// Middleware rejects requests exceeding the per-IP budget with 429. Health
// and metrics endpoints are never limited.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.FullPath() == "/ping" || ctx.FullPath() == "/metrics" {
			ctx.Next()

			return
		}

		if !r.limiter(ctx.ClientIP()).Allow() {
			ctx.JSON(http.StatusTooManyRequests, gin.H{
				definitions.LogKeyMsg: "Too many requests",
			})
			ctx.Abort()

			return
		}

		ctx.Next()
	}
}
