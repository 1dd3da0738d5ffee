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

package logging

import (
	"fmt"
	"time"

	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/log"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/segmentio/ksuid"
)

// LoggerMiddleware assigns a unique GUID to each request and logs it after
// processing, including latency and status code.
func LoggerMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		guid := ksuid.New().String()

		ctx.Set(definitions.CtxGUIDKey, guid)

		start := time.Now()

		ctx.Next()

		latency := time.Since(start)

		logWrapper := level.Info

		if ctx.Errors.Last() != nil {
			logWrapper = level.Error
		}

		userAgent := ctx.Request.UserAgent()
		if userAgent == "" {
			userAgent = definitions.NotAvailable
		}

		logWrapper(log.Logger).Log(
			definitions.LogKeyGUID, guid,
			definitions.LogKeyClientIP, ctx.ClientIP(),
			definitions.LogKeyMethod, ctx.Request.Method,
			definitions.LogKeyHTTPStatus, ctx.Writer.Status(),
			definitions.LogKeyLatency, fmt.Sprintf("%.3fms", float64(latency.Nanoseconds())/1e6),
			definitions.LogKeyUserAgent, userAgent,
			definitions.LogKeyUriPath, ctx.Request.URL.Path,
			definitions.LogKeyMsg, requestMessage(ctx),
		)
	}
}

func requestMessage(ctx *gin.Context) string {
	if err := ctx.Errors.Last(); err != nil {
		return err.Error()
	}

	return "HTTP request"
}
