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

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/croessner/secenh/server/authgate"
	"github.com/croessner/secenh/server/backend"
	"github.com/croessner/secenh/server/banhammer"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/core"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/handler"
	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/limiter"
	"github.com/croessner/secenh/server/log"
	"github.com/croessner/secenh/server/loginlog"
	"github.com/croessner/secenh/server/middleware/logging"
	"github.com/croessner/secenh/server/middleware/ratelimit"
	"github.com/croessner/secenh/server/watcher"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// adminRateLimit bounds the admin surface per client IP.
const (
	adminRateLimitRPS   = 5
	adminRateLimitBurst = 10
)

// setupRouter assembles the HTTP surface. Ban enforcement runs on every
// request before anything else gets a chance to answer.
func setupRouter(cfg *config.FileSettings, components *serverComponents) *gin.Engine {
	if cfg.GetServer().GetLog().GetLevel() < definitions.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(logging.LoggerMiddleware())
	router.Use(components.ban.Middleware())

	router.GET("/ping", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "pong")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := core.NewAuthHandler(
		cfg,
		components.gate,
		components.limiter,
		components.creds,
		components.watcher,
		components.journal,
	)

	router.POST("/api/v1/auth/login", authHandler.Login)
	router.POST("/api/v1/auth/precheck", authHandler.Precheck)

	adminGroup := router.Group("/api/v1/admin",
		ratelimit.NewRateLimiter(adminRateLimitRPS, adminRateLimitBurst).Middleware(),
		handler.BasicAuth(components.creds),
	)

	handler.NewAdminHandler(components.ban, components.geo, components.journal).RegisterRoutes(adminGroup)

	return router
}

// serverComponents bundles everything the router depends on.
type serverComponents struct {
	ban     *banhammer.Banhammer
	gate    *authgate.Gate
	limiter *limiter.Limiter
	creds   backend.CredentialStore
	geo     *ipapi.Client
	watcher *watcher.Watcher
	journal loginlog.Journal
}

// runServer serves HTTP until the context is canceled, then drains for up
// to ten seconds.
func runServer(ctx context.Context, cfg *config.FileSettings, router *gin.Engine) error {
	server := &http.Server{
		Addr:              cfg.GetServer().GetAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		level.Info(log.Logger).Log(
			definitions.LogKeyMsg, "Starting HTTP server",
			"address", server.Addr,
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	defer cancel()

	return server.Shutdown(shutdownCtx)
}
