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

// Package core runs the login pipeline: request screening, rate limiting,
// credential verification and the post-login novelty watchers. Every
// negative outcome leaves the server with the same generic answer.
package core

import (
	"net/http"

	"github.com/croessner/secenh/server/authgate"
	"github.com/croessner/secenh/server/backend"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/errors"
	"github.com/croessner/secenh/server/ident"
	"github.com/croessner/secenh/server/limiter"
	"github.com/croessner/secenh/server/log"
	"github.com/croessner/secenh/server/loginlog"
	"github.com/croessner/secenh/server/watcher"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
)

// AuthHandler wires the login pipeline stages together.
type AuthHandler struct {
	cfg     *config.FileSettings
	gate    *authgate.Gate
	limiter *limiter.Limiter
	creds   backend.CredentialStore
	watcher *watcher.Watcher
	journal loginlog.Journal
}

// NewAuthHandler returns an AuthHandler. The watcher and journal are
// optional; the credential store is not.
func NewAuthHandler(cfg *config.FileSettings, gate *authgate.Gate, loginLimiter *limiter.Limiter, creds backend.CredentialStore, deviceWatcher *watcher.Watcher, journal loginlog.Journal) *AuthHandler {
	return &AuthHandler{
		cfg:     cfg,
		gate:    gate,
		limiter: loginLimiter,
		creds:   creds,
		watcher: deviceWatcher,
		journal: journal,
	}
}

// loginRequest is the body of POST /api/v1/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the uniform answer of the login endpoint. Code and
// Message are only present on failures and never distinguish the cause.
type loginResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Code          string `json:"code,omitempty"`
	Message       string `json:"message,omitempty"`
	Session       string `json:"session"`
}

// precheckResponse is the positive answer of the pre-submit gate.
type precheckResponse struct {
	Allowed bool   `json:"allowed"`
	Session string `json:"session"`
}

// Precheck handles POST /api/v1/auth/precheck. Clients ask before
// submitting credentials whether the limiter would throttle them, so a
// login form can short-circuit without running the pipeline. A throttled
// answer is identical to the one Login gives.
func (h *AuthHandler) Precheck(ctx *gin.Context) {
	guid := ctx.GetString(definitions.CtxGUIDKey)
	identity := ident.Resolve(ctx.Request)

	request := &loginRequest{}

	// The username is optional here; without one only the per-IP window
	// answers.
	_ = ctx.ShouldBindJSON(request)

	if err := h.limiter.CheckLimits(ctx.Request.Context(), guid, identity.IP, request.Username); err != nil {
		h.throttled(ctx, guid, identity, request.Username, err)

		return
	}

	ctx.JSON(http.StatusOK, &precheckResponse{Allowed: true, Session: guid})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(ctx *gin.Context) {
	guid := ctx.GetString(definitions.CtxGUIDKey)
	identity := ident.Resolve(ctx.Request)

	request := &loginRequest{}

	if err := ctx.ShouldBindJSON(request); err != nil {
		h.fail(ctx, guid, identity, request.Username, http.StatusBadRequest, definitions.ErrorCodeFailure, false)

		return
	}

	if err := h.gate.Screen(ctx.Request); err != nil {
		h.fail(ctx, guid, identity, request.Username, http.StatusUnauthorized, definitions.ErrorCodeFailure, true)

		return
	}

	if err := h.limiter.CheckLimits(ctx.Request.Context(), guid, identity.IP, request.Username); err != nil {
		h.throttled(ctx, guid, identity, request.Username, err)

		return
	}

	if h.gate.IsRestrictedUsername(request.Username) {
		h.fail(ctx, guid, identity, request.Username, http.StatusUnauthorized, definitions.ErrorCodeFailure, true)

		return
	}

	if h.creds == nil {
		ctx.Error(errors.ErrNoCredentialStore)
		h.fail(ctx, guid, identity, request.Username, http.StatusInternalServerError, definitions.ErrorCodeFailure, false)

		return
	}

	authenticated, err := h.creds.Verify(ctx.Request.Context(), request.Username, request.Password)
	if err != nil {
		ctx.Error(err)
		h.fail(ctx, guid, identity, request.Username, http.StatusInternalServerError, definitions.ErrorCodeFailure, false)

		return
	}

	if !authenticated {
		// The concrete cause collapses into the one generic code.
		code := authgate.CollapseErrorCode("incorrect_password")

		h.fail(ctx, guid, identity, request.Username, http.StatusUnauthorized, code, true)

		return
	}

	h.succeed(ctx, guid, identity, request.Username)
}

// fail answers a negative verdict. countFailure selects whether the attempt
// bumps the limiter windows; malformed requests and server-side errors do
// not.
func (h *AuthHandler) fail(ctx *gin.Context, guid string, identity ident.Identity, username string, status int, code string, countFailure bool) {
	if countFailure {
		if err := h.limiter.RecordFailure(ctx.Request.Context(), identity.IP, username); err != nil {
			level.Error(log.Logger).Log(
				definitions.LogKeyGUID, guid,
				definitions.LogKeyMsg, "Unable to record login failure",
				definitions.LogKeyError, err,
			)
		}
	}

	LoginAttemptsTotal.WithLabelValues("failure").Inc()

	h.logAttempt(ctx, guid, identity, username, false, code)
	h.record(ctx, guid, identity, username, false, code)

	ctx.AbortWithStatusJSON(status, &loginResponse{
		Authenticated: false,
		Code:          code,
		Message:       definitions.ErrCredentials,
		Session:       guid,
	})
}

// throttled answers a rate-limited attempt. The counters stay untouched.
func (h *AuthHandler) throttled(ctx *gin.Context, guid string, identity ident.Identity, username string, err error) {
	LoginAttemptsTotal.WithLabelValues("throttled").Inc()

	h.logAttempt(ctx, guid, identity, username, false, definitions.ErrorCodeLoginLimit)
	h.record(ctx, guid, identity, username, false, definitions.ErrorCodeLoginLimit)

	ctx.Error(err)
	ctx.AbortWithStatusJSON(http.StatusTooManyRequests, &loginResponse{
		Authenticated: false,
		Code:          definitions.ErrorCodeLoginLimit,
		Message:       "Login limit exceeded. Please try again later.",
		Session:       guid,
	})
}

// succeed answers a positive verdict and runs the novelty watchers.
func (h *AuthHandler) succeed(ctx *gin.Context, guid string, identity ident.Identity, username string) {
	if err := h.limiter.RecordSuccess(ctx.Request.Context(), identity.IP, username); err != nil {
		level.Error(log.Logger).Log(
			definitions.LogKeyGUID, guid,
			definitions.LogKeyMsg, "Unable to pay back login failure",
			definitions.LogKeyError, err,
		)
	}

	if h.watcher != nil {
		if err := h.watcher.WatchDevice(ctx, username); err != nil {
			level.Error(log.Logger).Log(
				definitions.LogKeyGUID, guid,
				definitions.LogKeyMsg, "Device watcher failed",
				definitions.LogKeyError, err,
			)
		}

		if err := h.watcher.WatchLocation(ctx, username); err != nil {
			level.Error(log.Logger).Log(
				definitions.LogKeyGUID, guid,
				definitions.LogKeyMsg, "Location watcher failed",
				definitions.LogKeyError, err,
			)
		}
	}

	LoginAttemptsTotal.WithLabelValues("success").Inc()

	h.logAttempt(ctx, guid, identity, username, true, "")
	h.record(ctx, guid, identity, username, true, "")

	ctx.JSON(http.StatusOK, &loginResponse{
		Authenticated: true,
		Username:      username,
		Session:       guid,
	})
}

// logAttempt writes the structured login log line: info for successes,
// warning for everything else.
func (h *AuthHandler) logAttempt(ctx *gin.Context, guid string, identity ident.Identity, username string, success bool, code string) {
	clientIP := identity.IP
	if clientIP == "" {
		clientIP = definitions.UnknownIP
	}

	keyvals := []any{
		definitions.LogKeyGUID, guid,
		definitions.LogKeySite, h.cfg.GetServer().GetSiteURL(),
		definitions.LogKeyUsername, username,
		definitions.LogKeyClientIP, clientIP,
		definitions.LogKeyUserAgent, identity.UserAgent,
		definitions.LogKeyUriPath, ctx.Request.URL.Path,
		definitions.LogKeyStatus, success,
	}

	if location, exists := ctx.Get(definitions.CtxLocationKey); exists {
		keyvals = append(keyvals, definitions.LogKeyGeoIP, location)
	}

	if success {
		keyvals = append(keyvals, definitions.LogKeyMsg, "Login succeeded")

		level.Info(log.Logger).Log(keyvals...)

		return
	}

	keyvals = append(keyvals, definitions.LogKeyMsg, "Login failed", "code", code)

	level.Warn(log.Logger).Log(keyvals...)
}

// record appends the attempt to the login journal.
func (h *AuthHandler) record(ctx *gin.Context, guid string, identity ident.Identity, username string, success bool, code string) {
	if h.journal == nil {
		return
	}

	location := ""

	if value, exists := ctx.Get(definitions.CtxLocationKey); exists {
		location, _ = value.(string)
	}

	entry := &loginlog.Entry{
		GUID:      guid,
		Username:  username,
		ClientIP:  identity.IP,
		UserAgent: identity.UserAgent,
		Success:   success,
		ErrorCode: code,
		Location:  location,
	}

	if err := h.journal.Record(ctx.Request.Context(), entry); err != nil {
		level.Error(log.Logger).Log(
			definitions.LogKeyGUID, guid,
			definitions.LogKeyMsg, "Unable to append login journal entry",
			definitions.LogKeyError, err,
		)
	}
}
