package core

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/croessner/secenh/server/authgate"
	"github.com/croessner/secenh/server/backend"
	"github.com/croessner/secenh/server/cache"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/limiter"
	"github.com/croessner/secenh/server/loginlog"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type pipeline struct {
	router  *gin.Engine
	memory  *cache.MemoryCache
	journal *loginlog.MemoryJournal
	limiter *limiter.Limiter
}

func newPipeline(t *testing.T, cfg *config.FileSettings) *pipeline {
	t.Helper()

	gin.SetMode(gin.TestMode)

	sum := sha1.Sum([]byte("correct horse"))
	entry := "alice:{SHA}" + base64.StdEncoding.EncodeToString(sum[:])

	creds, err := backend.NewHtpasswdStoreFromReader(strings.NewReader(entry))

	require.NoError(t, err)

	memory := cache.NewMemoryCache()
	journal := loginlog.NewMemoryJournal(100)
	loginLimiter := limiter.New(cfg.GetLimiter(), memory, nil)
	handler := NewAuthHandler(cfg, authgate.New(cfg.GetAuth()), loginLimiter, creds, nil, journal)

	router := gin.New()

	router.Use(func(ctx *gin.Context) {
		ctx.Set(definitions.CtxGUIDKey, "test-guid")
	})
	router.POST("/api/v1/auth/login", handler.Login)
	router.POST("/api/v1/auth/precheck", handler.Precheck)

	return &pipeline{router: router, memory: memory, journal: journal, limiter: loginLimiter}
}

func (p *pipeline) login(username, password string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})

	request := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	request.RemoteAddr = "203.0.113.9:52811"
	request.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/json")

	if mutate != nil {
		mutate(request)
	}

	recorder := httptest.NewRecorder()

	p.router.ServeHTTP(recorder, request)

	return recorder
}

func TestLoginSuccess(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	recorder := p.login("alice", "correct horse", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)

	response := map[string]any{}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, true, response["authenticated"])
	assert.Equal(t, "alice", response["username"])
	assert.Equal(t, "test-guid", response["session"])
}

func TestLoginFailureIsGeneric(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	wrongPassword := p.login("alice", "wrong", nil)
	unknownUser := p.login("mallory", "wrong", nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)

	// A wrong password and a non-existing user must be indistinguishable.
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Contains(t, wrongPassword.Body.String(), definitions.ErrorCodeFailure)
	assert.Contains(t, wrongPassword.Body.String(), definitions.ErrCredentials)
	assert.NotContains(t, wrongPassword.Body.String(), "incorrect_password")
}

func TestLoginFailureBumpsCounters(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	p.login("alice", "wrong", nil)

	ctx := context.Background()

	value, found, err := p.memory.Get(ctx, definitions.CacheGroupLimiter, limiter.IdentityKey("203.0.113.9", "alice"))

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", value)
}

func TestLoginThrottledAfterThreshold(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	for i := 0; i < definitions.DefaultIdentityThreshold; i++ {
		p.login("alice", "wrong", nil)
	}

	recorder := p.login("alice", "correct horse", nil)

	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Contains(t, recorder.Body.String(), definitions.ErrorCodeLoginLimit)
}

func (p *pipeline) precheck(username string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"username": username})

	request := httptest.NewRequest("POST", "/api/v1/auth/precheck", bytes.NewReader(body))
	request.RemoteAddr = "203.0.113.9:52811"
	request.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()

	p.router.ServeHTTP(recorder, request)

	return recorder
}

func TestPrecheckAllowsBelowThreshold(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	recorder := p.precheck("alice")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"allowed":true`)

	// Asking never counts as a failure.
	_, found, err := p.memory.Get(context.Background(), definitions.CacheGroupLimiter, limiter.IPKey("203.0.113.9"))

	require.NoError(t, err)
	assert.False(t, found)
}

func TestPrecheckAndLoginThrottleIdentically(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	for i := 0; i < definitions.DefaultIdentityThreshold; i++ {
		p.login("alice", "wrong", nil)
	}

	precheck := p.precheck("alice")
	login := p.login("alice", "correct horse", nil)

	assert.Equal(t, http.StatusTooManyRequests, precheck.Code)
	assert.Equal(t, http.StatusTooManyRequests, login.Code)

	// Both gates must answer with the same body.
	assert.Equal(t, login.Body.String(), precheck.Body.String())
}

func TestLoginSuccessPaysBackOneFailure(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	p.login("alice", "wrong", nil)

	recorder := p.login("alice", "correct horse", nil)

	require.Equal(t, http.StatusOK, recorder.Code)

	_, found, err := p.memory.Get(context.Background(), definitions.CacheGroupLimiter, limiter.IdentityKey("203.0.113.9", "alice"))

	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoginScreeningRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*http.Request)
	}{
		{
			name: "missing Accept header",
			mutate: func(r *http.Request) {
				r.Header.Del("Accept")
			},
		},
		{
			name: "empty User-Agent",
			mutate: func(r *http.Request) {
				r.Header.Del("User-Agent")
			},
		},
		{
			name: "unresolvable peer address",
			mutate: func(r *http.Request) {
				r.RemoteAddr = "@"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, &config.FileSettings{})

			recorder := p.login("alice", "correct horse", tt.mutate)

			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
			assert.Contains(t, recorder.Body.String(), definitions.ErrorCodeFailure)
		})
	}
}

func TestLoginRestrictedUsername(t *testing.T) {
	cfg := &config.FileSettings{Auth: config.AuthSection{RestrictedUsernames: []string{"alice"}}}
	p := newPipeline(t, cfg)

	// Even correct credentials fail for a restricted username.
	recorder := p.login("alice", "correct horse", nil)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), definitions.ErrorCodeFailure)
}

func TestLoginMalformedBodyDoesNotCount(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	request := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader("{{{"))
	request.RemoteAddr = "203.0.113.9:52811"
	request.Header.Set("User-Agent", "Mozilla/5.0")
	request.Header.Set("Accept", "application/json")

	recorder := httptest.NewRecorder()

	p.router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	_, found, err := p.memory.Get(context.Background(), definitions.CacheGroupLimiter, limiter.IPKey("203.0.113.9"))

	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoginJournal(t *testing.T) {
	p := newPipeline(t, &config.FileSettings{})

	p.login("alice", "wrong", nil)
	p.login("alice", "correct horse", nil)

	entries, err := p.journal.Recent(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Success)
	assert.Empty(t, entries[0].ErrorCode)
	assert.False(t, entries[1].Success)
	assert.Equal(t, definitions.ErrorCodeFailure, entries[1].ErrorCode)
	assert.Equal(t, "203.0.113.9", entries[1].ClientIP)
}
