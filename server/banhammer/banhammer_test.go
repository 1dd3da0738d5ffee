package banhammer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/croessner/secenh/server/cache"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBanhammer() (*Banhammer, *cache.MemoryCache) {
	memory := cache.NewMemoryCache()

	return New(&config.BanhammerSection{}, memory), memory
}

func runRequest(b *Banhammer, request *http.Request) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	router := gin.New()

	router.Use(b.Middleware())
	router.GET("/", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	router.ServeHTTP(recorder, request)

	return recorder
}

func TestBanUnbanRoundtrip(t *testing.T) {
	b, _ := newTestBanhammer()
	ctx := context.Background()

	banned, err := b.IsIPBanned(ctx, "203.0.113.9")

	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, b.BanIP(ctx, "203.0.113.9", 0))

	banned, err = b.IsIPBanned(ctx, "203.0.113.9")

	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, b.UnbanIP(ctx, "203.0.113.9"))

	banned, err = b.IsIPBanned(ctx, "203.0.113.9")

	require.NoError(t, err)
	assert.False(t, banned)
}

func TestBanKeysAreCaseInsensitiveForIPs(t *testing.T) {
	b, _ := newTestBanhammer()
	ctx := context.Background()

	require.NoError(t, b.BanIP(ctx, "2001:DB8::1", 0))

	banned, err := b.IsIPBanned(ctx, "2001:db8::1")

	require.NoError(t, err)
	assert.True(t, banned)
}

func TestBanExpiresAfterTTL(t *testing.T) {
	b, memory := newTestBanhammer()
	ctx := context.Background()

	current := time.Now()
	memory.SetNowFunc(func() time.Time { return current })

	require.NoError(t, b.BanIP(ctx, "203.0.113.9", 60))

	banned, err := b.IsIPBanned(ctx, "203.0.113.9")

	require.NoError(t, err)
	assert.True(t, banned)

	current = current.Add(61 * time.Second)

	banned, err = b.IsIPBanned(ctx, "203.0.113.9")

	require.NoError(t, err)
	assert.False(t, banned)
}

func TestMiddlewarePassesUnbannedRequest(t *testing.T) {
	b, _ := newTestBanhammer()

	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("User-Agent", "Mozilla/5.0")

	recorder := runRequest(b, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestMiddlewareBlocksBannedPeerIP(t *testing.T) {
	b, _ := newTestBanhammer()

	require.NoError(t, b.BanIP(context.Background(), "198.51.100.7", 0))

	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"

	recorder := runRequest(b, request)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "no-cache, must-revalidate, max-age=0", recorder.Header().Get("Cache-Control"))
	assert.Equal(t, "Sat, 24 Aug 1991 00:00:00 GMT", recorder.Header().Get("Expires"))
	assert.Equal(t, "close", recorder.Header().Get("Connection"))
}

func TestMiddlewareBlocksBannedIPInAnyHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		banned string
	}{
		{name: "X-Real-IP", header: "X-Real-IP", value: "203.0.113.9", banned: "203.0.113.9"},
		{name: "True-Client-IP", header: "True-Client-IP", value: "203.0.113.9", banned: "203.0.113.9"},
		{name: "X-Forwarded-For list", header: "X-Forwarded-For", value: "203.0.113.10, 203.0.113.9", banned: "203.0.113.9"},
		{name: "Forwarded bracketed IPv6", header: "Forwarded", value: `for="[2001:db8::9]:4711";proto=https`, banned: "2001:db8::9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBanhammer()

			require.NoError(t, b.BanIP(context.Background(), tt.banned, 0))

			request := httptest.NewRequest("GET", "/", nil)
			request.RemoteAddr = "198.51.100.7:443"
			request.Header.Set(tt.header, tt.value)

			recorder := runRequest(b, request)

			assert.Equal(t, http.StatusForbidden, recorder.Code)
		})
	}
}

func TestMiddlewareBlocksBannedUserAgent(t *testing.T) {
	b, _ := newTestBanhammer()

	require.NoError(t, b.BanUA(context.Background(), "sqlmap/1.7", 0))

	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("User-Agent", "sqlmap/1.7")

	recorder := runRequest(b, request)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestMiddlewareIgnoresPrivateHeaderIPs(t *testing.T) {
	b, _ := newTestBanhammer()

	require.NoError(t, b.BanIP(context.Background(), "10.0.0.1", 0))

	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("X-Real-IP", "10.0.0.1")

	recorder := runRequest(b, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestMiddlewareEnforcesConfiguredRanges(t *testing.T) {
	cfg := &config.BanhammerSection{
		Ranges: []config.RangeRule{
			{From: "203.0.113.0", To: "203.0.113.255"},
		},
	}
	b := New(cfg, cache.NewMemoryCache())

	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("X-Real-IP", "203.0.113.9")

	recorder := runRequest(b, request)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "close", recorder.Header().Get("Connection"))

	// The range is evaluated per request; no ban entry is written.
	banned, err := b.IsIPBanned(context.Background(), "203.0.113.9")

	require.NoError(t, err)
	assert.False(t, banned)

	request = httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"

	recorder = runRequest(b, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestMiddlewareEnforcesConfiguredHeaderBans(t *testing.T) {
	cfg := &config.BanhammerSection{
		Headers: []config.HeaderRule{
			{Name: "X-Scanner", Value: "acunetix"},
		},
	}
	b := New(cfg, cache.NewMemoryCache())

	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("X-Scanner", "acunetix")

	recorder := runRequest(b, request)

	assert.Equal(t, http.StatusForbidden, recorder.Code)

	request = httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("X-Scanner", "nessus")

	recorder = runRequest(b, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestMiddlewareSkipsUnusableRangeRule(t *testing.T) {
	cfg := &config.BanhammerSection{
		Ranges: []config.RangeRule{
			{From: "garbage", To: "203.0.113.255"},
		},
	}
	b := New(cfg, cache.NewMemoryCache())

	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "203.0.113.9:443"

	recorder := runRequest(b, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCheckHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	b, _ := newTestBanhammer()

	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest("GET", "/", nil)
	ctx.Request.Header.Set("X-Scanner", "acunetix")

	assert.False(t, b.CheckHeader(ctx, "X-Scanner", "nessus"))
	assert.True(t, b.CheckHeader(ctx, "X-Scanner", "acunetix"))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestMatchRange(t *testing.T) {
	candidates := map[string]string{
		"198.51.100.7": "IP",
		"203.0.113.9":  "X-Real-IP",
	}

	tests := []struct {
		name        string
		from        string
		to          string
		expectedIP  string
		expectedErr error
	}{
		{name: "candidate inside range", from: "203.0.113.0", to: "203.0.113.255", expectedIP: "203.0.113.9"},
		{name: "exact lower bound", from: "198.51.100.7", to: "198.51.100.7", expectedIP: "198.51.100.7"},
		{name: "no candidate inside", from: "192.0.2.0", to: "192.0.2.255"},
		{name: "unparsable endpoint", from: "garbage", to: "203.0.113.255", expectedErr: errors.ErrInvalidRange},
		{name: "mixed families", from: "198.51.100.0", to: "2001:db8::1", expectedErr: errors.ErrMixedRangeFamily},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, source, err := MatchRange(candidates, tt.from, tt.to)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedIP, ip)

			if tt.expectedIP != "" {
				assert.Equal(t, candidates[tt.expectedIP], source)
			}
		})
	}
}

func TestMatchRangeIPv6(t *testing.T) {
	candidates := map[string]string{"2001:db8::9": "Forwarded"}

	ip, _, err := MatchRange(candidates, "2001:db8::", "2001:db8::ffff")

	require.NoError(t, err)
	assert.Equal(t, "2001:db8::9", ip)
}

func TestCheckRangeRejectsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	b, _ := newTestBanhammer()

	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest("GET", "/", nil)
	ctx.Request.RemoteAddr = "198.51.100.7:443"

	rejected, err := b.CheckRange(ctx, "198.51.100.0", "198.51.100.255")

	require.NoError(t, err)
	assert.True(t, rejected)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
