package handler

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/croessner/secenh/server/backend"
	"github.com/croessner/secenh/server/banhammer"
	"github.com/croessner/secenh/server/cache"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/loginlog"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type adminFixture struct {
	router *gin.Engine
	ban    *banhammer.Banhammer
	memory *cache.MemoryCache
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	gin.SetMode(gin.TestMode)

	memory := cache.NewMemoryCache()
	ban := banhammer.New(&config.BanhammerSection{}, memory)
	geo := ipapi.NewClient(&config.IPAPISection{Host: "geo.invalid", Timeout: time.Millisecond}, memory)
	journal := loginlog.NewMemoryJournal(10)

	require.NoError(t, journal.Record(context.Background(), &loginlog.Entry{GUID: "g1", Username: "alice"}))

	sum := sha1.Sum([]byte("adminpass"))
	creds, err := backend.NewHtpasswdStoreFromReader(strings.NewReader("admin:{SHA}" + base64.StdEncoding.EncodeToString(sum[:])))

	require.NoError(t, err)

	router := gin.New()
	group := router.Group("/api/v1/admin", BasicAuth(creds))

	NewAdminHandler(ban, geo, journal).RegisterRoutes(group)

	return &adminFixture{router: router, ban: ban, memory: memory}
}

func (f *adminFixture) do(method, path string, body any, authorized bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader

	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("Content-Type", "application/json")

	if authorized {
		request.SetBasicAuth("admin", "adminpass")
	}

	recorder := httptest.NewRecorder()

	f.router.ServeHTTP(recorder, request)

	return recorder
}

func TestAdminRequiresBasicAuth(t *testing.T) {
	f := newAdminFixture(t)

	recorder := f.do("GET", "/api/v1/admin/banned/ip/203.0.113.9", nil, false)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Header().Get("WWW-Authenticate"), "Basic")
}

func TestAdminBanAndUnbanIPs(t *testing.T) {
	f := newAdminFixture(t)

	recorder := f.do("POST", "/api/v1/admin/ban/ip", map[string]any{
		"ips": []string{"203.0.113.9", "10.0.0.1", "garbage"},
	}, true)

	require.Equal(t, http.StatusOK, recorder.Code)

	result := &banResult{}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), result))

	// Private and unparsable addresses are refused.
	assert.Equal(t, []string{"203.0.113.9"}, result.Applied)
	assert.ElementsMatch(t, []string{"10.0.0.1", "garbage"}, result.Skipped)

	banned, err := f.ban.IsIPBanned(context.Background(), "203.0.113.9")

	require.NoError(t, err)
	assert.True(t, banned)

	recorder = f.do("GET", "/api/v1/admin/banned/ip/203.0.113.9", nil, true)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"banned":true`)

	recorder = f.do("POST", "/api/v1/admin/unban/ip", map[string]any{
		"ips": []string{"203.0.113.9", "203.0.113.10"},
	}, true)

	require.Equal(t, http.StatusOK, recorder.Code)

	result = &banResult{}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), result))

	// The second IP was never banned and counts as skipped.
	assert.Equal(t, []string{"203.0.113.9"}, result.Applied)
	assert.Equal(t, []string{"203.0.113.10"}, result.Skipped)
}

func TestAdminBanSkipsZonedIPv6(t *testing.T) {
	f := newAdminFixture(t)

	recorder := f.do("POST", "/api/v1/admin/ban/ip", map[string]any{
		"ips": []string{"2001:db8::1", "2001:db8::1%eth0"},
	}, true)

	require.Equal(t, http.StatusOK, recorder.Code)

	result := &banResult{}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), result))
	assert.Equal(t, []string{"2001:db8::1"}, result.Applied)
	assert.Equal(t, []string{"2001:db8::1%eth0"}, result.Skipped)
}

func TestAdminSelfBanTerminatesRequest(t *testing.T) {
	f := newAdminFixture(t)

	// The admin bans the very IP this request arrives from.
	recorder := f.do("POST", "/api/v1/admin/ban/ip", map[string]any{
		"ips": []string{"198.51.100.7"},
	}, true)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "close", recorder.Header().Get("Connection"))
}

func TestAdminBanUAs(t *testing.T) {
	f := newAdminFixture(t)

	recorder := f.do("POST", "/api/v1/admin/ban/ua", map[string]any{
		"user_agents": []string{"sqlmap/1.7", ""},
	}, true)

	require.Equal(t, http.StatusOK, recorder.Code)

	result := &banResult{}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), result))
	assert.Equal(t, []string{"sqlmap/1.7"}, result.Applied)

	banned, err := f.ban.IsUABanned(context.Background(), "sqlmap/1.7")

	require.NoError(t, err)
	assert.True(t, banned)

	recorder = f.do("GET", "/api/v1/admin/banned/ua?value=sqlmap%2F1.7", nil, true)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"banned":true`)
}

func TestAdminBanRejectsEmptyList(t *testing.T) {
	f := newAdminFixture(t)

	recorder := f.do("POST", "/api/v1/admin/ban/ip", map[string]any{"ips": []string{}}, true)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAdminLoginLog(t *testing.T) {
	f := newAdminFixture(t)

	recorder := f.do("GET", "/api/v1/admin/loginlog?limit=5", nil, true)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"alice"`)
}

func TestAdminGeolocateServesCachedRecords(t *testing.T) {
	f := newAdminFixture(t)

	record := &ipapi.Record{IP: "203.0.113.9", Country: "Germany", City: "Berlin"}
	encoded, err := json.Marshal(record)

	require.NoError(t, err)
	require.NoError(t, f.memory.Set(context.Background(), "ipapi", ipapi.CacheKey("203.0.113.9"), string(encoded), time.Hour))

	recorder := f.do("POST", "/api/v1/admin/geolocate", map[string]any{
		"ips": []string{"203.0.113.9"},
	}, true)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Berlin")
}
