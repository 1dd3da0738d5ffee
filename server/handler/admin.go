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

// Package handler exposes the admin REST surface: ban management,
// geolocation lookups and the login journal.
package handler

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/croessner/secenh/server/banhammer"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/ident"
	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/loginlog"
	"github.com/croessner/secenh/server/util"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves the admin endpoints.
type AdminHandler struct {
	ban     *banhammer.Banhammer
	geo     *ipapi.Client
	journal loginlog.Journal
}

// NewAdminHandler returns an AdminHandler.
func NewAdminHandler(ban *banhammer.Banhammer, geo *ipapi.Client, journal loginlog.Journal) *AdminHandler {
	return &AdminHandler{ban: ban, geo: geo, journal: journal}
}

// RegisterRoutes attaches the admin endpoints to a router group.
func (h *AdminHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/ban/ip", h.BanIPs)
	group.POST("/unban/ip", h.UnbanIPs)
	group.GET("/banned/ip/:ip", h.IsIPBanned)
	group.POST("/ban/ua", h.BanUAs)
	group.POST("/unban/ua", h.UnbanUAs)
	group.GET("/banned/ua", h.IsUABanned)
	group.POST("/geolocate", h.Geolocate)
	group.GET("/loginlog", h.LoginLog)
}

// banIPRequest is the body of POST /ban/ip and /unban/ip.
type banIPRequest struct {
	IPs []string `json:"ips" binding:"required,min=1"`
	TTL int64    `json:"ttl"`
}

// banUARequest is the body of POST /ban/ua and /unban/ua.
type banUARequest struct {
	UserAgents []string `json:"user_agents" binding:"required,min=1"`
	TTL        int64    `json:"ttl"`
}

// banResult lists what was applied and what was refused.
type banResult struct {
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped"`
}

// BanIPs writes ban entries for every valid public IP of the request body.
// The check path re-runs afterwards: an admin banning one of their own
// addresses terminates this very request.
func (h *AdminHandler) BanIPs(ctx *gin.Context) {
	request := &banIPRequest{}

	if err := ctx.ShouldBindJSON(request); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{definitions.LogKeyError: err.Error()})

		return
	}

	result := &banResult{Applied: []string{}, Skipped: []string{}}

	for _, ip := range request.IPs {
		if !isBannableIP(ip) {
			result.Skipped = append(result.Skipped, ip)

			continue
		}

		if err := h.ban.BanIP(ctx.Request.Context(), ip, request.TTL); err != nil {
			result.Skipped = append(result.Skipped, ip)

			continue
		}

		result.Applied = append(result.Applied, ip)
	}

	if h.ban.CheckRequest(ctx) {
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// UnbanIPs removes ban entries. IPs without one are reported as skipped.
func (h *AdminHandler) UnbanIPs(ctx *gin.Context) {
	request := &banIPRequest{}

	if err := ctx.ShouldBindJSON(request); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{definitions.LogKeyError: err.Error()})

		return
	}

	result := &banResult{Applied: []string{}, Skipped: []string{}}

	for _, ip := range request.IPs {
		banned, err := h.ban.IsIPBanned(ctx.Request.Context(), ip)
		if err != nil || !banned {
			result.Skipped = append(result.Skipped, ip)

			continue
		}

		if err := h.ban.UnbanIP(ctx.Request.Context(), ip); err != nil {
			result.Skipped = append(result.Skipped, ip)

			continue
		}

		result.Applied = append(result.Applied, ip)
	}

	ctx.JSON(http.StatusOK, result)
}

// IsIPBanned reports the ban state of one IP.
func (h *AdminHandler) IsIPBanned(ctx *gin.Context) {
	ip := ctx.Param("ip")

	if !ident.IsValidIP(ip) {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{definitions.LogKeyError: "not an IP address"})

		return
	}

	banned, err := h.ban.IsIPBanned(ctx.Request.Context(), ip)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{definitions.LogKeyError: err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"value": ip, "banned": banned})
}

// BanUAs writes ban entries for exact User-Agent strings.
func (h *AdminHandler) BanUAs(ctx *gin.Context) {
	request := &banUARequest{}

	if err := ctx.ShouldBindJSON(request); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{definitions.LogKeyError: err.Error()})

		return
	}

	result := &banResult{Applied: []string{}, Skipped: []string{}}

	for _, userAgent := range request.UserAgents {
		if userAgent == "" {
			result.Skipped = append(result.Skipped, userAgent)

			continue
		}

		if err := h.ban.BanUA(ctx.Request.Context(), userAgent, request.TTL); err != nil {
			result.Skipped = append(result.Skipped, userAgent)

			continue
		}

		result.Applied = append(result.Applied, userAgent)
	}

	if h.ban.CheckRequest(ctx) {
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// UnbanUAs removes User-Agent ban entries.
func (h *AdminHandler) UnbanUAs(ctx *gin.Context) {
	request := &banUARequest{}

	if err := ctx.ShouldBindJSON(request); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{definitions.LogKeyError: err.Error()})

		return
	}

	result := &banResult{Applied: []string{}, Skipped: []string{}}

	for _, userAgent := range request.UserAgents {
		banned, err := h.ban.IsUABanned(ctx.Request.Context(), userAgent)
		if err != nil || !banned {
			result.Skipped = append(result.Skipped, userAgent)

			continue
		}

		if err := h.ban.UnbanUA(ctx.Request.Context(), userAgent); err != nil {
			result.Skipped = append(result.Skipped, userAgent)

			continue
		}

		result.Applied = append(result.Applied, userAgent)
	}

	ctx.JSON(http.StatusOK, result)
}

// IsUABanned reports the ban state of one User-Agent, passed as ?value=.
func (h *AdminHandler) IsUABanned(ctx *gin.Context) {
	userAgent := ctx.Query("value")

	if userAgent == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{definitions.LogKeyError: "missing value parameter"})

		return
	}

	banned, err := h.ban.IsUABanned(ctx.Request.Context(), userAgent)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{definitions.LogKeyError: err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"value": userAgent, "banned": banned})
}

// geolocateRequest is the body of POST /geolocate.
type geolocateRequest struct {
	IPs   []string `json:"ips" binding:"required,min=1"`
	Force bool     `json:"force"`
}

// Geolocate resolves a batch of IPs. Force flushes the cached records first.
func (h *AdminHandler) Geolocate(ctx *gin.Context) {
	request := &geolocateRequest{}

	if err := ctx.ShouldBindJSON(request); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{definitions.LogKeyError: err.Error()})

		return
	}

	ips := make([]string, 0, len(request.IPs))

	for _, ip := range request.IPs {
		if !ident.IsValidIP(ip) {
			continue
		}

		if request.Force {
			_ = h.geo.Flush(ctx.Request.Context(), ip)
		}

		ips = append(ips, ip)
	}

	ctx.JSON(http.StatusOK, h.geo.BatchGeolocate(ctx.Request.Context(), ips))
}

// LoginLog serves the most recent login journal entries.
func (h *AdminHandler) LoginLog(ctx *gin.Context) {
	limit := int64(0)

	if value, err := parseInt(ctx.Query("limit")); err == nil {
		limit = value
	}

	entries, err := h.journal.Recent(ctx.Request.Context(), limit)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{definitions.LogKeyError: err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, entries)
}

// isBannableIP accepts valid public addresses only. Banning private or
// reserved space would lock out health checks and internal proxies. IPv6
// input additionally passes the stricter parser, which rejects zone
// suffixes and other forms netip still tolerates.
func isBannableIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !ident.IsPublicAddr(addr) {
		return false
	}

	if strings.Contains(ip, ":") {
		return util.ValidateIPv6(ip)
	}

	return true
}

func parseInt(value string) (int64, error) {
	return strconv.ParseInt(value, 10, 64)
}
