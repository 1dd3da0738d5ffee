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

// Package ident derives the canonical client identity of a request. The
// trusted client IP comes from the transport peer address only; the spoofable
// proxy headers are collected separately and exclusively for ban matching.
package ident

import (
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"strings"
)

// Identity is the canonical client identity of one request. IP is empty when
// the peer address did not parse as a valid IP address.
type Identity struct {
	IP        string
	UserAgent string
}

// candidateHeaders are the single-value proxy headers inspected for ban
// matching. X-Forwarded-For and Forwarded are handled separately because
// they carry lists.
var candidateHeaders = []string{
	"X-Proxyuser-IP",
	"True-Client-IP",
	"X-CF-Connecting-IP",
	"X-Real-IP",
}

// forwardedForPattern extracts the for= tokens of a Forwarded header.
var forwardedForPattern = regexp.MustCompile(`(?i)for\s*=\s*("[^"]+"|[^,;\s]+)`)

// bracketedPattern extracts a bracketed IPv6 literal from a quoted
// Forwarded token.
var bracketedPattern = regexp.MustCompile(`^"\[([^]]+)]`)

// Resolve returns the canonical identity of the request. The IP is taken
// from the transport peer address and must parse strictly; anything else
// yields an empty IP.
func Resolve(request *http.Request) Identity {
	return Identity{
		IP:        remoteIP(request),
		UserAgent: request.UserAgent(),
	}
}

// remoteIP extracts the IP part of the transport peer address.
func remoteIP(request *http.Request) string {
	host := request.RemoteAddr

	if splitHost, _, err := net.SplitHostPort(host); err == nil {
		host = splitHost
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return ""
	}

	return addr.String()
}

// SanitizeUA strips control characters and leading/trailing whitespace from
// a User-Agent and collapses internal whitespace runs. A User-Agent that
// changes under sanitization was not sent by a browser.
func SanitizeUA(userAgent string) string {
	var builder strings.Builder

	builder.Grow(len(userAgent))

	lastWasSpace := false

	for _, r := range userAgent {
		if r < 0x20 || r == 0x7f {
			continue
		}

		if r == ' ' {
			if lastWasSpace {
				continue
			}

			lastWasSpace = true
		} else {
			lastWasSpace = false
		}

		builder.WriteRune(r)
	}

	return strings.TrimSpace(builder.String())
}

// IsSuspiciousUA reports whether a User-Agent is empty or fails the
// sanitize-equality check.
func IsSuspiciousUA(userAgent string) bool {
	return userAgent == "" || userAgent != SanitizeUA(userAgent)
}

// HasAcceptHeader reports whether the request carries an Accept header.
// Automation tools typically omit it.
func HasAcceptHeader(request *http.Request) bool {
	return request.Header.Get("Accept") != ""
}

// Candidates collects every plausible client IP of the request: the trusted
// peer address plus all spoofable proxy headers. Each candidate must be a
// valid public IP. The result maps the normalized IP to the name of its
// source; a later source overwrites an earlier one for the same IP.
func Candidates(request *http.Request) map[string]string {
	candidates := make(map[string]string)

	if ip := remoteIP(request); ip != "" {
		if addr, err := netip.ParseAddr(ip); err == nil && IsPublicAddr(addr) {
			candidates[ip] = "IP"
		}
	}

	for _, header := range candidateHeaders {
		if ip, ok := publicIP(strings.TrimSpace(request.Header.Get(header))); ok {
			candidates[ip] = header
		}
	}

	for _, entry := range strings.Split(request.Header.Get("X-Forwarded-For"), ",") {
		if ip, ok := publicIP(strings.TrimSpace(entry)); ok {
			candidates[ip] = "X-Forwarded-For"
		}
	}

	for _, token := range forwardedForPattern.FindAllStringSubmatch(request.Header.Get("Forwarded"), -1) {
		if ip, ok := publicIP(forwardedToken(token[1])); ok {
			candidates[ip] = "Forwarded"
		}
	}

	return candidates
}

// forwardedToken unwraps one for= token: quoted tokens may hold a bracketed
// IPv6 literal, unquoted tokens may carry a port.
func forwardedToken(token string) string {
	if token == "" {
		return ""
	}

	if token[0] == '"' {
		if match := bracketedPattern.FindStringSubmatch(token); match != nil {
			return match[1]
		}

		return strings.Trim(token, `"`)
	}

	host, _, _ := strings.Cut(token, ":")

	return host
}

// publicIP parses a candidate and reports its normalized form when it is a
// valid public address.
func publicIP(candidate string) (string, bool) {
	if candidate == "" {
		return "", false
	}

	addr, err := netip.ParseAddr(candidate)
	if err != nil {
		return "", false
	}

	if !IsPublicAddr(addr) {
		return "", false
	}

	return addr.String(), true
}

// IsPublicAddr reports whether an address is neither private nor reserved.
// Loopback, link-local, multicast and unspecified addresses never identify
// a routable client.
func IsPublicAddr(addr netip.Addr) bool {
	return !(addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified())
}

// IsValidIP reports whether the candidate parses as an IPv4 or IPv6 address.
func IsValidIP(candidate string) bool {
	_, err := netip.ParseAddr(candidate)

	return err == nil
}
