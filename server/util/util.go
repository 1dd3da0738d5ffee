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

// Package util holds small helpers shared across the server packages.
package util

import (
	"fmt"
	"net"
	"strings"

	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/log"
	"github.com/dspinhirne/netaddr-go"
	"github.com/go-kit/log/level"
)

// IsInNetwork reports whether clientIP matches any entry of networkList.
// Entries are plain IP addresses or CIDR networks; unparsable entries are
// logged and skipped.
func IsInNetwork(networkList []string, guid, clientIP string) bool {
	ipAddress := net.ParseIP(clientIP)
	if ipAddress == nil {
		return false
	}

	for _, ipOrNet := range networkList {
		if net.ParseIP(ipOrNet) != nil {
			if clientIP == ipOrNet {
				return true
			}

			continue
		}

		_, network, err := net.ParseCIDR(ipOrNet)
		if err != nil {
			level.Error(log.Logger).Log(
				definitions.LogKeyGUID, guid,
				definitions.LogKeyMsg, fmt.Sprintf("%s is not a network", ipOrNet),
				definitions.LogKeyError, err,
			)

			continue
		}

		if network.Contains(ipAddress) {
			return true
		}
	}

	return false
}

// ValidateIPv6 reports whether the candidate is a well-formed IPv6 address.
// The stricter netaddr parser rejects forms net.ParseIP still accepts.
func ValidateIPv6(candidate string) bool {
	if !strings.Contains(candidate, ":") {
		return false
	}

	_, err := netaddr.ParseIPv6(candidate)

	return err == nil
}
