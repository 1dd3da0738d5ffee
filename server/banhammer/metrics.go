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

package banhammer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BlockedRequestsTotal counts rejected requests per matched criterion
// (transport IP, header name or User-Agent).
var BlockedRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "secenh_blocked_requests_total",
		Help: "Number of requests rejected by the ban enforcement.",
	},
	[]string{"criterion"},
)
