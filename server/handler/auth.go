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

package handler

import (
	"net/http"

	"github.com/croessner/secenh/server/backend"
	"github.com/croessner/secenh/server/definitions"
	"github.com/gin-gonic/gin"
)

// BasicAuth guards the admin endpoints with HTTP Basic credentials checked
// against the credential store.
func BasicAuth(creds backend.CredentialStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username, password, ok := ctx.Request.BasicAuth()

		if ok && creds != nil {
			if valid, err := creds.Verify(ctx.Request.Context(), username, password); err == nil && valid {
				ctx.Next()

				return
			}
		}

		ctx.Header("WWW-Authenticate", `Basic realm="secenh admin"`)
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			definitions.LogKeyMsg: definitions.ErrCredentials,
		})
	}
}
