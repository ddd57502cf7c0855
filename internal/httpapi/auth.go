// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veilquery/mediator/internal/driver"
)

// contextKey is a private type for context keys to avoid collisions with
// keys set by other packages.
type contextKey string

const ctxKeyRequest contextKey = "request_context"

// authenticate parses the Bearer token and populates a driver.RequestContext
// from its claims: user_id and role. A missing or malformed token maps the
// caller to an anonymous, roleless context rather than rejecting the
// request outright — role-based policy rules then decide what an anonymous
// caller may see.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqCtx := driver.RequestContext{UserID: "anonymous"}

		header := r.Header.Get("Authorization")
		if tokenString, ok := strings.CutPrefix(header, "Bearer "); ok && tokenString != "" {
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				return s.jwtSecret, nil
			})
			if err == nil && token.Valid {
				if claims, ok := token.Claims.(jwt.MapClaims); ok {
					if uid := getClaimString(claims, "user_id"); uid != "" {
						reqCtx.UserID = uid
					}
					reqCtx.UserRole = getClaimString(claims, "role")
				}
			} else {
				s.log.Warn("ignoring invalid bearer token; request continues as anonymous", map[string]any{"error": errString(err)})
			}
		}

		ctx := context.WithValue(r.Context(), ctxKeyRequest, reqCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestContext(r *http.Request) driver.RequestContext {
	if rc, ok := r.Context().Value(ctxKeyRequest).(driver.RequestContext); ok {
		return rc
	}
	return driver.RequestContext{UserID: "anonymous"}
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
