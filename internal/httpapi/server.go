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
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/veilquery/mediator/internal/audit"
	"github.com/veilquery/mediator/internal/budget"
	"github.com/veilquery/mediator/internal/driver"
	"github.com/veilquery/mediator/internal/obslog"
	"github.com/veilquery/mediator/internal/ratelimit"
)

// Server holds the collaborators the HTTP layer needs to build a router.
// It performs no privacy logic itself: every route delegates to driver,
// budget, or audit.
type Server struct {
	driver         *driver.Driver
	budgetMgr      *budget.Manager
	auditLog       *audit.Logger
	limiter        *ratelimit.Limiter
	jwtSecret      []byte
	allowedOrigins []string
	exportSink     audit.ExportSink
	log            *obslog.Logger
}

// Config configures the HTTP layer.
type Config struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// ExportSink, if set, persists every audit export to durable storage in
	// addition to returning it in the response body (spec §4.7).
	ExportSink audit.ExportSink
}

// NewServer wires a Server. budgetMgr may be nil if budget accounting is
// disabled; the corresponding endpoints then respond 404.
func NewServer(d *driver.Driver, budgetMgr *budget.Manager, auditLog *audit.Logger, limiter *ratelimit.Limiter, cfg Config) *Server {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{
		driver:         d,
		budgetMgr:      budgetMgr,
		auditLog:       auditLog,
		limiter:        limiter,
		jwtSecret:      cfg.JWTSecret,
		allowedOrigins: allowedOrigins,
		exportSink:     cfg.ExportSink,
		log:            obslog.New("httpapi"),
	}
}

// Handler builds the full CORS-wrapped, authenticated, rate-limited router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/query", s.handleQuery).Methods(http.MethodPost)

	r.HandleFunc("/api/v1/budget/{user_id}", s.handleGetBudget).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/budget/{user_id}/reset", s.handleResetBudget).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/budget/{user_id}/history", s.handleBudgetHistory).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/audit", s.handleAuditList).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/audit/stats", s.handleAuditStats).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/audit/export.json", s.handleAuditExportJSON).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/audit/export.csv", s.handleAuditExportCSV).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/audit/integrity", s.handleAuditIntegrity).Methods(http.MethodGet)

	r.Use(s.authenticate)
	r.Use(s.rateLimit)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// rateLimit enforces the global/per-user sliding-window limits (spec §4.11)
// ahead of every mediated request; /health and /metrics are exempt since
// they carry no user identity and are polled by infrastructure.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		reqCtx := requestContext(r)
		result := s.limiter.CheckAndRecord(reqCtx.UserID)
		if !result.Allowed {
			w.Header().Set("Retry-After", result.RetryAfter.String())
			writeError(w, http.StatusTooManyRequests, "rate_limit", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
