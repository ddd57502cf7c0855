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
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/veilquery/mediator/internal/audit"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleQuery is the single privacy-mediated query entry point (spec.md §6).
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	if req.SQL == "" {
		writeError(w, http.StatusBadRequest, "validation", "sql is required")
		return
	}

	reqCtx := requestContext(r)
	resp, err := s.driver.ProcessQuery(r.Context(), req.SQL, reqCtx)
	if err != nil {
		s.log.Error("unexpected driver error", err, map[string]any{"user_id": reqCtx.UserID})
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	status := http.StatusOK
	switch resp.Type {
	case "ERROR":
		status = http.StatusBadRequest
	case "BUDGET_ERROR":
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	if s.budgetMgr == nil {
		writeError(w, http.StatusNotFound, "", "budget accounting is disabled")
		return
	}
	userID := mux.Vars(r)["user_id"]
	status := s.budgetMgr.GetBudgetStatus(userID)
	writeJSON(w, http.StatusOK, BudgetResponse{
		UserID:         status.UserID,
		TotalBudget:    status.TotalBudget,
		ConsumedBudget: status.ConsumedBudget,
		Remaining:      status.Remaining,
		Role:           status.Role,
	})
}

func (s *Server) handleResetBudget(w http.ResponseWriter, r *http.Request) {
	if s.budgetMgr == nil {
		writeError(w, http.StatusNotFound, "", "budget accounting is disabled")
		return
	}
	userID := mux.Vars(r)["user_id"]
	s.budgetMgr.ResetBudget(userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleBudgetHistory(w http.ResponseWriter, r *http.Request) {
	if s.budgetMgr == nil {
		writeError(w, http.StatusNotFound, "", "budget accounting is disabled")
		return
	}
	userID := mux.Vars(r)["user_id"]
	limit := 100
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	txns := s.budgetMgr.GetBudgetHistory(userID, limit)
	out := make([]HistoryEntry, len(txns))
	for i, t := range txns {
		out[i] = HistoryEntry{
			ID:              t.ID,
			QueryID:         t.QueryID,
			EpsilonConsumed: t.EpsilonConsumed,
			Timestamp:       t.Timestamp.Format(time.RFC3339),
			Mechanism:       t.Mechanism,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		UserID:  q.Get("user_id"),
		QueryID: q.Get("query_id"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	writeJSON(w, http.StatusOK, s.auditLog.Query(filter))
}

func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.auditLog.Stats())
}

func (s *Server) handleAuditExportJSON(w http.ResponseWriter, r *http.Request) {
	export := s.auditLog.ExportJSON()
	if s.exportSink != nil {
		data, err := json.Marshal(export)
		if err == nil {
			s.persistExport(r, "json", data)
		}
	}
	writeJSON(w, http.StatusOK, export)
}

func (s *Server) handleAuditExportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := s.auditLog.ExportCSV()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to export audit log")
		return
	}
	if s.exportSink != nil {
		s.persistExport(r, "csv", data)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit_export.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// persistExport uploads an export through the configured cloud ExportSink,
// keyed by timestamp so repeated exports never collide. Upload failures are
// logged, not surfaced to the caller: the response body already carries the
// export.
func (s *Server) persistExport(r *http.Request, ext string, data []byte) {
	key := "audit-export-" + time.Now().UTC().Format("20060102T150405") + "." + ext
	contentType := "application/json"
	if ext == "csv" {
		contentType = "text/csv"
	}
	if err := s.exportSink.Write(r.Context(), key, contentType, data); err != nil {
		s.log.Error("failed to persist audit export", err, map[string]any{"key": key})
	}
}

func (s *Server) handleAuditIntegrity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"valid": s.auditLog.VerifyChainIntegrity()})
}
