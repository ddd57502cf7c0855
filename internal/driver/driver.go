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

package driver

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilquery/mediator/internal/analyzer"
	"github.com/veilquery/mediator/internal/audit"
	"github.com/veilquery/mediator/internal/budget"
	"github.com/veilquery/mediator/internal/config"
	"github.com/veilquery/mediator/internal/executor"
	"github.com/veilquery/mediator/internal/monitor"
	"github.com/veilquery/mediator/internal/obslog"
	"github.com/veilquery/mediator/internal/policy"
	"github.com/veilquery/mediator/internal/sensitivity"
)

// Driver is the single entry point for the mediator's request pipeline:
// analyze, police, budget, execute, transform, audit.
type Driver struct {
	cfg        *config.Manager
	policyEng  *policy.Engine
	budgetMgr  *budget.Manager
	sensAnalyzer *sensitivity.Analyzer
	auditLog   *audit.Logger
	exec       executor.Executor
	monitor    *monitor.Monitor

	driverCfg Config

	randMu sync.Mutex
	rng    *rand.Rand

	log *obslog.Logger
}

// New wires a Driver from its collaborators. budgetMgr and mon may be nil
// to run without budget accounting or performance monitoring.
func New(cfg *config.Manager, policyEng *policy.Engine, budgetMgr *budget.Manager, sensAnalyzer *sensitivity.Analyzer, auditLog *audit.Logger, exec executor.Executor, mon *monitor.Monitor, driverCfg Config) *Driver {
	return &Driver{
		cfg:          cfg,
		policyEng:    policyEng,
		budgetMgr:    budgetMgr,
		sensAnalyzer: sensAnalyzer,
		auditLog:     auditLog,
		exec:         exec,
		monitor:      mon,
		driverCfg:    driverCfg,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		log:          obslog.New("driver"),
	}
}

func (d *Driver) noise(fn func(rng *rand.Rand) float64) float64 {
	d.randMu.Lock()
	defer d.randMu.Unlock()
	return fn(d.rng)
}

// ProcessQuery runs one SQL statement through the full pipeline and returns
// the uniform Response contract. The returned error is non-nil only for
// conditions the caller cannot recover information from (none in the
// current design); all documented failure modes are expressed as a
// Response with Type ERROR or BUDGET_ERROR.
func (d *Driver) ProcessQuery(ctx context.Context, sql string, reqCtx RequestContext) (Response, error) {
	queryID := uuid.NewString()
	qm := monitor.QueryMetrics{QueryID: queryID, Start: time.Now()}
	defer func() {
		qm.End = time.Now()
		if d.monitor != nil {
			d.monitor.EndQuery(qm)
		}
	}()

	// 1. Analyze.
	analysisStart := time.Now()
	analysis := analyzer.Analyze(sql)
	qm.AnalysisMs = msSince(analysisStart)

	if !analysis.IsValid {
		d.appendAudit(audit.Entry{
			EventType:       audit.EventQueryRejected,
			UserID:          reqCtx.UserID,
			QueryEvent:      &audit.QueryEvent{QueryID: queryID, SQL: sql},
			RejectionReason: "invalid_query: " + analysis.Error,
		})
		qm.Error = true
		return Response{Type: ResponseError, OriginalQuery: sql, Error: analysis.Error}, nil
	}

	// 2. Policy.
	policyStart := time.Now()
	doc := d.cfg.Snapshot()
	var role *config.Role
	if r, ok := doc.Roles[reqCtx.UserRole]; ok {
		role = &r
	}
	policyCtx := policy.Context{UserRole: reqCtx.UserRole, Extra: reqCtx.Extra}
	decision := d.policyEng.Evaluate(analysis, role, reqCtx.UserRole, policyCtx)
	qm.PolicyMs = msSince(policyStart)

	if decision.Action == policy.ActionReject {
		d.appendAudit(audit.Entry{
			EventType:       audit.EventQueryRejected,
			UserID:          reqCtx.UserID,
			QueryEvent:      &audit.QueryEvent{QueryID: queryID, SQL: sql, Tables: analysis.Tables},
			RejectionReason: decision.Reason,
		})
		qm.Error = true
		return Response{Type: ResponseError, OriginalQuery: sql, Error: decision.Reason}, nil
	}

	// 3. Budget (only for DP decisions, only when budget accounting enabled).
	budgetDebited := false
	epsilon := decision.Params.Epsilon
	if decision.Action == policy.ActionDP && d.driverCfg.BudgetEnabled && d.budgetMgr != nil {
		check := d.budgetMgr.CheckBudget(reqCtx.UserID, reqCtx.UserRole, epsilon)
		if !check.Allowed {
			d.appendAudit(audit.Entry{
				EventType:       audit.EventQueryRejected,
				UserID:          reqCtx.UserID,
				QueryEvent:      &audit.QueryEvent{QueryID: queryID, SQL: sql, Tables: analysis.Tables},
				RejectionReason: "insufficient_budget",
			})
			qm.Error = true
			remaining := check.Remaining
			requested := check.Requested
			return Response{
				Type:          ResponseBudgetError,
				OriginalQuery: sql,
				Error:         "insufficient_budget",
				PrivacyInfo: PrivacyInfo{
					RemainingBudget: &remaining,
					RequestedBudget: &requested,
				},
			}, nil
		}
		d.budgetMgr.ConsumeBudget(reqCtx.UserID, reqCtx.UserRole, epsilon, queryID, sql, decision.Params.Mechanism)
		budgetDebited = true
		d.appendAudit(audit.Entry{
			EventType:  audit.EventBudgetConsumed,
			UserID:     reqCtx.UserID,
			QueryEvent: &audit.QueryEvent{QueryID: queryID, SQL: sql, Tables: analysis.Tables},
			Metadata:   map[string]interface{}{"epsilon": epsilon},
		})
	}

	// 4. Multi-table sensitivity uplift.
	multiTableSensitivity := sensitivityUplift(analysis)
	if reqCtx.Extra == nil {
		reqCtx.Extra = map[string]interface{}{}
	}
	reqCtx.Extra["multi_table_sensitivity"] = multiTableSensitivity

	// 5. Execute.
	execStart := time.Now()
	result, err := d.exec.Execute(ctx, sql, analysis, decision, policyCtx)
	qm.ExecutionMs = msSince(execStart)
	if err != nil {
		if budgetDebited && d.driverCfg.RefundOnExecutorError {
			d.budgetMgr.RefundBudget(reqCtx.UserID, epsilon)
			d.appendAudit(audit.Entry{
				EventType:  audit.EventBudgetReset,
				UserID:     reqCtx.UserID,
				QueryEvent: &audit.QueryEvent{QueryID: queryID, SQL: sql},
				Metadata:   map[string]interface{}{"refunded_epsilon": epsilon, "reason": "executor_error"},
			})
		}
		d.appendAudit(audit.Entry{
			EventType:       audit.EventSystemError,
			UserID:          reqCtx.UserID,
			QueryEvent:      &audit.QueryEvent{QueryID: queryID, SQL: sql},
			RejectionReason: err.Error(),
		})
		qm.Error = true
		return Response{Type: ResponseError, OriginalQuery: sql, Error: err.Error()}, nil
	}

	// 6. Transform.
	privacyStart := time.Now()
	protected, privacyInfo := d.transform(analysis, decision, result, multiTableSensitivity)
	qm.PrivacyMs = msSince(privacyStart)
	qm.ResultSize = result.RowCount

	if budgetDebited {
		status := d.budgetMgr.GetBudgetStatus(reqCtx.UserID)
		privacyInfo.BudgetStatus = &status
	}

	// 7. Audit PRIVACY_APPLIED.
	d.appendAudit(audit.Entry{
		EventType:  audit.EventPrivacyApplied,
		UserID:     reqCtx.UserID,
		QueryEvent: &audit.QueryEvent{QueryID: queryID, SQL: sql, Tables: analysis.Tables},
		PrivacyEvent: &audit.PrivacyEvent{
			Mechanism:     decision.Params.Mechanism,
			Epsilon:       decision.Params.Epsilon,
			Delta:         decision.Params.Delta,
			Sensitivity:   multiTableSensitivity * decision.Params.Sensitivity,
			PrivacyMethod: decision.Params.Method,
			Columns:       privacyInfo.ColumnsProcessed,
		},
	})

	return Response{
		Type:            responseTypeFor(decision.Action),
		OriginalQuery:   sql,
		ProtectedResult: protected,
		PrivacyInfo:     privacyInfo,
	}, nil
}

func (d *Driver) appendAudit(e audit.Entry) {
	if d.auditLog == nil {
		return
	}
	if _, err := d.auditLog.Append(e); err != nil {
		d.log.Error("failed to append audit entry", err, map[string]any{"event_type": string(e.EventType)})
	}
}

func responseTypeFor(a policy.Action) ResponseType {
	switch a {
	case policy.ActionDP:
		return ResponseDP
	case policy.ActionDeID:
		return ResponseDeID
	default:
		return ResponsePass
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// sensitivityUplift computes the multi-table sensitivity multiplier from
// the analyzed query's joins, subqueries, and window functions (spec.md
// §4.8 step 4).
func sensitivityUplift(a analyzer.AnalysisResult) float64 {
	s := 1 + 0.5*float64(len(a.Joins))
	for _, j := range a.Joins {
		if j.Type != analyzer.JoinInner {
			s *= 1.2
		}
	}
	s *= 1 + 0.3*float64(len(a.Subqueries))
	s *= 1 + 0.2*float64(len(a.WindowFunctions))
	return s
}
