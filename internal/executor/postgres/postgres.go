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

// Package postgres implements internal/executor.Executor over a PostgreSQL
// database/sql connection.
package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/veilquery/mediator/internal/analyzer"
	"github.com/veilquery/mediator/internal/executor"
	"github.com/veilquery/mediator/internal/mediatorerrors"
	"github.com/veilquery/mediator/internal/obslog"
	"github.com/veilquery/mediator/internal/policy"
)

// Executor runs already-analyzed, already-policed SQL against PostgreSQL.
type Executor struct {
	db     *sql.DB
	log    *obslog.Logger
	timeout time.Duration
}

// New opens a connection pool to dsn and verifies it with a ping.
func New(dsn string, timeout time.Duration) (*Executor, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, mediatorerrors.New(mediatorerrors.KindExecutorError, "postgres.New", "failed to open connection", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, mediatorerrors.New(mediatorerrors.KindExecutorError, "postgres.New", "failed to ping database", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{db: db, log: obslog.New("executor.postgres"), timeout: timeout}, nil
}

// Close releases the underlying connection pool.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Execute runs sql, returning a scalar for aggregate queries or a row set
// otherwise. It never runs a REJECT decision.
func (e *Executor) Execute(ctx context.Context, stmt string, analysis analyzer.AnalysisResult, decision policy.Decision, reqCtx policy.Context) (executor.Result, error) {
	if decision.Action == policy.ActionReject {
		return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "postgres.Execute", "refusing to execute a rejected query", nil)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	if analysis.IsAggregateQuery {
		row := e.db.QueryRowContext(execCtx, stmt)
		var value interface{}
		if err := row.Scan(&value); err != nil {
			return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "postgres.Execute", "scalar query failed", err)
		}
		e.log.Debug("executed aggregate query", map[string]any{"duration_ms": time.Since(start).Milliseconds()})
		return executor.Result{Data: asFloat(value), RowCount: 1}, nil
	}

	rows, err := e.db.QueryContext(execCtx, stmt)
	if err != nil {
		return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "postgres.Execute", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	results, err := scanRows(rows)
	if err != nil {
		return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "postgres.Execute", "failed scanning rows", err)
	}

	e.log.Debug("executed row-set query", map[string]any{"rows": len(results), "duration_ms": time.Since(start).Milliseconds()})
	return executor.Result{Data: results, RowCount: len(results)}, nil
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func asFloat(value interface{}) interface{} {
	switch v := value.(type) {
	case []byte:
		return string(v)
	default:
		return v
	}
}
