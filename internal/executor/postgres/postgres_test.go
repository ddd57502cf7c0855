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

package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilquery/mediator/internal/analyzer"
	"github.com/veilquery/mediator/internal/obslog"
	"github.com/veilquery/mediator/internal/policy"
)

func newMockExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Executor{db: db, timeout: 2 * time.Second, log: obslog.New("test")}, mock
}

func TestExecute_ScalarForAggregateQuery(t *testing.T) {
	e, mock := newMockExecutor(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	res, err := e.Execute(context.Background(), "SELECT COUNT(*) FROM users",
		analyzer.AnalysisResult{IsAggregateQuery: true, IsValid: true}, policy.Decision{Action: policy.ActionDP}, policy.Context{})
	require.NoError(t, err)
	assert.EqualValues(t, 42, res.Data)
	assert.Equal(t, 1, res.RowCount)
}

func TestExecute_RowSetForNonAggregateQuery(t *testing.T) {
	e, mock := newMockExecutor(t)
	mock.ExpectQuery("SELECT name").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow("alice").AddRow("bob"))

	res, err := e.Execute(context.Background(), "SELECT name FROM users",
		analyzer.AnalysisResult{IsValid: true}, policy.Decision{Action: policy.ActionPass}, policy.Context{})
	require.NoError(t, err)
	rows, ok := res.Data.([]map[string]interface{})
	require.True(t, ok)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, res.RowCount)
}

func TestExecute_RefusesRejectedDecision(t *testing.T) {
	e, _ := newMockExecutor(t)
	_, err := e.Execute(context.Background(), "SELECT 1",
		analyzer.AnalysisResult{IsValid: true}, policy.Decision{Action: policy.ActionReject}, policy.Context{})
	assert.Error(t, err)
}
