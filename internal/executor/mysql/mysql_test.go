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

package mysql

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
	mock.ExpectQuery("SELECT AVG").WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow("3.5"))

	res, err := e.Execute(context.Background(), "SELECT AVG(score) FROM students",
		analyzer.AnalysisResult{IsAggregateQuery: true, IsValid: true}, policy.Decision{Action: policy.ActionDP}, policy.Context{})
	require.NoError(t, err)
	assert.Equal(t, "3.5", res.Data)
}

func TestExecute_RowSetForNonAggregateQuery(t *testing.T) {
	e, mock := newMockExecutor(t)
	mock.ExpectQuery("SELECT id").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

	res, err := e.Execute(context.Background(), "SELECT id FROM students",
		analyzer.AnalysisResult{IsValid: true}, policy.Decision{Action: policy.ActionPass}, policy.Context{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowCount)
}

func TestExecute_RefusesRejectedDecision(t *testing.T) {
	e, _ := newMockExecutor(t)
	_, err := e.Execute(context.Background(), "SELECT 1",
		analyzer.AnalysisResult{IsValid: true}, policy.Decision{Action: policy.ActionReject}, policy.Context{})
	assert.Error(t, err)
}
