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

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_SimpleAggregate(t *testing.T) {
	r := Analyze("SELECT COUNT(*) FROM users")
	require.True(t, r.IsValid)
	assert.Equal(t, []string{"users"}, r.Tables)
	assert.True(t, r.IsAggregateQuery)
	assert.Contains(t, r.Aggregations, AggCount)
	assert.False(t, r.HasWhere)
}

func TestAnalyze_EmptySQL(t *testing.T) {
	r := Analyze("   ")
	assert.False(t, r.IsValid)
	assert.NotEmpty(t, r.Error)
}

func TestAnalyze_SelectColumnsWithAlias(t *testing.T) {
	r := Analyze("SELECT name, email AS contact_email FROM users WHERE id = 1")
	require.True(t, r.IsValid)
	assert.Equal(t, []string{"name", "contact_email"}, r.SelectColumns)
	assert.True(t, r.HasWhere)
}

func TestAnalyze_DuplicateTablesAppearOnce(t *testing.T) {
	r := Analyze("SELECT * FROM users JOIN orders ON users.id = orders.user_id JOIN users AS u2 ON u2.id = orders.ref_id")
	require.True(t, r.IsValid)
	assert.Equal(t, []string{"users", "orders"}, r.Tables)
}

func TestAnalyze_Joins(t *testing.T) {
	r := Analyze("SELECT * FROM a LEFT JOIN b ON a.id = b.a_id AND b.active = 1 WHERE a.x > 0")
	require.True(t, r.IsValid)
	require.Len(t, r.Joins, 1)
	assert.Equal(t, JoinLeft, r.Joins[0].Type)
	assert.Equal(t, "b", r.Joins[0].Table)
	assert.Len(t, r.Joins[0].Conditions, 2)
}

func TestAnalyze_GroupBy(t *testing.T) {
	r := Analyze("SELECT dept, COUNT(*) FROM employees GROUP BY dept, region HAVING COUNT(*) > 1")
	require.True(t, r.IsValid)
	assert.Equal(t, []string{"dept", "region"}, r.GroupByColumns)
}

func TestAnalyze_Subqueries(t *testing.T) {
	r := Analyze("SELECT * FROM orders o WHERE o.total > (SELECT AVG(total) FROM orders) AND EXISTS (SELECT 1 FROM refunds r WHERE r.order_id = o.id)")
	require.True(t, r.IsValid)
	require.Len(t, r.Subqueries, 2)
	assert.Equal(t, SubqueryScalar, r.Subqueries[0].Kind)
	assert.Equal(t, SubqueryExists, r.Subqueries[1].Kind)
	assert.True(t, r.Subqueries[1].IsCorrelated)
}

func TestAnalyze_CTE(t *testing.T) {
	r := Analyze("WITH recent AS (SELECT * FROM orders WHERE created_at > '2024-01-01') SELECT * FROM recent")
	require.True(t, r.IsValid)
	require.Len(t, r.CTEs, 1)
	assert.Equal(t, "recent", r.CTEs[0].Name)
	assert.False(t, r.CTEs[0].IsRecursive)
}

func TestAnalyze_RecursiveCTE(t *testing.T) {
	r := Analyze("WITH RECURSIVE tree AS (SELECT id, parent_id FROM nodes WHERE parent_id IS NULL UNION ALL SELECT n.id, n.parent_id FROM nodes n JOIN tree t ON n.parent_id = t.id) SELECT * FROM tree")
	require.True(t, r.IsValid)
	require.Len(t, r.CTEs, 1)
	assert.True(t, r.CTEs[0].IsRecursive)
}

func TestAnalyze_WindowFunction(t *testing.T) {
	r := Analyze("SELECT ROW_NUMBER() OVER (PARTITION BY dept ORDER BY salary DESC) FROM employees")
	require.True(t, r.IsValid)
	require.Len(t, r.WindowFunctions, 1)
	assert.Equal(t, "ROW_NUMBER", r.WindowFunctions[0].Function)
	assert.Equal(t, []string{"dept"}, r.WindowFunctions[0].PartitionBy)
}
