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

/*
Package analyzer extracts a fixed set of semantic features from a SQL
statement: tables, select columns, aggregations, joins, subqueries, CTEs,
and window functions. It is regex/tokenization based rather than a real
parser — the contract is the AnalysisResult struct, which lets a real
parser be swapped in behind it later without touching callers.
*/
package analyzer
