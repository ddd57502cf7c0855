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

// Package mongo implements internal/executor.Executor over MongoDB,
// translating the row-set shape the core expects into BSON documents for
// non-relational analytics tables. The analyzer's extracted table and
// column names are read as the target collection and projection; the core
// never asks Mongo to interpret the SQL text itself.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/veilquery/mediator/internal/analyzer"
	"github.com/veilquery/mediator/internal/executor"
	"github.com/veilquery/mediator/internal/mediatorerrors"
	"github.com/veilquery/mediator/internal/obslog"
	"github.com/veilquery/mediator/internal/policy"
)

// Executor runs already-analyzed, already-policed queries against MongoDB.
type Executor struct {
	client   *mongo.Client
	database *mongo.Database
	log      *obslog.Logger
	timeout  time.Duration
}

// New connects to uri and selects dbName, verifying reachability with a
// ping against the primary.
func New(ctx context.Context, uri, dbName string, timeout time.Duration) (*Executor, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, mediatorerrors.New(mediatorerrors.KindExecutorError, "mongo.New", "failed to connect", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, mediatorerrors.New(mediatorerrors.KindExecutorError, "mongo.New", "failed to ping", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		client:   client,
		database: client.Database(dbName),
		log:      obslog.New("executor.mongo"),
		timeout:  timeout,
	}, nil
}

// Close disconnects the underlying client.
func (e *Executor) Close(ctx context.Context) error {
	return e.client.Disconnect(ctx)
}

// Execute runs the analyzed query's collection access against MongoDB. For
// an aggregate COUNT query it returns a scalar document count; otherwise it
// returns up to 1000 matching documents projected to the selected columns.
func (e *Executor) Execute(ctx context.Context, stmt string, analysis analyzer.AnalysisResult, decision policy.Decision, reqCtx policy.Context) (executor.Result, error) {
	if decision.Action == policy.ActionReject {
		return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "mongo.Execute", "refusing to execute a rejected query", nil)
	}
	if len(analysis.Tables) == 0 {
		return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "mongo.Execute", "no target collection in analysis", nil)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	collection := e.database.Collection(analysis.Tables[0])
	start := time.Now()

	if analysis.IsAggregateQuery && containsCount(analysis) {
		count, err := collection.CountDocuments(execCtx, bson.M{})
		if err != nil {
			return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "mongo.Execute", "count failed", err)
		}
		e.log.Debug("executed aggregate count", map[string]any{"duration_ms": time.Since(start).Milliseconds()})
		return executor.Result{Data: float64(count), RowCount: 1}, nil
	}

	findOpts := options.Find().SetLimit(1000)
	if len(analysis.SelectColumns) > 0 {
		projection := bson.M{}
		for _, col := range analysis.SelectColumns {
			if col == "*" {
				projection = nil
				break
			}
			projection[col] = 1
		}
		if projection != nil {
			findOpts.SetProjection(projection)
		}
	}

	cursor, err := collection.Find(execCtx, bson.M{}, findOpts)
	if err != nil {
		return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "mongo.Execute", "find failed", err)
	}
	defer func() { _ = cursor.Close(execCtx) }()

	var docs []bson.M
	if err := cursor.All(execCtx, &docs); err != nil {
		return executor.Result{}, mediatorerrors.New(mediatorerrors.KindExecutorError, "mongo.Execute", "cursor decode failed", err)
	}

	results := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		results[i] = map[string]interface{}(doc)
	}

	e.log.Debug("executed row-set find", map[string]any{"rows": len(results), "duration_ms": time.Since(start).Milliseconds()})
	return executor.Result{Data: results, RowCount: len(results)}, nil
}

func containsCount(analysis analyzer.AnalysisResult) bool {
	for _, agg := range analysis.Aggregations {
		if agg == analyzer.AggCount {
			return true
		}
	}
	return false
}
