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

// Package mediatord is the composition root for the privacy-mediator
// service: it wires configuration, policy, budget, audit, the query
// driver, and the chosen executor backend into one HTTP server.
//
// Environment variables:
//
//	PORT - HTTP listen port (default: 8080)
//	CONFIG_PATH - policy document path (default: config/mediator.yaml)
//	JWT_SECRET - HMAC secret used to validate caller bearer tokens
//	EXECUTOR_BACKEND - postgres | mysql | mongo (default: postgres)
//	DATABASE_URL / MONGO_URL - executor backend DSN
//	DEFAULT_EPSILON_BUDGET - per-user epsilon ceiling (default: 10.0)
//	REDIS_URL - enables cross-instance budget synchronization when set
//	COORDINATOR_ENABLED - "true" registers this instance and runs health checks
//	CASSANDRA_HOSTS - enables audit archival of truncated entries when set
//	EXPORT_PROVIDER - s3 | gcs | azureblob; enables durable audit export uploads when set
//	EXPORT_BUCKET - destination bucket/container for audit exports (required if EXPORT_PROVIDER is set)
//	SECRET_BACKEND - env (default) | aws; resolves executor/redis DSNs through a SecretResolver
package mediatord

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veilquery/mediator/connectors/azureblob"
	"github.com/veilquery/mediator/connectors/base"
	"github.com/veilquery/mediator/connectors/cassandra"
	"github.com/veilquery/mediator/connectors/gcs"
	"github.com/veilquery/mediator/connectors/s3"
	"github.com/veilquery/mediator/internal/audit"
	"github.com/veilquery/mediator/internal/budget"
	"github.com/veilquery/mediator/internal/budgetsync"
	"github.com/veilquery/mediator/internal/config"
	"github.com/veilquery/mediator/internal/coordinator"
	"github.com/veilquery/mediator/internal/driver"
	"github.com/veilquery/mediator/internal/executor"
	"github.com/veilquery/mediator/internal/executor/mongo"
	"github.com/veilquery/mediator/internal/executor/mysql"
	"github.com/veilquery/mediator/internal/executor/postgres"
	"github.com/veilquery/mediator/internal/httpapi"
	"github.com/veilquery/mediator/internal/monitor"
	"github.com/veilquery/mediator/internal/policy"
	"github.com/veilquery/mediator/internal/ratelimit"
	"github.com/veilquery/mediator/internal/sensitivity"
)

// Run builds every collaborator, starts the HTTP server, and blocks until
// SIGINT/SIGTERM, at which point the HTTP server is shut down, then the
// budget sync loop is stopped, and the registry health-check loop is
// stopped last as Run returns.
func Run() {
	ctx := context.Background()

	cfgMgr := config.NewManager(getEnv("CONFIG_PATH", "config/mediator.yaml"))
	policyEng := policy.NewEngine(cfgMgr)
	sensAnalyzer := sensitivity.NewAnalyzer()

	defaultBudget, _ := strconv.ParseFloat(getEnv("DEFAULT_EPSILON_BUDGET", "10.0"), 64)
	budgetMgr := budget.NewManager(defaultBudget, nil, budget.ResetSchedule{Frequency: budget.Daily})

	secrets := secretResolver(ctx)

	var budgetCoord *budgetsync.Coordinator
	if os.Getenv("REDIS_URL") != "" {
		budgetCoord = mustBudgetSync(ctx, resolveDSN(ctx, secrets, "REDIS", "REDIS_URL"))
		budgetCoord.Start()
	}

	var archival audit.ArchivalSink
	if hosts := os.Getenv("CASSANDRA_HOSTS"); hosts != "" {
		archival = mustCassandraArchival(ctx, hosts)
	}
	auditLog := audit.NewLogger(100000, archival)

	mon := monitor.New(1000.0, prometheus.DefaultRegisterer)
	limiter := ratelimit.New(10000, 600000, 120)

	exec := mustExecutor(ctx, secrets)

	var registry *coordinator.Registry
	if os.Getenv("COORDINATOR_ENABLED") == "true" {
		registry = coordinator.NewRegistry(30*time.Second, 3, 10*time.Second)
		registry.Start()
		instanceID := getEnv("HOSTNAME", uuid.NewString())
		registry.Register(instanceID, getEnv("ADVERTISE_ADDR", "localhost:"+getEnv("PORT", "8080")), 1)
		defer registry.Stop()
	}

	driverCfg := driver.Config{BudgetEnabled: true, RefundOnExecutorError: true}
	d := driver.New(cfgMgr, policyEng, budgetMgr, sensAnalyzer, auditLog, exec, mon, driverCfg)

	var exportSink audit.ExportSink
	if provider := os.Getenv("EXPORT_PROVIDER"); provider != "" {
		exportSink = mustExportSink(ctx, provider)
	}

	srv := httpapi.NewServer(d, budgetMgr, auditLog, limiter, httpapi.Config{
		JWTSecret:  []byte(os.Getenv("JWT_SECRET")),
		ExportSink: exportSink,
	})

	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("mediatord listening on port %s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down mediatord")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	if budgetCoord != nil {
		budgetCoord.Stop()
	}
}

func mustExecutor(ctx context.Context, secrets config.SecretResolver) executor.Executor {
	backend := getEnv("EXECUTOR_BACKEND", "postgres")
	timeout := 10 * time.Second
	switch backend {
	case "mysql":
		exec, err := mysql.New(resolveDSN(ctx, secrets, "EXECUTOR_MYSQL", "DATABASE_URL"), timeout)
		if err != nil {
			log.Fatalf("failed to connect mysql executor: %v", err)
		}
		return exec
	case "mongo":
		exec, err := mongo.New(ctx, resolveDSN(ctx, secrets, "EXECUTOR_MONGO", "MONGO_URL"), getEnv("MONGO_DATABASE", "mediator"), timeout)
		if err != nil {
			log.Fatalf("failed to connect mongo executor: %v", err)
		}
		return exec
	default:
		exec, err := postgres.New(resolveDSN(ctx, secrets, "EXECUTOR_PG", "DATABASE_URL"), timeout)
		if err != nil {
			log.Fatalf("failed to connect postgres executor: %v", err)
		}
		return exec
	}
}

// secretResolver picks the configured config.SecretResolver backend.
// The environment resolver is the default for local/OSS deployments; AWS
// Secrets Manager is opt-in via SECRET_BACKEND=aws.
func secretResolver(ctx context.Context) config.SecretResolver {
	if getEnv("SECRET_BACKEND", "env") != "aws" {
		return config.NewEnvSecretResolver()
	}
	ttl, err := time.ParseDuration(getEnv("SECRET_CACHE_TTL", "5m"))
	if err != nil {
		ttl = 5 * time.Minute
	}
	r, err := config.NewAWSSecretResolver(ctx, os.Getenv("AWS_REGION"), ttl)
	if err != nil {
		log.Fatalf("failed to build AWS secret resolver: %v", err)
	}
	return r
}

// resolveDSN looks up id through secrets and assembles a connection string
// from its fields; it falls back to envKey verbatim when the resolver has
// nothing under id, which is the common path for EnvSecretResolver.
func resolveDSN(ctx context.Context, secrets config.SecretResolver, id, envKey string) string {
	values, err := secrets.Resolve(ctx, id)
	if err != nil {
		return mustEnv(envKey)
	}
	if dsn, ok := values["dsn"]; ok {
		return dsn
	}
	if url, ok := values["url"]; ok {
		return url
	}
	return fmt.Sprintf("%s:%s@%s:%s/%s", values["username"], values["password"], values["host"], values["port"], values["database"])
}

const budgetSyncChannel = "mediator:budget:sync"

// mustBudgetSync wires a Coordinator whose pending operations are published
// to a Redis pub/sub channel every sync tick, and starts a subscriber
// goroutine that folds operations published by other instances back into
// this instance's Coordinator view (spec §4.7 cross-instance budget sync).
func mustBudgetSync(ctx context.Context, redisURL string) *budgetsync.Coordinator {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	instanceID := getEnv("HOSTNAME", uuid.NewString())
	locker := budgetsync.NewLocker(client, instanceID, 5*time.Second)

	coord := budgetsync.NewCoordinator(instanceID, locker, 3*time.Second, 2*time.Second, func(ops []budgetsync.SyncOperation) {
		for _, op := range ops {
			data, err := json.Marshal(op)
			if err != nil {
				continue
			}
			if err := client.Publish(ctx, budgetSyncChannel, data).Err(); err != nil {
				log.Printf("failed to publish budget sync operation: %v", err)
			}
		}
	})

	go subscribeBudgetSync(ctx, client, coord)
	return coord
}

func subscribeBudgetSync(ctx context.Context, client *redis.Client, coord *budgetsync.Coordinator) {
	sub := client.Subscribe(ctx, budgetSyncChannel)
	defer sub.Close()
	for msg := range sub.Channel() {
		var op budgetsync.SyncOperation
		if err := json.Unmarshal([]byte(msg.Payload), &op); err != nil {
			continue
		}
		coord.ApplyRemoteOperation(op)
	}
}

// mustExportSink connects the cloud storage connector named by provider
// (s3 | gcs | azureblob) and wraps it as an audit.ExportSink, so audit
// exports land in durable object storage in addition to the response body
// (spec §4.7).
func mustExportSink(ctx context.Context, provider string) audit.ExportSink {
	bucket := mustEnv("EXPORT_BUCKET")
	cfg := &base.ConnectorConfig{
		Name:          "audit-export",
		Type:          provider,
		ConnectionURL: os.Getenv("EXPORT_ENDPOINT"),
		Credentials: map[string]string{
			"access_key_id":     os.Getenv("EXPORT_ACCESS_KEY_ID"),
			"secret_access_key": os.Getenv("EXPORT_SECRET_ACCESS_KEY"),
			"account_name":      os.Getenv("EXPORT_AZURE_ACCOUNT"),
			"account_key":       os.Getenv("EXPORT_AZURE_KEY"),
		},
		Options: map[string]interface{}{
			"default_bucket": bucket,
			"region":         getEnv("EXPORT_REGION", "us-east-1"),
			"project_id":     os.Getenv("EXPORT_GCP_PROJECT"),
		},
		Timeout: 10 * time.Second,
	}

	var conn base.Connector
	switch provider {
	case "gcs":
		conn = gcs.NewGCSConnector()
	case "azureblob":
		conn = azureblob.NewAzureBlobConnector()
	default:
		conn = s3.NewS3Connector()
	}
	if err := conn.Connect(ctx, cfg); err != nil {
		log.Fatalf("failed to connect %s export sink: %v", provider, err)
	}
	return audit.NewConnectorExportSink(conn, bucket)
}

func mustCassandraArchival(ctx context.Context, hosts string) audit.ArchivalSink {
	conn := cassandra.NewCassandraConnector()
	err := conn.Connect(ctx, &base.ConnectorConfig{
		Name:          "audit-archival",
		Type:          "cassandra",
		ConnectionURL: hosts,
		Timeout:       10 * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to connect cassandra archival sink: %v", err)
	}
	return audit.NewCassandraArchivalSink(conn, getEnv("CASSANDRA_AUDIT_TABLE", "audit_entries"))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s is required", key)
	}
	return v
}
