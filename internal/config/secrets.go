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

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/veilquery/mediator/internal/obslog"
)

// SecretResolver resolves opaque secret identifiers (executor DSNs, the
// distributed-sync Redis URL, cloud archival credentials) into key/value
// maps. The mediator never logs a resolved value.
type SecretResolver interface {
	Resolve(ctx context.Context, id string) (map[string]string, error)
}

// EnvSecretResolver reads environment variables prefixed with the secret id, e.g.
// id="EXECUTOR_PG" looks for EXECUTOR_PG_HOST, EXECUTOR_PG_USERNAME, etc.
// This is the default resolver for local/OSS deployments.
type EnvSecretResolver struct {
	log *obslog.Logger
}

// NewEnvSecretResolver creates an environment-backed resolver.
func NewEnvSecretResolver() *EnvSecretResolver {
	return &EnvSecretResolver{log: obslog.New("config.secrets.env")}
}

var secretFields = []string{
	"USERNAME", "PASSWORD", "HOST", "PORT", "DATABASE", "DSN", "URL", "TOKEN",
}

// Resolve reads id_FIELD environment variables for each known field.
func (r *EnvSecretResolver) Resolve(_ context.Context, id string) (map[string]string, error) {
	values := make(map[string]string)
	for _, field := range secretFields {
		if v := os.Getenv(id + "_" + field); v != "" {
			values[toLowerKey(field)] = v
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no secret values found for %q", id)
	}
	r.log.Info("resolved secret from environment", map[string]any{"id": id, "fields": len(values)})
	return values, nil
}

func toLowerKey(field string) string {
	b := []byte(field)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// AWSSecretResolver resolves secret ids as AWS Secrets Manager ARNs/names,
// caching successful lookups for a configurable TTL.
type AWSSecretResolver struct {
	client *secretsmanager.Client
	cache  map[string]awsCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	log    *obslog.Logger
}

type awsCacheEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// NewAWSSecretResolver builds a resolver using the AWS default credential
// chain (environment, shared config, or instance role).
func NewAWSSecretResolver(ctx context.Context, region string, cacheTTL time.Duration) (*AWSSecretResolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AWSSecretResolver{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]awsCacheEntry),
		ttl:    cacheTTL,
		log:    obslog.New("config.secrets.aws"),
	}, nil
}

// Resolve fetches the secret's JSON string value (or a plain string,
// stored under the "value" key) from AWS Secrets Manager.
func (r *AWSSecretResolver) Resolve(ctx context.Context, id string) (map[string]string, error) {
	r.mu.RLock()
	entry, ok := r.cache[id]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.values, nil
	}

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", maskSecretID(id), err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskSecretID(id))
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		values = map[string]string{"value": *out.SecretString}
	}

	r.mu.Lock()
	r.cache[id] = awsCacheEntry{values: values, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	r.log.Info("resolved secret from Secrets Manager", map[string]any{"id": maskSecretID(id)})
	return values, nil
}

func maskSecretID(id string) string {
	if len(id) <= 8 {
		return "***"
	}
	return "..." + id[len(id)-8:]
}
