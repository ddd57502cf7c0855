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

// Package mediatorerrors defines the error taxonomy shared across the
// mediator pipeline (spec §7). Callers should use errors.Is/errors.As
// against the Kind sentinels rather than string-matching messages.
package mediatorerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for response-mapping and audit purposes.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindPolicyRejection  Kind = "policy_rejection"
	KindBudgetExhaustion Kind = "budget_exhaustion"
	KindRateLimit        Kind = "rate_limit"
	KindLockTimeout      Kind = "lock_timeout"
	KindExecutorError    Kind = "executor_error"
	KindInternal         Kind = "internal"
)

// Sentinels for errors.Is comparisons.
var (
	ErrValidation       = errors.New("validation error")
	ErrPolicyRejected   = errors.New("policy rejected query")
	ErrBudgetExhausted  = errors.New("privacy budget exhausted")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrLockTimeout      = errors.New("distributed lock acquisition timed out")
	ErrExecutorFailed   = errors.New("executor failed")
	ErrInternal         = errors.New("internal error")
)

// MediatorError is a typed error carrying a Kind, an operation name, and an
// optional cause, mirroring the connector-error pattern used elsewhere in
// this codebase's external-facing glue.
type MediatorError struct {
	Kind      Kind
	Operation string
	Message   string
	Cause     error
}

func (e *MediatorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *MediatorError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error's Kind corresponds to one of the package
// sentinels, so that errors.Is(err, mediatorerrors.ErrBudgetExhausted) works
// against a *MediatorError as well as the bare sentinel.
func (e *MediatorError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrPolicyRejected:
		return e.Kind == KindPolicyRejection
	case ErrBudgetExhausted:
		return e.Kind == KindBudgetExhaustion
	case ErrRateLimited:
		return e.Kind == KindRateLimit
	case ErrLockTimeout:
		return e.Kind == KindLockTimeout
	case ErrExecutorFailed:
		return e.Kind == KindExecutorError
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

// New builds a MediatorError.
func New(kind Kind, operation, message string, cause error) *MediatorError {
	return &MediatorError{Kind: kind, Operation: operation, Message: message, Cause: cause}
}
