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

// Package ratelimit enforces the mediator's request-rate ceilings: a
// fast global burst limiter plus sliding windows at the global and
// per-user level.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// window is a deque of request timestamps within a fixed duration,
// implementing the sliding-window algorithm.
type window struct {
	mu       sync.Mutex
	duration time.Duration
	limit    int
	events   []time.Time
}

func newWindow(duration time.Duration, limit int) *window {
	return &window{duration: duration, limit: limit}
}

func (w *window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.duration)
	i := 0
	for ; i < len(w.events); i++ {
		if w.events[i].After(cutoff) {
			break
		}
	}
	w.events = w.events[i:]
}

func (w *window) check(now time.Time) Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)

	if len(w.events) >= w.limit {
		retryAfter := w.events[0].Add(w.duration).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}
	return Result{Allowed: true, Remaining: w.limit - len(w.events)}
}

func (w *window) record(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	w.events = append(w.events, now)
}

// Limiter combines a global token-bucket burst limiter (the fast, 1-second
// ceiling) with sliding windows for the 60-second global and per-user
// ceilings.
type Limiter struct {
	globalBurst *rate.Limiter

	globalWindow *window
	perUserLimit int
	perUserDur   time.Duration

	mu        sync.Mutex
	perUser   map[string]*window
}

// New builds a Limiter with rate1 requests/second globally (token bucket),
// rate60 requests/60s globally (sliding window), and rateUser requests/60s
// per user (sliding window).
func New(rate1 int, rate60 int, rateUser int) *Limiter {
	return &Limiter{
		globalBurst:  rate.NewLimiter(rate.Limit(rate1), rate1),
		globalWindow: newWindow(60*time.Second, rate60),
		perUserLimit: rateUser,
		perUserDur:   60 * time.Second,
		perUser:      make(map[string]*window),
	}
}

func (l *Limiter) userWindow(userID string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.perUser[userID]
	if !ok {
		w = newWindow(l.perUserDur, l.perUserLimit)
		l.perUser[userID] = w
	}
	return w
}

// Check reports whether a request for userID is currently allowed, without
// recording it or consuming a token-bucket slot.
func (l *Limiter) Check(userID string) Result {
	if l.globalBurst.Tokens() < 1 {
		return Result{Allowed: false, Remaining: 0}
	}
	now := time.Now()
	if res := l.globalWindow.check(now); !res.Allowed {
		return res
	}
	return l.userWindow(userID).check(now)
}

// CheckAndRecord atomically consumes a token-bucket slot and, on success,
// records the request against both sliding windows.
func (l *Limiter) CheckAndRecord(userID string) Result {
	now := time.Now()

	if !l.globalBurst.Allow() {
		return Result{Allowed: false, Remaining: 0}
	}
	if res := l.globalWindow.check(now); !res.Allowed {
		return res
	}
	uw := l.userWindow(userID)
	if res := uw.check(now); !res.Allowed {
		return res
	}

	l.globalWindow.record(now)
	uw.record(now)
	return Result{Allowed: true}
}
