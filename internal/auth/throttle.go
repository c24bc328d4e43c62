// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package auth

import (
	"sync"
	"time"
)

// Login throttling defaults.
const (
	// LockoutDuration is the time a username is locked out after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that triggers a lockout.
	LockoutThreshold = 7
)

// ThrottleResult contains the result of a throttle check.
type ThrottleResult struct {
	// IsLockedOut indicates the username is temporarily locked.
	IsLockedOut bool

	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

type attemptState struct {
	failures    int
	lastFailure time.Time
	lockedUntil *time.Time
}

// stale reports whether the state no longer affects any login: its lockout
// has ended, or its failures are older than window.
func (s *attemptState) stale(now time.Time, window time.Duration) bool {
	if s.lockedUntil != nil {
		return !s.lockedUntil.After(now)
	}
	return !s.lastFailure.Add(window).After(now)
}

// LoginThrottle tracks consecutive failed logins per username. Unknown
// usernames are tracked the same way as real ones. Failures older than the
// lockout duration are forgotten, and stale entries are swept at most once
// per duration so memory stays bounded by recent traffic.
type LoginThrottle struct {
	threshold int
	duration  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	attempts  map[string]*attemptState
	nextSweep time.Time
}

// NewLoginThrottle creates a throttle that locks a username for duration
// after threshold consecutive failures. A non-positive threshold disables
// locking and NewLoginThrottle returns nil.
func NewLoginThrottle(threshold int, duration time.Duration) *LoginThrottle {
	if threshold <= 0 {
		return nil
	}
	if duration <= 0 {
		duration = LockoutDuration
	}
	return &LoginThrottle{
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
		attempts:  make(map[string]*attemptState),
	}
}

// WithClock replaces the time source.
func (t *LoginThrottle) WithClock(now func() time.Time) *LoginThrottle {
	t.now = now
	return t
}

// Check reports whether username is currently locked out.
func (t *LoginThrottle) Check(username string) ThrottleResult {
	if t == nil {
		return ThrottleResult{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweepLocked(now)

	state, ok := t.attempts[username]
	if !ok {
		return ThrottleResult{}
	}
	if IsLockedOut(state.lockedUntil, now) {
		return ThrottleResult{IsLockedOut: true, LockoutRemaining: state.lockedUntil.Sub(now)}
	}
	if state.stale(now, t.duration) {
		// Lockout expired or failures aged out; start counting again.
		delete(t.attempts, username)
	}
	return ThrottleResult{}
}

// RecordFailure counts a failed attempt and returns the resulting state.
func (t *LoginThrottle) RecordFailure(username string) ThrottleResult {
	if t == nil {
		return ThrottleResult{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweepLocked(now)

	state, ok := t.attempts[username]
	if !ok || state.stale(now, t.duration) {
		state = &attemptState{}
		t.attempts[username] = state
	}
	state.failures++
	state.lastFailure = now
	state.lockedUntil = ComputeLockoutTime(state.failures, t.threshold, now.Add(t.duration))
	if state.lockedUntil != nil {
		return ThrottleResult{IsLockedOut: true, LockoutRemaining: t.duration}
	}
	return ThrottleResult{}
}

// RecordSuccess clears the failure count for username.
func (t *LoginThrottle) RecordSuccess(username string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.attempts, username)
	t.mu.Unlock()
}

// Len returns the number of usernames currently tracked.
func (t *LoginThrottle) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

// sweepLocked drops stale entries once per duration. t.mu must be held.
func (t *LoginThrottle) sweepLocked(now time.Time) {
	if now.Before(t.nextSweep) {
		return
	}
	for username, state := range t.attempts {
		if state.stale(now, t.duration) {
			delete(t.attempts, username)
		}
	}
	t.nextSweep = now.Add(t.duration)
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutTime returns until if failures reached threshold, otherwise nil.
func ComputeLockoutTime(failures, threshold int, until time.Time) *time.Time {
	if failures < threshold {
		return nil
	}
	return &until
}
