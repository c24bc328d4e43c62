// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// HashObserver receives the duration of each hashing operation.
// op is "hash" or "verify".
type HashObserver func(op string, d time.Duration)

// HashPool bounds how many password hashing operations run at once.
// Each argon2id computation allocates 64 MB. Work runs on the calling
// goroutine; the pool only gates entry.
type HashPool struct {
	hasher   PasswordHasher
	sem      *semaphore.Weighted
	observer HashObserver
}

// NewHashPool creates a pool allowing at most concurrency simultaneous
// operations. A non-positive concurrency defaults to runtime.NumCPU().
func NewHashPool(hasher PasswordHasher, concurrency int) *HashPool {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &HashPool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
}

// WithObserver sets a callback invoked after every operation.
func (p *HashPool) WithObserver(o HashObserver) *HashPool {
	p.observer = o
	return p
}

// Hasher returns the wrapped PasswordHasher.
func (p *HashPool) Hasher() PasswordHasher {
	return p.hasher
}

// Hash waits for a slot and hashes password.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.acquire(ctx, "hash"); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	start := time.Now()
	digest, err := p.hasher.Hash(password)
	p.observe("hash", start)
	return digest, err
}

// Verify waits for a slot and checks password against digest. The returned
// error is non-nil only when ctx ends before a slot frees up.
func (p *HashPool) Verify(ctx context.Context, password, digest string) (bool, error) {
	if err := p.acquire(ctx, "verify"); err != nil {
		return false, err
	}
	defer p.sem.Release(1)

	start := time.Now()
	ok := p.hasher.Verify(password, digest)
	p.observe("verify", start)
	return ok, nil
}

func (p *HashPool) acquire(ctx context.Context, op string) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return oops.Code(CodeHashingFailed).
			With("operation", op).
			Wrapf(err, "waiting for hashing slot")
	}
	return nil
}

func (p *HashPool) observe(op string, start time.Time) {
	if p.observer != nil {
		p.observer(op, time.Since(start))
	}
}
