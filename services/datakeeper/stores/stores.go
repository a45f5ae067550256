// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stores defines the four datakeeper stores behind one small
// polymorphic interface, plus a uniform health probe across them.
//
// Store kinds:
//
//   - System: BadgerDB, read-write application/audit state.
//   - Analytical: SQLite working copy, opened read-only, optional.
//   - Vector: Weaviate, embeddings grouped into named collections.
//   - Cache: Redis-protocol endpoint, ephemeral, never backed up.
//
// Each implementation is selected at construction time; nothing in the
// core inspects a store's concrete type at runtime.
package stores

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind identifies one of the four datakeeper stores.
type Kind string

const (
	KindSystem     Kind = "system"
	KindAnalytical Kind = "analytical"
	KindVector     Kind = "vector"
	KindCache      Kind = "cache"
)

// ProbeState classifies the result of a health probe.
type ProbeState string

const (
	// StateHealthy means a round-trip completed within the timeout.
	StateHealthy ProbeState = "healthy"

	// StateDegraded means the store answered but is not fully usable,
	// or is intentionally not configured.
	StateDegraded ProbeState = "degraded"

	// StateUnreachable means the round-trip failed or timed out.
	StateUnreachable ProbeState = "unreachable"
)

// ProbeResult is the outcome of one store health probe.
type ProbeResult struct {
	State   ProbeState    `json:"state"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// Store is the minimal contract every datakeeper store satisfies.
// Probe performs a trivial round-trip within the deadline carried by ctx;
// it has no side effects beyond the probe operation itself.
type Store interface {
	Kind() Kind
	Probe(ctx context.Context) ProbeResult
	Close() error
}

// ConnectivityError marks a store round-trip failure. Connectivity
// errors are retryable; callers decide whether they are fatal.
type ConnectivityError struct {
	Store Kind
	Err   error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s store unreachable: %v", e.Store, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is (or wraps) a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// probeTimer wraps a probe body with latency measurement and turns an
// error into an unreachable result.
func probeTimer(kind Kind, fn func() error) ProbeResult {
	start := time.Now()
	if err := fn(); err != nil {
		return ProbeResult{
			State:   StateUnreachable,
			Message: (&ConnectivityError{Store: kind, Err: err}).Error(),
			Latency: time.Since(start),
		}
	}
	return ProbeResult{State: StateHealthy, Latency: time.Since(start)}
}
