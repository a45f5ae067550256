// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stores

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// CacheStore is the ephemeral cache endpoint. The datakeeper only ever
// health-checks it: cache contents are never backed up or restored, and
// a dead cache never blocks bring-up.
type CacheStore struct {
	addr string
}

// NewCache wraps a Redis-protocol endpoint address (host:port). An
// empty address yields a store whose probe reports degraded.
func NewCache(addr string) *CacheStore {
	return &CacheStore{addr: addr}
}

// Kind implements Store.
func (s *CacheStore) Kind() Kind { return KindCache }

// Probe sends a single inline PING and expects +PONG. The RESP inline
// command form keeps this dependency-free: one write, one read line.
func (s *CacheStore) Probe(ctx context.Context) ProbeResult {
	if s.addr == "" {
		return ProbeResult{State: StateDegraded, Message: "cache not configured"}
	}
	return probeTimer(KindCache, func() error {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(5 * time.Second)
		}

		dialer := net.Dialer{Deadline: deadline}
		conn, err := dialer.DialContext(ctx, "tcp", s.addr)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}

		if _, err := conn.Write([]byte("PING\r\n")); err != nil {
			return err
		}
		reply, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return err
		}
		if !strings.HasPrefix(reply, "+PONG") {
			return fmt.Errorf("unexpected cache reply %q", strings.TrimSpace(reply))
		}
		return nil
	})
}

// Close is a no-op; probes open and close their own connection.
func (s *CacheStore) Close() error { return nil }
