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
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// VectorStore is the Weaviate-backed vector index. Collections are
// Weaviate classes; the index's on-disk persistence directory is
// tracked separately so backups can copy it.
type VectorStore struct {
	client     *weaviate.Client
	persistDir string
}

// OpenVector connects to Weaviate at rawURL. An empty URL yields a
// VectorStore in lightweight mode: probes report degraded and all data
// operations fail fast with a ConnectivityError.
func OpenVector(rawURL, persistDir string) (*VectorStore, error) {
	store := &VectorStore{persistDir: persistDir}

	rawURL = strings.Trim(rawURL, "\"' ")
	if rawURL == "" {
		return store, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate URL %q", rawURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	store.client = client
	return store, nil
}

// Kind implements Store.
func (s *VectorStore) Kind() Kind { return KindVector }

// Probe asks Weaviate's readiness endpoint for a round-trip.
func (s *VectorStore) Probe(ctx context.Context) ProbeResult {
	if s.client == nil {
		return ProbeResult{State: StateDegraded, Message: "vector index not configured"}
	}
	return probeTimer(KindVector, func() error {
		ready, err := s.client.Misc().ReadyChecker().Do(ctx)
		if err != nil {
			return err
		}
		if !ready {
			return fmt.Errorf("weaviate reports not ready")
		}
		return nil
	})
}

// Close is a no-op; the Weaviate client holds no persistent connection.
func (s *VectorStore) Close() error { return nil }

// Available reports whether a Weaviate endpoint was configured.
func (s *VectorStore) Available() bool { return s.client != nil }

// PersistDir returns Weaviate's persistence volume as mounted locally,
// or "" when unknown. Backup archives copy this tree.
func (s *VectorStore) PersistDir() string { return s.persistDir }

// notConfigured is the failure every data operation returns in
// lightweight mode.
func (s *VectorStore) notConfigured() error {
	return &ConnectivityError{Store: KindVector, Err: fmt.Errorf("vector index not configured")}
}

// EnsureCollection creates the class if it does not already exist.
func (s *VectorStore) EnsureCollection(ctx context.Context, class *models.Class) error {
	if s.client == nil {
		return s.notConfigured()
	}
	exists, err := s.client.Schema().ClassExistenceChecker().
		WithClassName(class.Class).
		Do(ctx)
	if err != nil {
		return &ConnectivityError{Store: KindVector, Err: err}
	}
	if exists {
		return nil
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create collection %s: %w", class.Class, err)
	}
	return nil
}

// Upsert writes one object into a collection, keyed by id. Batch PUT
// semantics make repeated writes with the same id update in place.
func (s *VectorStore) Upsert(ctx context.Context, collection, id string, properties map[string]interface{}) error {
	if s.client == nil {
		return s.notConfigured()
	}
	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(&models.Object{
			Class:      collection,
			ID:         strfmt.UUID(id),
			Properties: properties,
		}).
		Do(ctx)
	if err != nil {
		return &ConnectivityError{Store: KindVector, Err: err}
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return fmt.Errorf("upsert into %s: %s", collection, item.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Count returns the number of objects in a collection via a GraphQL
// Aggregate query; no vectors are transferred.
func (s *VectorStore) Count(ctx context.Context, collection string) (int, error) {
	if s.client == nil {
		return 0, s.notConfigured()
	}
	agg, err := s.client.GraphQL().Aggregate().
		WithClassName(collection).
		WithFields(graphqlMetaCount()).
		Do(ctx)
	if err != nil {
		return 0, &ConnectivityError{Store: KindVector, Err: err}
	}
	if len(agg.Errors) > 0 {
		return 0, fmt.Errorf("aggregate %s: %s", collection, agg.Errors[0].Message)
	}
	return parseAggregateCount(agg.Data, collection)
}

// ListCollections returns the class names currently defined.
func (s *VectorStore) ListCollections(ctx context.Context) ([]*models.Class, error) {
	if s.client == nil {
		return nil, s.notConfigured()
	}
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, &ConnectivityError{Store: KindVector, Err: err}
	}
	return schema.Classes, nil
}

// DeleteCollection removes a class and everything in it.
func (s *VectorStore) DeleteCollection(ctx context.Context, name string) error {
	if s.client == nil {
		return s.notConfigured()
	}
	if err := s.client.Schema().ClassDeleter().WithClassName(name).Do(ctx); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}
