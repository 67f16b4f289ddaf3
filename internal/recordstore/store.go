// Package recordstore persists one JSON document per record, grouped into
// named collections. Workflow records, webhook registrations and
// failed-delivery records all go through this interface so the backing
// medium (flat JSON files, embedded SQLite, Postgres) can be swapped without
// touching the components above it.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when no document exists under the key.
var ErrNotFound = errors.New("recordstore: record not found")

// Store is the durable record store contract.
type Store interface {
	// Put marshals value to JSON and writes it under (collection, key),
	// replacing any existing document.
	Put(ctx context.Context, collection, key string, value any) error

	// Get unmarshals the document under (collection, key) into out.
	// Returns ErrNotFound when absent.
	Get(ctx context.Context, collection, key string, out any) error

	// Delete removes the document. Deleting an absent key is not an error.
	Delete(ctx context.Context, collection, key string) error

	// List returns every document in the collection keyed by record key.
	List(ctx context.Context, collection string) (map[string]json.RawMessage, error)

	Close() error
}

// Collection names shared by the components.
const (
	CollectionWorkflowsActive  = "workflows_active"
	CollectionWorkflowsHistory = "workflows_history"
	CollectionPublishStates    = "publish_states"
	CollectionWebhooks         = "webhooks"
	CollectionFailedDeliveries = "failed_deliveries"
)
