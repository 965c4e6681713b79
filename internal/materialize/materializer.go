// Package materialize creates (or updates in place) the business records
// that satisfied process nodes generate.
//
// Records are keyed by their origin (node id, root entity id): the record id
// is derived from that key, and a second run for the same root finds and
// updates the existing record instead of creating a duplicate.
package materialize

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/procflow/internal/ir"
)

// RecordStore persists the records of one entity kind.
type RecordStore interface {
	// FindByOrigin returns the record generated by nodeID for rootEntityID.
	FindByOrigin(ctx context.Context, nodeID, rootEntityID string) (ir.GeneratedRecord, bool, error)

	// Upsert creates or replaces the record with rec's origin key and
	// returns the stored record.
	Upsert(ctx context.Context, rec ir.GeneratedRecord) (ir.GeneratedRecord, error)
}

// Materializer builds record payloads from node templates and writes them
// through the per-kind record stores.
type Materializer struct {
	stores map[ir.EntityKind]RecordStore
}

// New creates a Materializer over the given per-kind stores.
func New(stores map[ir.EntityKind]RecordStore) *Materializer {
	m := &Materializer{stores: make(map[ir.EntityKind]RecordStore, len(stores))}
	for kind, s := range stores {
		m.stores[kind] = s
	}
	return m
}

// StoreSource is anything that hands out a record store per kind, such as
// *store.Store through a small adapter.
type StoreSource func(kind ir.EntityKind) RecordStore

// NewFromSource creates a Materializer with a store for every kind that
// has a payload builder.
func NewFromSource(source StoreSource) *Materializer {
	stores := make(map[ir.EntityKind]RecordStore, len(builders))
	for kind := range builders {
		stores[kind] = source(kind)
	}
	return New(stores)
}

// Materialize creates or updates the record node generates for root.
//
// parent is the entity whose fields satisfied the node's trigger (the root
// itself for root nodes). The returned error, if any, is always a
// *MaterializationError.
func (m *Materializer) Materialize(ctx context.Context, node ir.ProcessNode, parent, root ir.EntitySnapshot) (ir.GeneratedRecord, error) {
	build, ok := builders[node.ProducedKind]
	if !ok {
		return ir.GeneratedRecord{}, &MaterializationError{
			Kind:       Rejected,
			NodeID:     node.ID,
			EntityKind: node.ProducedKind,
			Reason:     "kind cannot be generated",
		}
	}
	recs, ok := m.stores[node.ProducedKind]
	if !ok || recs == nil {
		return ir.GeneratedRecord{}, &MaterializationError{
			Kind:       Unavailable,
			NodeID:     node.ID,
			EntityKind: node.ProducedKind,
			Reason:     "no record store configured",
		}
	}

	if err := ctx.Err(); err != nil {
		return ir.GeneratedRecord{}, storeFailure(node, "lookup", err)
	}

	existing, found, err := recs.FindByOrigin(ctx, node.ID, root.ID)
	if err != nil {
		return ir.GeneratedRecord{}, storeFailure(node, "lookup", err)
	}

	payload, err := build(buildInput{node: node, parent: parent, root: root})
	if err != nil {
		var r *rejection
		if errors.As(err, &r) {
			return ir.GeneratedRecord{}, &MaterializationError{
				Kind:       Rejected,
				NodeID:     node.ID,
				EntityKind: node.ProducedKind,
				Reason:     r.reason,
			}
		}
		return ir.GeneratedRecord{}, &MaterializationError{
			Kind:       Rejected,
			NodeID:     node.ID,
			EntityKind: node.ProducedKind,
			Reason:     "payload computation failed",
			Err:        err,
		}
	}
	payload["origem"] = ir.IRObject{
		"noId":   ir.IRString(node.ID),
		"raizId": ir.IRString(root.ID),
	}

	hash, err := ir.PayloadHash(payload)
	if err != nil {
		return ir.GeneratedRecord{}, &MaterializationError{
			Kind:       Rejected,
			NodeID:     node.ID,
			EntityKind: node.ProducedKind,
			Reason:     "payload cannot be hashed",
			Err:        err,
		}
	}

	if found && existing.PayloadHash == hash {
		slog.Debug("record unchanged",
			"node_id", node.ID,
			"record_id", existing.ID,
			"kind", string(node.ProducedKind))
		return existing, nil
	}

	rec := ir.GeneratedRecord{
		ID:             ir.RecordID(node.ID, root.ID),
		Kind:           node.ProducedKind,
		OriginNodeID:   node.ID,
		RootEntityID:   root.ID,
		RootEntityKind: root.Kind,
		Payload:        payload,
		PayloadHash:    hash,
	}
	if found {
		rec.ID = existing.ID
	}

	stored, err := recs.Upsert(ctx, rec)
	if err != nil {
		return ir.GeneratedRecord{}, storeFailure(node, "upsert", err)
	}

	slog.Debug("record materialized",
		"node_id", node.ID,
		"record_id", stored.ID,
		"kind", string(node.ProducedKind),
		"revision", stored.Revision)
	return stored, nil
}
