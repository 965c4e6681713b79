package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/procflow/internal/ir"
)

const recordColumns = `seq, id, kind, origin_node_id, root_entity_id, root_entity_kind, payload, payload_hash, revision`

// KindStore is the record store of one generated entity kind.
// It satisfies materialize.RecordStore.
type KindStore struct {
	s    *Store
	kind ir.EntityKind
}

// Records returns the record store for kind.
func (s *Store) Records(kind ir.EntityKind) *KindStore {
	return &KindStore{s: s, kind: kind}
}

// Kind returns the entity kind this store holds.
func (k *KindStore) Kind() ir.EntityKind {
	return k.kind
}

// FindByOrigin returns the record generated by nodeID for rootEntityID.
// The boolean is false (with a nil error) when no such record exists.
func (k *KindStore) FindByOrigin(ctx context.Context, nodeID, rootEntityID string) (ir.GeneratedRecord, bool, error) {
	row := k.s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM generated_records
		WHERE origin_node_id = ? AND root_entity_id = ? AND kind = ?
	`, nodeID, rootEntityID, string(k.kind))

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return ir.GeneratedRecord{}, false, nil
	}
	if err != nil {
		return ir.GeneratedRecord{}, false, fmt.Errorf("find %s record: %w", k.kind, classify(err))
	}
	return rec, true, nil
}

// Upsert creates or updates the record for rec's origin key and returns the
// stored row (with store-assigned Seq and Revision).
//
// Uses ON CONFLICT(origin_node_id, root_entity_id) DO UPDATE, so concurrent
// runs for the same root converge on one row (last write wins). When the
// payload hash is unchanged the row is left untouched.
func (k *KindStore) Upsert(ctx context.Context, rec ir.GeneratedRecord) (ir.GeneratedRecord, error) {
	if rec.Kind != k.kind {
		return ir.GeneratedRecord{}, fmt.Errorf("upsert %s record: %w: record kind is %s", k.kind, ErrConstraint, rec.Kind)
	}

	payloadJSON, err := marshalObject(rec.Payload)
	if err != nil {
		return ir.GeneratedRecord{}, fmt.Errorf("upsert %s record: %w", k.kind, err)
	}
	if rec.PayloadHash == "" {
		rec.PayloadHash, err = ir.PayloadHash(rec.Payload)
		if err != nil {
			return ir.GeneratedRecord{}, fmt.Errorf("upsert %s record: %w", k.kind, err)
		}
	}

	tx, err := k.s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.GeneratedRecord{}, fmt.Errorf("upsert %s record: begin tx: %w", k.kind, classify(err))
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO generated_records
		(id, kind, origin_node_id, root_entity_id, root_entity_kind, payload, payload_hash, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(origin_node_id, root_entity_id) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			payload_hash = excluded.payload_hash,
			revision = generated_records.revision + 1
		WHERE generated_records.payload_hash != excluded.payload_hash
	`,
		rec.ID,
		string(rec.Kind),
		rec.OriginNodeID,
		rec.RootEntityID,
		string(rec.RootEntityKind),
		payloadJSON,
		rec.PayloadHash,
	)
	if err != nil {
		return ir.GeneratedRecord{}, fmt.Errorf("upsert %s record: %w", k.kind, classify(err))
	}

	stored, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM generated_records
		WHERE origin_node_id = ? AND root_entity_id = ?
	`, rec.OriginNodeID, rec.RootEntityID))
	if err != nil {
		return ir.GeneratedRecord{}, fmt.Errorf("upsert %s record: read back: %w", k.kind, classify(err))
	}

	if err := tx.Commit(); err != nil {
		return ir.GeneratedRecord{}, fmt.Errorf("upsert %s record: commit: %w", k.kind, classify(err))
	}
	return stored, nil
}

// ReadRecord retrieves a single record by id.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadRecord(ctx context.Context, id string) (ir.GeneratedRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM generated_records
		WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return ir.GeneratedRecord{}, fmt.Errorf("read record %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.GeneratedRecord{}, fmt.Errorf("read record %q: %w", id, classify(err))
	}
	return rec, nil
}

// ListRecordsByRoot returns every record generated for a root entity, in
// creation order. Returns an empty slice (not nil) when there are none.
func (s *Store) ListRecordsByRoot(ctx context.Context, rootEntityID string) ([]ir.GeneratedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM generated_records
		WHERE root_entity_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, rootEntityID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", classify(err))
	}
	defer rows.Close()

	records := []ir.GeneratedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: iterate: %w", classify(err))
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ir.GeneratedRecord, error) {
	var (
		rec                     ir.GeneratedRecord
		kind, rootKind, payload string
	)
	err := row.Scan(&rec.Seq, &rec.ID, &kind, &rec.OriginNodeID, &rec.RootEntityID,
		&rootKind, &payload, &rec.PayloadHash, &rec.Revision)
	if err != nil {
		return rec, err
	}
	rec.Kind = ir.EntityKind(kind)
	rec.RootEntityKind = ir.EntityKind(rootKind)
	rec.Payload, err = unmarshalObject(payload)
	if err != nil {
		return rec, err
	}
	return rec, nil
}
