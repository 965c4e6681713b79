package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/procflow/internal/ir"
)

// MemoryRecords is an in-memory record store for every kind, keyed by
// origin like the SQLite store. Errors can be injected per operation.
//
// Thread-safety: All methods are safe for concurrent use.
type MemoryRecords struct {
	mu      sync.Mutex
	seq     Sequence
	records map[originKey]ir.GeneratedRecord

	// FindErr and UpsertErr, when set, are returned for the given kind.
	FindErr   map[ir.EntityKind]error
	UpsertErr map[ir.EntityKind]error

	upserts int
}

type originKey struct {
	nodeID, rootID string
}

// NewMemoryRecords creates an empty store.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		records:   make(map[originKey]ir.GeneratedRecord),
		FindErr:   make(map[ir.EntityKind]error),
		UpsertErr: make(map[ir.EntityKind]error),
	}
}

// Kind returns a view of the store limited to one entity kind.
// It satisfies materialize.RecordStore.
func (m *MemoryRecords) Kind(kind ir.EntityKind) *MemoryKindRecords {
	return &MemoryKindRecords{m: m, kind: kind}
}

// Upserts returns how many writes reached the store.
func (m *MemoryRecords) Upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// All returns every record in creation order.
func (m *MemoryRecords) All() []ir.GeneratedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ir.GeneratedRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// MemoryKindRecords is the per-kind view of a MemoryRecords.
type MemoryKindRecords struct {
	m    *MemoryRecords
	kind ir.EntityKind
}

// FindByOrigin implements materialize.RecordStore.
func (k *MemoryKindRecords) FindByOrigin(ctx context.Context, nodeID, rootEntityID string) (ir.GeneratedRecord, bool, error) {
	k.m.mu.Lock()
	defer k.m.mu.Unlock()
	if err := k.m.FindErr[k.kind]; err != nil {
		return ir.GeneratedRecord{}, false, err
	}
	rec, ok := k.m.records[originKey{nodeID, rootEntityID}]
	if !ok || rec.Kind != k.kind {
		return ir.GeneratedRecord{}, false, nil
	}
	return rec, true, nil
}

// Upsert implements materialize.RecordStore.
func (k *MemoryKindRecords) Upsert(ctx context.Context, rec ir.GeneratedRecord) (ir.GeneratedRecord, error) {
	k.m.mu.Lock()
	defer k.m.mu.Unlock()
	if err := k.m.UpsertErr[k.kind]; err != nil {
		return ir.GeneratedRecord{}, err
	}
	k.m.upserts++

	key := originKey{rec.OriginNodeID, rec.RootEntityID}
	if existing, ok := k.m.records[key]; ok {
		if existing.PayloadHash == rec.PayloadHash {
			return existing, nil
		}
		rec.Seq = existing.Seq
		rec.Revision = existing.Revision + 1
	} else {
		rec.Seq = k.m.seq.Next()
		rec.Revision = 1
	}
	k.m.records[key] = rec
	return rec, nil
}
