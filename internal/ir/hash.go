package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRecord  = "procflow/record/v1"
	DomainPayload = "procflow/payload/v1"
	DomainGraph   = "procflow/graph/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordID computes the id of the record generated by a node for a root entity.
// It depends only on the origin key (nodeID, rootEntityID), so every run and
// every concurrent request addresses the same record.
func RecordID(nodeID, rootEntityID string) string {
	obj := IRObject{
		"node_id":        IRString(nodeID),
		"root_entity_id": IRString(rootEntityID),
	}
	// Strings only: canonical marshaling cannot fail here.
	canonical, _ := MarshalCanonical(obj)
	return hashWithDomain(DomainRecord, canonical)
}

// PayloadHash hashes a record payload. Numerically equal payloads hash equally.
func PayloadHash(payload IRObject) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("PayloadHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}

// GraphHash identifies a graph version. The canvas position is excluded:
// moving a node on the canvas does not change what the graph does.
func GraphHash(g *ProcessGraph) (string, error) {
	nodes := make(IRArray, len(g.Nodes))
	for i, n := range g.Nodes {
		parent := IRValue(IRNull{})
		if n.ParentID != "" {
			parent = IRString(n.ParentID)
		}
		operand := n.Trigger.Operand
		if operand == nil {
			operand = IRNull{}
		}
		template := n.Template
		if template == nil {
			template = IRObject{}
		}
		nodes[i] = IRObject{
			"id":       IRString(n.ID),
			"parent":   parent,
			"source":   IRString(n.SourceKind),
			"produces": IRString(n.ProducedKind),
			"trigger": IRObject{
				"variable": IRString(n.Trigger.Variable),
				"operator": IRString(n.Trigger.Operator),
				"operand":  operand,
			},
			"template": template,
		}
	}
	canonical, err := MarshalCanonical(IRObject{
		"project_type": IRString(g.ProjectTypeID),
		"nodes":        nodes,
	})
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustPayloadHash is like PayloadHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPayloadHash(payload IRObject) string {
	h, err := PayloadHash(payload)
	if err != nil {
		panic(err)
	}
	return h
}
