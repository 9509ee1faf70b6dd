package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes keep ids of different record kinds apart.
// The version suffix allows the encoding to change later.
const (
	DomainSnapshot = "fanout/snapshot/v1"
	DomainStep     = "fanout/step/v1"
)

// HashWithDomain returns hex(SHA256(domain + 0x00 + data)).
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotID identifies the observable contents of a host.
func SnapshotID(snapshot map[string]any) (string, error) {
	data, err := Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("SnapshotID: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainSnapshot, data), nil
}

// StepID identifies one trace step of a run. The id covers the run, the
// step's position, the operation and the snapshot it produced, so replaying
// a scenario with a fixed run id reproduces every step id.
func StepID(runID string, seq int64, op, snapshotID string) (string, error) {
	data, err := Marshal(map[string]any{
		"run_id":      runID,
		"seq":         seq,
		"op":          op,
		"snapshot_id": snapshotID,
	})
	if err != nil {
		return "", fmt.Errorf("StepID: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainStep, data), nil
}

// MustSnapshotID is like SnapshotID but panics on error.
func MustSnapshotID(snapshot map[string]any) string {
	id, err := SnapshotID(snapshot)
	if err != nil {
		panic(err)
	}
	return id
}
