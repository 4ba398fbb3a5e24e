package checkpoint

import (
	"encoding/json"
	"fmt"
)

// Encode serialises a snapshot to JSON. Stores keep the encoded form so that
// later mutations of the caller's maps cannot leak into persisted history.
func Encode(snapshot Snapshot) ([]byte, error) {
	if snapshot.Values == nil {
		snapshot.Values = map[string]any{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode snapshot of stage %q: %w", snapshot.Stage, err)
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("checkpoint: decode snapshot: %w", err)
	}
	if snapshot.Values == nil {
		snapshot.Values = map[string]any{}
	}
	return snapshot, nil
}
