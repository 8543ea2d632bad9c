// Package tuning holds the chunk-size configuration for every chunky-backed
// structure in the runtime. Mirrors the original src/tuning.rs field for
// field; loadable from JSON via json-iterator the way the teacher loads
// cmn/config, instead of requiring callers to hand-construct every field.
package tuning

import jsoniter "github.com/json-iterator/go"

// Tuning configures the chunk sizes chunky.* structures grow by. Defaults
// match the original Rust runtime's Default impl.
type Tuning struct {
	InstanceChunkSize         int `json:"instance_chunk_size"`
	InstanceEntryChunkSize    int `json:"instance_entry_chunk_size"`
	InstanceVersionsChunkSize int `json:"instance_versions_chunk_size"`
	InstanceFreeChunkSize     int `json:"instance_free_chunk_size"`
	InboxQueueChunkSize       int `json:"inbox_queue_chunk_size"`
}

// Default returns the tuning the original runtime ships with.
func Default() Tuning {
	return Tuning{
		InstanceChunkSize:         4 * 1024 * 1024,
		InstanceEntryChunkSize:    1024 * 1024,
		InstanceVersionsChunkSize: 512 * 1024,
		InstanceFreeChunkSize:     8 * 1024,
		InboxQueueChunkSize:       1024 * 1024,
	}
}

// FromJSON parses a Tuning from JSON, filling any field the document omits
// with the default.
func FromJSON(data []byte) (Tuning, error) {
	t := Default()
	if len(data) == 0 {
		return t, nil
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &t); err != nil {
		return Tuning{}, err
	}
	return t, nil
}
