// Package inspect renders a snapshot of an ActorSystem's registered
// classes and per-class instance counts as JSON, for a debug endpoint or
// a test assertion, the way the teacher exposes internal state via its
// own debug/dump helpers rather than requiring callers to reach into
// private fields. Built on json-iterator/go for consistency with the
// rest of the runtime's JSON surface (tuning, net.Config).
package inspect

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/kayrt/kay/id"
)

// ClassSnapshot is one registered class's row in a Dump.
type ClassSnapshot struct {
	TypeID    id.ShortTypeID `json:"type_id"`
	Name      string         `json:"name"`
	Instances int            `json:"instances"`
}

// Dump is the full debug snapshot of an ActorSystem.
type Dump struct {
	RunID   string          `json:"run_id"`
	Machine id.MachineID    `json:"machine"`
	Panicked bool           `json:"panicked"`
	Classes []ClassSnapshot `json:"classes"`
}

// MarshalJSON-equivalent entry point: callers build a Dump (system package
// callers populate it via reflection-free accessors already on
// ActorSystem/ClassHandle) and pass it here for consistent formatting.
func ToJSON(d Dump) ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(d, "", "  ")
}
