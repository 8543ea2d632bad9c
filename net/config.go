// Package net implements peer-to-peer turn synchronization over
// WebSocket: a full-mesh of connections (the numerically higher MachineID
// listens, the lower dials), a 1-byte machine-id handshake, outbound
// batches framed as [u32 frame_len, frame_bytes]*, and the
// FinishTurn/DrainInbound backpressure protocol that keeps every peer
// within a bounded number of turns of the slowest one. Grounded on
// original_source/src/networking.rs. The transport itself
// (gorilla/websocket) is pulled from the rest of the retrieval pack — the
// teacher repo has no raw-socket networking of its own — the way the
// teacher's transport package builds its own framing (sendmsg.go, pdu.go)
// on top of net/http rather than hand-rolling TCP.
package net

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/kayrt/kay/id"
)

// PeerAddr is one entry of a Config's peer list: the MachineID a peer will
// identify itself as during the handshake, and the host:port to dial it
// at (used only by machines with a lower MachineID; higher machines never
// dial, they only accept).
type PeerAddr struct {
	Machine id.MachineID `json:"machine"`
	Addr    string       `json:"addr"`
}

// Config configures one machine's view of the full mesh: its own identity,
// the address it listens on, and every peer (including ones it never
// dials, because their MachineID is lower than its own).
type Config struct {
	Machine    id.MachineID `json:"machine"`
	ListenAddr string       `json:"listen_addr"`
	Peers      []PeerAddr   `json:"peers"`

	// BackpressureTurnLimit is how many turns ahead of us a peer's
	// n_turns_since_own_turn counter may climb before DrainInbound reports
	// "wants to wait" to the caller. Matches the original's fixed
	// threshold of 10.
	BackpressureTurnLimit int `json:"backpressure_turn_limit"`

	// AcceptableTurnDistance is how far behind us a peer's last-announced
	// turn may fall before FinishTurn starts reporting a nonzero
	// skip_turns for it. Matches the original's acceptable_turn_distance.
	AcceptableTurnDistance int `json:"acceptable_turn_distance"`

	// SkipTurnsPerTurnHead scales how many turns we tell the caller to
	// skip per turn a peer is behind beyond AcceptableTurnDistance.
	// Matches the original's skip_turns_per_turn_head.
	SkipTurnsPerTurnHead int `json:"skip_turns_per_turn_head"`

	// Compress enables the lz4 batch-compression envelope on outbound
	// batches.
	Compress bool `json:"compress"`
}

// DefaultBackpressureTurnLimit is the original's hardcoded
// n_turns_since_own_turn threshold.
const DefaultBackpressureTurnLimit = 10

// ConfigFromJSON parses a Config from JSON, filling BackpressureTurnLimit with
// the default when the document omits it.
func ConfigFromJSON(data []byte) (Config, error) {
	cfg := Config{BackpressureTurnLimit: DefaultBackpressureTurnLimit}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.BackpressureTurnLimit == 0 {
		cfg.BackpressureTurnLimit = DefaultBackpressureTurnLimit
	}
	return cfg, nil
}
