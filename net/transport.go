package net

import (
	"sync"

	"github.com/kayrt/kay/id"
)

// Connection is the per-peer link abstraction every transport
// implementation speaks; Networking never touches a socket directly, only
// this interface. Grounded on original_source/src/networking.rs, which
// compiles two different Connection structs behind
// #[cfg(feature = "server")] and #[cfg(feature = "browser")] sharing the
// same method names (new/enqueue/try_send_pending/try_receive) rather
// than a formal trait — Go has no conditional-compilation duck typing, so
// this is made an explicit interface with two concrete implementations:
// serverTransport (server_transport.go, real TCP dial/listen plus a
// blocking websocket read loop) and browserTransport
// (browser_transport.go, a single externally-driven socket fed by an
// event queue, built only for a js/wasm host).
type Connection interface {
	enqueue(frame []byte)
	flush(ownTurnCount uint32) error
	skipTurnsOwed(ownTurnCount uint32, acceptableDistance, perTurnHead int) (skip int, owed bool)
	noteBackpressure(peerTurnCount uint32, limit int) (wantsWait bool)
	peerTurn() uint32
	close() error
}

// inboundMsg is one connection's batch of decoded inbound frames, put on
// Networking's inbound channel by whichever transport received it and
// taken off again by Networking.DrainInbound.
type inboundMsg struct {
	machine id.MachineID
	frames  [][]byte
}

// turnState is the backpressure bookkeeping every Connection
// implementation needs, factored out so serverTransport and
// browserTransport don't each reimplement the same counters: our own
// last-flushed turn count, the peer's last-announced turn count
// (original's Connection.n_turns), and how many of the peer's turns have
// arrived since we last completed one of our own
// (n_turns_since_own_turn).
type turnState struct {
	mu                sync.Mutex
	ownTurnCount      uint32
	peerTurnCount     uint32
	turnsSinceOwnTurn int
}

// noteFlush records that ownTurnCount has just been sent to the peer,
// resetting turnsSinceOwnTurn the way the original's finish_turn does
// ("peer.n_turns_since_own_turn = 0") for every connection on every one
// of our own turns.
func (t *turnState) noteFlush(ownTurnCount uint32) {
	t.mu.Lock()
	t.ownTurnCount = ownTurnCount
	t.turnsSinceOwnTurn = 0
	t.mu.Unlock()
}

// skipTurnsOwed computes this connection's contribution to FinishTurn's
// returned skip_turns, per the original's finish_turn: when this peer's
// last-announced turn has fallen more than acceptableDistance behind our
// own (not yet incremented) ownTurnCount, the caller is told to skip
// sending for skip_turns_per_turn_head turns per turn of lag beyond the
// acceptable distance.
func (t *turnState) skipTurnsOwed(ownTurnCount uint32, acceptableDistance, perTurnHead int) (skip int, owed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(t.peerTurnCount)+acceptableDistance >= int(ownTurnCount) {
		return 0, false
	}
	lag := int(ownTurnCount) - acceptableDistance - int(t.peerTurnCount)
	return lag * perTurnHead, true
}

// noteBackpressure records a control frame's announced turn count and
// reports whether turnsSinceOwnTurn has reached limit — the original's
// inbound backpressure signal to break out of the receive loop because
// the peer is sending turns faster than we are completing our own.
func (t *turnState) noteBackpressure(peerTurnCount uint32, limit int) (wantsWait bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerTurnCount = peerTurnCount
	t.turnsSinceOwnTurn++
	return t.turnsSinceOwnTurn >= limit
}

// peerTurn returns the last turn count this peer announced, backing
// Networking.DebugAllNTurns.
func (t *turnState) peerTurn() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerTurnCount
}
