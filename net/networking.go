package net

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/klog"
	"github.com/kayrt/kay/system"
)

// Networking owns one machine's full-mesh of peer connections and
// implements system.PeerTransport so ActorSystem.AttachTransport can hand
// it outbound frames directly. Grounded on original_source/src/networking.rs:
// the higher MachineID in a pair listens, the lower dials, so a fully
// connected mesh of N peers needs no discovery service, only each peer's
// static address list.
type Networking struct {
	cfg Config
	sys *system.ActorSystem

	upgrader websocket.Upgrader
	server   *http.Server

	mu    sync.RWMutex
	conns map[id.MachineID]Connection

	inbound chan inboundMsg
	done    chan struct{}

	ownTurnCount uint32
}

// New builds a Networking for cfg, wired to deliver inbound data frames
// into sys. Call Start to actually listen/dial.
func New(cfg Config, sys *system.ActorSystem) *Networking {
	n := &Networking{
		cfg:      cfg,
		sys:      sys,
		upgrader: websocket.Upgrader{ReadBufferSize: 64 * 1024, WriteBufferSize: 64 * 1024},
		conns:    make(map[id.MachineID]Connection),
		inbound:  make(chan inboundMsg, 256),
		done:     make(chan struct{}),
	}
	sys.AttachTransport(n)
	return n
}

// Start begins listening (if any configured peer has a lower MachineID
// than this one) and dialing (every peer with a higher MachineID). Inbound
// frames are routed into sys only when the caller runs DrainInbound.
func (n *Networking) Start() error {
	needsListener := false
	for _, p := range n.cfg.Peers {
		if p.Machine < n.cfg.Machine {
			needsListener = true
		}
	}
	if needsListener {
		mux := http.NewServeMux()
		mux.HandleFunc("/kay", n.handleUpgrade)
		n.server = &http.Server{Addr: n.cfg.ListenAddr, Handler: mux}
		go func() {
			if err := n.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				klog.Errorf("net: listener on %s exited: %v", n.cfg.ListenAddr, err)
			}
		}()
	}

	for _, p := range n.cfg.Peers {
		if p.Machine > n.cfg.Machine {
			go n.dialWithRetry(p)
		}
	}
	return nil
}

func (n *Networking) dialWithRetry(p PeerAddr) {
	for {
		select {
		case <-n.done:
			return
		default:
		}
		url := fmt.Sprintf("ws://%s/kay", p.Addr)
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			klog.Warningf("net: dial machine %d at %s: %v", p.Machine, p.Addr, err)
			time.Sleep(time.Second)
			continue
		}
		if err := n.handshakeOutbound(ws, p.Machine); err != nil {
			klog.Warningf("net: handshake with machine %d: %v", p.Machine, err)
			ws.Close()
			time.Sleep(time.Second)
			continue
		}
		return
	}
}

func (n *Networking) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		klog.Errorf("net: upgrade failed: %v", err)
		return
	}
	if err := n.handshakeInbound(ws); err != nil {
		klog.Warningf("net: inbound handshake failed: %v", err)
		ws.Close()
	}
}

// handshakeOutbound is run by the dialing (lower-MachineID) side: it
// writes its own machine id, then reads the peer's, verifying it matches
// who it dialed.
func (n *Networking) handshakeOutbound(ws *websocket.Conn, expect id.MachineID) error {
	if err := ws.WriteMessage(websocket.BinaryMessage, []byte{byte(n.cfg.Machine)}); err != nil {
		return errors.Wrap(err, "write handshake byte")
	}
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return errors.Wrap(err, "read handshake byte")
	}
	if len(msg) != 1 {
		return errors.Errorf("handshake: expected 1 byte, got %d", len(msg))
	}
	peer := id.MachineID(msg[0])
	if peer != expect {
		return errors.Errorf("handshake: dialed machine %d, got handshake from %d", expect, peer)
	}
	n.register(peer, ws)
	return nil
}

// handshakeInbound is run by the listening (higher-MachineID) side: it
// reads the connecting peer's machine id first, then replies with its
// own.
func (n *Networking) handshakeInbound(ws *websocket.Conn) error {
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return errors.Wrap(err, "read handshake byte")
	}
	if len(msg) != 1 {
		return errors.Errorf("handshake: expected 1 byte, got %d", len(msg))
	}
	peer := id.MachineID(msg[0])
	if err := ws.WriteMessage(websocket.BinaryMessage, []byte{byte(n.cfg.Machine)}); err != nil {
		return errors.Wrap(err, "write handshake byte")
	}
	n.register(peer, ws)
	return nil
}

func (n *Networking) register(peer id.MachineID, ws *websocket.Conn) {
	c := newServerTransport(peer, ws, n.cfg.Compress, n.inbound)
	n.mu.Lock()
	n.conns[peer] = c
	n.mu.Unlock()
	klog.Infof("net: connected to machine %d", peer)
}

// SendTo implements system.PeerTransport: it enqueues frame for machine,
// or (machine == id.BroadcastMachine) for every connected peer.
func (n *Networking) SendTo(machine id.MachineID, frame []byte) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if machine == id.BroadcastMachine {
		for _, c := range n.conns {
			c.enqueue(frame)
		}
		return nil
	}
	c, ok := n.conns[machine]
	if !ok {
		return errors.Errorf("net: no connection to machine %d", machine)
	}
	c.enqueue(frame)
	return nil
}

type connEntry struct {
	machine id.MachineID
	conn    Connection
}

// FinishTurn computes the skip_turns any connection is owed (the highest
// value returned by skipTurnsOwed across every connection, since a caller
// only gets one throttle decision per turn), then flushes every
// connection's pending outbound batch tagged with the newly completed
// turn count. hasSkip is false when every peer is within
// Config.AcceptableTurnDistance of us, matching the original's finish_turn
// returning None in the common case. Call DrainInbound afterwards to
// absorb whatever peers have sent back; the pair replaces the original's
// single blocking send_and_receive with two steps so a caller can
// interleave other turn-end work between them.
func (n *Networking) FinishTurn() (skipTurns int, hasSkip bool) {
	n.mu.RLock()
	conns := make([]connEntry, 0, len(n.conns))
	for m, c := range n.conns {
		conns = append(conns, connEntry{machine: m, conn: c})
	}
	n.mu.RUnlock()

	for _, e := range conns {
		if skip, owed := e.conn.skipTurnsOwed(n.ownTurnCount, n.cfg.AcceptableTurnDistance, n.cfg.SkipTurnsPerTurnHead); owed {
			if !hasSkip || skip > skipTurns {
				skipTurns, hasSkip = skip, true
			}
		}
	}

	n.ownTurnCount++
	for _, e := range conns {
		if err := e.conn.flush(n.ownTurnCount); err != nil {
			klog.Warningf("net: flush to machine %d: %v", e.machine, err)
		}
	}
	return skipTurns, hasSkip
}

// DrainInbound processes every inbound batch received since the last
// call: control frames update per-connection backpressure state, data
// frames are delivered into the ActorSystem. Call this once per turn,
// after FinishTurn, the way the original's send_and_receive interleaves
// flushing outbound work with absorbing whatever peers have sent back.
// wantsWait reports whether any connection's n_turns_since_own_turn
// reached Config.BackpressureTurnLimit, the original's signal to break out
// of the receive loop rather than keep absorbing a peer that is turning
// over far faster than we are.
func (n *Networking) DrainInbound() (wantsWait bool) {
	for {
		select {
		case m := <-n.inbound:
			if n.handleInbound(m) {
				wantsWait = true
			}
		default:
			return wantsWait
		}
	}
}

func (n *Networking) handleInbound(m inboundMsg) (wantsWait bool) {
	n.mu.RLock()
	c, ok := n.conns[m.machine]
	n.mu.RUnlock()
	for _, frame := range m.frames {
		if turnCount, isControl := isControlFrame(frame); isControl {
			if ok && c.noteBackpressure(turnCount, n.cfg.BackpressureTurnLimit) {
				wantsWait = true
			}
			continue
		}
		if err := n.sys.DeliverInbound(frame); err != nil {
			klog.Warningf("net: deliver inbound frame from machine %d: %v", m.machine, err)
		}
	}
	return wantsWait
}

// DebugAllNTurns returns, for every currently connected peer, the last
// turn number it has announced to us — a human-readable snapshot for
// diagnosing a stalled peer, grounded on the original's
// ActorSystem::debug_all_n_turns.
func (n *Networking) DebugAllNTurns() map[id.MachineID]uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[id.MachineID]uint32, len(n.conns))
	for m, c := range n.conns {
		out[m] = c.peerTurn()
	}
	return out
}

// OwnTurnCount returns the number of turns this machine has completed.
func (n *Networking) OwnTurnCount() uint32 { return n.ownTurnCount }

// Close shuts down the listener and every connection.
func (n *Networking) Close() error {
	close(n.done)
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.conns {
		_ = c.close()
	}
	if n.server != nil {
		return n.server.Close()
	}
	return nil
}

var _ system.PeerTransport = (*Networking)(nil)
