//go:build js && wasm

package net

import (
	"sync"
	"syscall/js"

	"github.com/kayrt/kay/id"
)

// wsReadyStateOpen is the WebSocket.readyState value meaning the socket
// has completed its handshake and can send, matching the browser's
// WebSocket.OPEN constant.
const wsReadyStateOpen = 1

// browserTransport is a Connection backed by a browser-supplied
// WebSocket JS object rather than a dialed Go net.Conn. Grounded on
// original_source/src/networking.rs's #[cfg(feature = "browser")]
// Connection: there the socket is driven by JS callbacks that push
// inbound bytes into an Rc<RefCell<VecDeque<Vec<u8>>>>, and sends
// attempted before the socket reaches its Open state queue into a
// before_ready_queue flushed once it opens. syscall/js + the
// js&&wasm build tag is this package's analogue of Rust's
// #[cfg(feature = "browser")] — conditional compilation selecting a
// platform-specific implementation of the same Connection interface.
type browserTransport struct {
	turnState

	machine  id.MachineID
	ws       js.Value
	inbound  chan<- inboundMsg
	onMsg    js.Func
	onClose  js.Func

	sendMu      sync.Mutex
	beforeReady [][]byte

	closedOnce sync.Once
	closed     chan struct{}
}

// newBrowserTransport wraps an already-constructed browser WebSocket
// object (created and owned by the WASM host, which knows the peer's
// URL) and registers the listeners that feed inbound frames to inbound.
func newBrowserTransport(machine id.MachineID, ws js.Value, inbound chan<- inboundMsg) *browserTransport {
	c := &browserTransport{
		machine: machine,
		ws:      ws,
		inbound: inbound,
		closed:  make(chan struct{}),
	}

	c.onMsg = js.FuncOf(func(this js.Value, args []js.Value) any {
		c.handleMessage(args[0])
		return nil
	})
	ws.Call("addEventListener", "message", c.onMsg)

	c.onClose = js.FuncOf(func(this js.Value, args []js.Value) any {
		c.closedOnce.Do(func() { close(c.closed) })
		return nil
	})
	ws.Call("addEventListener", "close", c.onClose)

	ws.Call("addEventListener", "open", js.FuncOf(func(this js.Value, args []js.Value) any {
		c.flushBeforeReady()
		return nil
	}))

	return c
}

// handleMessage decodes one MessageEvent's payload (an ArrayBuffer) into
// frames and forwards them the same way serverTransport's readLoop does.
func (c *browserTransport) handleMessage(event js.Value) {
	buf := event.Get("data")
	data := make([]byte, buf.Get("byteLength").Int())
	js.CopyBytesToGo(data, js.Global().Get("Uint8Array").New(buf))
	frames, err := decodeBatch(data)
	if err != nil {
		return
	}
	c.inbound <- inboundMsg{machine: c.machine, frames: frames}
}

func (c *browserTransport) isOpen() bool {
	return c.ws.Get("readyState").Int() == wsReadyStateOpen
}

// enqueue mirrors serverTransport.enqueue's batching contract, but
// browserTransport has no explicit flush step driven by a turn loop on
// the wire — sends happen eagerly once the socket is open, matching the
// original's try_send_pending being a no-op for the browser Connection
// (the JS socket has its own outbound buffering).
func (c *browserTransport) enqueue(frame []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.isOpen() {
		c.beforeReady = append(c.beforeReady, frame)
		return
	}
	c.send(frame)
}

// flush sends a control frame announcing ownTurnCount; unlike
// serverTransport there is no pending-batch buffer to drain first since
// enqueue already sent eagerly, matching the original's browser
// Connection never batching data frames behind a turn boundary.
func (c *browserTransport) flush(ownTurnCount uint32) error {
	c.noteFlush(ownTurnCount)
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	frame := encodeControlFrame(ownTurnCount)
	if !c.isOpen() {
		c.beforeReady = append(c.beforeReady, frame)
		return nil
	}
	c.send(frame)
	return nil
}

// send writes one frame as its own binary WebSocket message, wrapped as a
// single-frame uncompressed batch so the receiving decodeBatch can read
// it. Must be called with sendMu held.
func (c *browserTransport) send(frame []byte) {
	batch := encodeBatch([][]byte{frame}, false)
	array := js.Global().Get("Uint8Array").New(len(batch))
	js.CopyBytesToJS(array, batch)
	c.ws.Call("send", array.Get("buffer"))
}

// flushBeforeReady drains whatever enqueue/flush buffered while the
// socket was still connecting, the original's "send everything in
// before_ready_queue once ready_state becomes Open".
func (c *browserTransport) flushBeforeReady() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	for _, frame := range c.beforeReady {
		c.send(frame)
	}
	c.beforeReady = nil
}

func (c *browserTransport) close() error {
	c.ws.Call("close")
	c.onMsg.Release()
	c.onClose.Release()
	select {
	case <-c.closed:
	default:
	}
	return nil
}

var _ Connection = (*browserTransport)(nil)

// RegisterBrowserPeer wires an already-open (or still-connecting)
// browser WebSocket object as the connection to peer, for a WASM host
// that has obtained ws itself (e.g. via `js.Global().Get("WebSocket").New(url)`)
// rather than going through Start's TCP dial/listen path. There is no
// browser-side Networking.connect equivalent to original_source's
// #[cfg(feature = "browser")] connect() — the host supplies the socket
// because only it knows the peer's URL and when to open it.
func (n *Networking) RegisterBrowserPeer(peer id.MachineID, ws js.Value) {
	c := newBrowserTransport(peer, ws, n.inbound)
	n.mu.Lock()
	n.conns[peer] = c
	n.mu.Unlock()
}
