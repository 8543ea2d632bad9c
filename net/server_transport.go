package net

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/klog"
)

// writeWait bounds how long a single websocket write may block, the way
// the teacher's transport layer bounds every send on its own deadline
// rather than trusting the OS default.
const writeWait = 10 * time.Second

// serverTransport is one full-duplex link to exactly one peer over a real
// TCP websocket. Outbound frames accumulate in pending until FinishTurn
// flushes them as one batched websocket message; inbound messages are
// read by a dedicated goroutine and handed to the owning Networking's
// inbound channel. Grounded on original_source/src/networking.rs's
// #[cfg(feature = "server")] Connection, which wraps a blocking
// WebSocket<TcpStream> the same way.
type serverTransport struct {
	turnState

	machine  id.MachineID
	ws       *websocket.Conn
	compress bool

	sendMu  sync.Mutex
	pending [][]byte

	inbound chan<- inboundMsg
	closed  chan struct{}
}

func newServerTransport(machine id.MachineID, ws *websocket.Conn, compress bool, inbound chan<- inboundMsg) *serverTransport {
	c := &serverTransport{
		machine:  machine,
		ws:       ws,
		compress: compress,
		inbound:  inbound,
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// enqueue appends a pre-framed (recipient-prefixed) data frame to this
// connection's pending outbound batch; it is not sent until the next
// flush.
func (c *serverTransport) enqueue(frame []byte) {
	c.sendMu.Lock()
	c.pending = append(c.pending, frame)
	c.sendMu.Unlock()
}

// flush sends every pending frame as one batched websocket message,
// prepending a control frame announcing ownTurnCount, and clears
// pending.
func (c *serverTransport) flush(ownTurnCount uint32) error {
	c.sendMu.Lock()
	frames := append([][]byte{encodeControlFrame(ownTurnCount)}, c.pending...)
	c.pending = nil
	c.sendMu.Unlock()
	c.noteFlush(ownTurnCount)

	batch := encodeBatch(frames, c.compress)
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return errors.Wrapf(c.ws.WriteMessage(websocket.BinaryMessage, batch), "net: write to machine %d", c.machine)
}

func (c *serverTransport) readLoop() {
	defer close(c.closed)
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			klog.Warningf("net: connection to machine %d closed: %v", c.machine, err)
			return
		}
		frames, err := decodeBatch(msg)
		if err != nil {
			klog.Errorf("net: machine %d sent malformed batch: %v", c.machine, err)
			continue
		}
		c.inbound <- inboundMsg{machine: c.machine, frames: frames}
	}
}

func (c *serverTransport) close() error {
	err := c.ws.Close()
	<-c.closed
	return err
}

var _ Connection = (*serverTransport)(nil)
