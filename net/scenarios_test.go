package net_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/net"
	"github.com/kayrt/kay/system"
	"github.com/kayrt/kay/tuning"
)

// wireUpSystems registers the same Counter class and Hello handler, in the
// same order, on both systems so the two independent type registries
// assign Counter and Hello the same ShortTypeID on each side — required
// for a frame encoded on one machine to decode correctly on the other.
func wireUpSystems(sys0, sys1 *system.ActorSystem) (h0, h1 *system.ClassHandle[Counter]) {
	h0, err := system.RegisterClass[Counter](sys0, "Counter", 8)
	Expect(err).NotTo(HaveOccurred())
	h1, err = system.RegisterClass[Counter](sys1, "Counter", 8)
	Expect(err).NotTo(HaveOccurred())

	onHello := func(self *Counter, msg Hello, from id.RawID, w *system.World) {
		self.Count++
		self.History = append(self.History, msg.Text)
	}
	Expect(system.AddHandler(sys0, h0, false, onHello)).To(Succeed())
	Expect(system.AddHandler(sys1, h1, false, onHello)).To(Succeed())
	return h0, h1
}

func waitUntil(deadline time.Duration, cond func() bool) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

var _ = Describe("Two-peer turn sync", func() {
	It("delivers a cross-machine send and advances both peers' turn counts", func() {
		sys0 := system.New(0, tuning.Default())
		sys1 := system.New(1, tuning.Default())
		_, h1 := wireUpSystems(sys0, sys1)

		cfg0 := net.Config{Machine: 0, ListenAddr: "127.0.0.1:18810", Peers: []net.PeerAddr{{Machine: 1, Addr: "127.0.0.1:18811"}}, AcceptableTurnDistance: 100, SkipTurnsPerTurnHead: 1, BackpressureTurnLimit: net.DefaultBackpressureTurnLimit}
		cfg1 := net.Config{Machine: 1, ListenAddr: "127.0.0.1:18811", Peers: []net.PeerAddr{{Machine: 0, Addr: "127.0.0.1:18810"}}, AcceptableTurnDistance: 100, SkipTurnsPerTurnHead: 1, BackpressureTurnLimit: net.DefaultBackpressureTurnLimit}

		n0 := net.New(cfg0, sys0)
		n1 := net.New(cfg1, sys1)
		Expect(n0.Start()).To(Succeed())
		Expect(n1.Start()).To(Succeed())
		defer n0.Close()
		defer n1.Close()

		Expect(waitUntil(2*time.Second, func() bool {
			_, ok := n0.DebugAllNTurns()[1]
			return ok
		})).To(BeTrue())

		c1 := system.Spawn(h1, Counter{})
		Expect(c1.Machine).To(Equal(id.MachineID(1)))

		w0 := sys0.World()
		Expect(system.Send(w0, c1, Hello{Text: "hi"})).To(Succeed())
		n0.FinishTurn()

		Expect(waitUntil(2*time.Second, func() bool {
			n1.DrainInbound()
			_ = sys1.ProcessAllMessages()
			got, ok := system.Get(h1, c1)
			return ok && got.Count == 1
		})).To(BeTrue())

		got, ok := system.Get(h1, c1)
		Expect(ok).To(BeTrue())
		Expect(got.History).To(Equal([]string{"hi"}))

		n0.FinishTurn()
		n1.FinishTurn()
		Expect(waitUntil(2*time.Second, func() bool {
			n0.DrainInbound()
			n1.DrainInbound()
			return n0.DebugAllNTurns()[1] >= 1 && n1.DebugAllNTurns()[0] >= 1
		})).To(BeTrue())
	})
})

var _ = Describe("Backpressure", func() {
	It("reports skip_turns once a peer falls more than acceptable_turn_distance behind", func() {
		sys0 := system.New(0, tuning.Default())
		sys1 := system.New(1, tuning.Default())
		wireUpSystems(sys0, sys1)

		cfg0 := net.Config{Machine: 0, ListenAddr: "127.0.0.1:18820", Peers: []net.PeerAddr{{Machine: 1, Addr: "127.0.0.1:18821"}}, AcceptableTurnDistance: 2, SkipTurnsPerTurnHead: 3, BackpressureTurnLimit: net.DefaultBackpressureTurnLimit}
		cfg1 := net.Config{Machine: 1, ListenAddr: "127.0.0.1:18821", Peers: []net.PeerAddr{{Machine: 0, Addr: "127.0.0.1:18820"}}, AcceptableTurnDistance: 2, SkipTurnsPerTurnHead: 3, BackpressureTurnLimit: net.DefaultBackpressureTurnLimit}

		n0 := net.New(cfg0, sys0)
		n1 := net.New(cfg1, sys1)
		Expect(n0.Start()).To(Succeed())
		Expect(n1.Start()).To(Succeed())
		defer n0.Close()
		defer n1.Close()

		Expect(waitUntil(2*time.Second, func() bool {
			_, ok := n0.DebugAllNTurns()[1]
			return ok
		})).To(BeTrue())

		// M1 advances to turn 5, then stalls.
		for i := 0; i < 5; i++ {
			n1.FinishTurn()
		}
		Expect(waitUntil(2*time.Second, func() bool {
			n0.DrainInbound()
			return n0.DebugAllNTurns()[1] == 5
		})).To(BeTrue())

		// M0 advances to turn 10 without M1 ever catching up.
		for i := 0; i < 10; i++ {
			n0.FinishTurn()
		}
		Expect(n0.OwnTurnCount()).To(Equal(uint32(10)))

		skip, hasSkip := n0.FinishTurn()
		Expect(hasSkip).To(BeTrue())
		Expect(skip).To(Equal(9))
	})
})
