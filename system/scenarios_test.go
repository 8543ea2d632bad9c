package system_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/kayrt/kay/id"
	"github.com/kayrt/kay/system"
	"github.com/kayrt/kay/tuning"
)

var _ = Describe("Counter increment, single peer", func() {
	It("dispatches every Inc exactly once and lands the final count", func() {
		sys := system.New(0, tuning.Default())
		h, err := system.RegisterClass[Counter](sys, "Counter", 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(system.AddHandler(sys, h, false, func(self *Counter, msg Inc, from id.RawID, w *system.World) {
			self.Count += msg.N
		})).To(Succeed())

		c0 := system.Spawn(h, Counter{})

		w := sys.World()
		for i := 0; i < 5; i++ {
			Expect(system.Send(w, c0, Inc{N: 1})).To(Succeed())
		}
		Expect(sys.ProcessAllMessages()).To(Succeed())

		got, ok := system.Get(h, c0)
		Expect(ok).To(BeTrue())
		Expect(got.Count).To(Equal(uint32(5)))
		Expect(sys.GetMessageStatistics()["Counter.system_test.Inc"]).To(Equal(uint64(5)))
	})
})

var _ = Describe("Broadcast with mid-broadcast growth", func() {
	It("delivers to every instance live at broadcast start exactly once, across a resize", func() {
		sys := system.New(0, tuning.Default())
		h, err := system.RegisterClass[Counter](sys, "Counter", 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(system.AddHandler(sys, h, false, func(self *Counter, msg AppendThen, from id.RawID, w *system.World) {
			self.History = append(self.History, msg.Append)
		})).To(Succeed())

		ids := make([]id.RawID, 3)
		for i := range ids {
			ids[i] = system.Spawn(h, Counter{})
		}

		w := sys.World()
		Expect(system.Send(w, w.LocalBroadcastOf(h.TypeID()), AppendThen{Append: 1})).To(Succeed())
		Expect(sys.ProcessAllMessages()).To(Succeed())

		for _, rid := range ids {
			got, ok := system.Get(h, rid)
			Expect(ok).To(BeTrue())
			Expect(got.History).To(Equal([]uint32{1}))
		}
		Expect(sys.GetMessageStatistics()["Counter.system_test.AppendThen"]).To(Equal(uint64(3)))
	})
})

var _ = Describe("Dead recipient", func() {
	It("drops a message to a dead instance without panicking, and recycles the id with a bumped version", func() {
		sys := system.New(0, tuning.Default())
		h, err := system.RegisterClass[Widget](sys, "Widget", 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(system.AddHandler(sys, h, false, func(self *Widget, msg Empty, from id.RawID, w *system.World) {
			w.Kill(w.Self())
		})).To(Succeed())

		a0 := system.Spawn(h, Widget{})
		w := sys.World()
		Expect(system.Send(w, a0, Empty{})).To(Succeed())
		Expect(sys.ProcessAllMessages()).To(Succeed())
		Expect(system.InstanceCount(h)).To(Equal(0))

		// Sending to the now-stale RawID must not panic or error.
		Expect(system.Send(w, a0, Empty{})).To(Succeed())
		Expect(sys.ProcessAllMessages()).To(Succeed())
		Expect(sys.PanicHappened()).To(BeFalse())

		a1 := system.Spawn(h, Widget{})
		Expect(a1.InstanceID).To(Equal(a0.InstanceID))
		Expect(a1.Version).To(Equal(a0.Version + 1))
	})
})

var _ = Describe("Trait fan-out", func() {
	type Logger struct{}

	It("delivers a trait broadcast to every implementor exactly once", func() {
		sys := system.New(0, tuning.Default())

		trait, err := system.RegisterTrait[Logger](sys, "Logger")
		Expect(err).NotTo(HaveOccurred())

		console, err := system.RegisterClass[ConsoleLogger](sys, "ConsoleLogger", 8)
		Expect(err).NotTo(HaveOccurred())
		file, err := system.RegisterClass[FileLogger](sys, "FileLogger", 8)
		Expect(err).NotTo(HaveOccurred())

		Expect(system.AddHandler(sys, console, false, func(self *ConsoleLogger, msg LogMsg, from id.RawID, w *system.World) {
			self.Received = append(self.Received, msg.Text)
		})).To(Succeed())
		Expect(system.AddHandler(sys, file, false, func(self *FileLogger, msg LogMsg, from id.RawID, w *system.World) {
			self.Received = append(self.Received, msg.Text)
		})).To(Succeed())

		Expect(system.RegisterImplementor[ConsoleLogger, Logger](sys, trait, console)).To(Succeed())
		Expect(system.RegisterImplementor[FileLogger, Logger](sys, trait, file)).To(Succeed())

		consoleID := system.Spawn(console, ConsoleLogger{})
		fileID := system.Spawn(file, FileLogger{})

		w := sys.World()
		Expect(system.Send(w, w.LocalBroadcastOf(trait.TypeID()), LogMsg{Text: "hi"})).To(Succeed())
		Expect(sys.ProcessAllMessages()).To(Succeed())

		got, ok := system.Get(console, consoleID)
		Expect(ok).To(BeTrue())
		Expect(got.Received).To(Equal([]string{"hi"}))

		got, ok = system.Get(file, fileID)
		Expect(ok).To(BeTrue())
		Expect(got.Received).To(Equal([]string{"hi"}))
	})
})
