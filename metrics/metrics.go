// Package metrics exposes the actor runtime's telemetry as a standard
// prometheus.Collector, the way the teacher's stats package publishes
// counters for a scrape rather than rolling its own reporting protocol.
// Grounded on the general shape of a custom Collector (Describe/Collect
// backed by atomically-updated counters) as used throughout the
// prometheus/client_golang ecosystem; the teacher's own stats subsystem
// was dropped (see DESIGN.md) because it is wired to disk/node telemetry
// this runtime has no equivalent of, but the "publish via a Collector"
// idiom it follows is kept.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector publishes per-ActorSystem counters: messages dispatched,
// instances spawned/killed, dispatch cycles run, and turns completed.
// Every field is updated with atomic ops and read by Collect on a scrape
// goroutine. The dispatch loop updates the message, instance, cycle, turn
// and panic counters; the byte counters are published, but nothing in
// this module calls AddBytesSent or AddBytesReceived, so they stay zero
// unless a host updates them.
type Collector struct {
	messagesDispatched atomic.Uint64
	instancesSpawned    atomic.Uint64
	instancesKilled     atomic.Uint64
	cyclesRun           atomic.Uint64
	turnsCompleted      atomic.Uint64
	panicsRecovered     atomic.Uint64
	bytesSent           atomic.Uint64
	bytesReceived       atomic.Uint64

	messagesDesc  *prometheus.Desc
	instancesDesc *prometheus.Desc
	cyclesDesc    *prometheus.Desc
	turnsDesc     *prometheus.Desc
	panicsDesc    *prometheus.Desc
	bytesDesc     *prometheus.Desc
}

// NewCollector builds a ready-to-register Collector with all counters
// zeroed.
func NewCollector() *Collector {
	return &Collector{
		messagesDesc:  prometheus.NewDesc("kay_messages_dispatched_total", "Messages dispatched to handlers.", nil, nil),
		instancesDesc: prometheus.NewDesc("kay_instances_total", "Instances spawned/killed.", []string{"event"}, nil),
		cyclesDesc:    prometheus.NewDesc("kay_dispatch_cycles_total", "Dispatch cycles run across all turns.", nil, nil),
		turnsDesc:     prometheus.NewDesc("kay_turns_completed_total", "Turns completed.", nil, nil),
		panicsDesc:    prometheus.NewDesc("kay_handler_panics_total", "Handler panics recovered.", nil, nil),
		bytesDesc:     prometheus.NewDesc("kay_network_bytes_total", "Bytes sent/received over peer connections.", []string{"direction"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messagesDesc
	ch <- c.instancesDesc
	ch <- c.cyclesDesc
	ch <- c.turnsDesc
	ch <- c.panicsDesc
	ch <- c.bytesDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.messagesDesc, prometheus.CounterValue, float64(c.messagesDispatched.Load()))
	ch <- prometheus.MustNewConstMetric(c.instancesDesc, prometheus.CounterValue, float64(c.instancesSpawned.Load()), "spawned")
	ch <- prometheus.MustNewConstMetric(c.instancesDesc, prometheus.CounterValue, float64(c.instancesKilled.Load()), "killed")
	ch <- prometheus.MustNewConstMetric(c.cyclesDesc, prometheus.CounterValue, float64(c.cyclesRun.Load()))
	ch <- prometheus.MustNewConstMetric(c.turnsDesc, prometheus.CounterValue, float64(c.turnsCompleted.Load()))
	ch <- prometheus.MustNewConstMetric(c.panicsDesc, prometheus.CounterValue, float64(c.panicsRecovered.Load()))
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(c.bytesSent.Load()), "sent")
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(c.bytesReceived.Load()), "received")
}

func (c *Collector) AddMessagesDispatched(n uint64) { c.messagesDispatched.Add(n) }
func (c *Collector) AddInstancesSpawned(n uint64)   { c.instancesSpawned.Add(n) }
func (c *Collector) AddInstancesKilled(n uint64)    { c.instancesKilled.Add(n) }
func (c *Collector) AddCyclesRun(n uint64)          { c.cyclesRun.Add(n) }
func (c *Collector) AddTurnsCompleted(n uint64)     { c.turnsCompleted.Add(n) }
func (c *Collector) AddPanicsRecovered(n uint64)    { c.panicsRecovered.Add(n) }
func (c *Collector) AddBytesSent(n uint64)          { c.bytesSent.Add(n) }
func (c *Collector) AddBytesReceived(n uint64)      { c.bytesReceived.Add(n) }

var _ prometheus.Collector = (*Collector)(nil)
