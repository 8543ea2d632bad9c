package system_test

import (
	"encoding/binary"
	"fmt"
)

// Counter is the seed-test actor state: a plain instance count plus a
// growable history, used both for the single-cycle increment scenario and
// the mid-broadcast resize scenario.
type Counter struct {
	Count   uint32
	History []uint32
}

func (c *Counter) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4+4+4*len(c.History))
	binary.LittleEndian.PutUint32(b[0:4], c.Count)
	binary.LittleEndian.PutUint32(b[4:8], uint32(len(c.History)))
	for i, v := range c.History {
		binary.LittleEndian.PutUint32(b[8+4*i:12+4*i], v)
	}
	return b, nil
}

func (c *Counter) UnmarshalBinary(b []byte) error {
	if len(b) < 8 {
		return fmt.Errorf("Counter: truncated (%d bytes)", len(b))
	}
	c.Count = binary.LittleEndian.Uint32(b[0:4])
	n := binary.LittleEndian.Uint32(b[4:8])
	c.History = c.History[:0]
	for i := uint32(0); i < n; i++ {
		off := 8 + 4*i
		c.History = append(c.History, binary.LittleEndian.Uint32(b[off:off+4]))
	}
	return nil
}

// Inc adds N to a Counter's Count.
type Inc struct{ N uint32 }

func (m *Inc) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, m.N)
	return b, nil
}

func (m *Inc) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return fmt.Errorf("Inc: truncated")
	}
	m.N = binary.LittleEndian.Uint32(b)
	return nil
}

// AppendThen has the receiving Counter push Append onto its History,
// forcing the slice to grow.
type AppendThen struct{ Append uint32 }

func (m *AppendThen) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, m.Append)
	return b, nil
}

func (m *AppendThen) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return fmt.Errorf("AppendThen: truncated")
	}
	m.Append = binary.LittleEndian.Uint32(b)
	return nil
}

// Empty is a zero-size message, used wherever only delivery itself
// matters (Die, Ping).
type Empty struct{}

func (Empty) MarshalBinary() ([]byte, error) { return nil, nil }
func (*Empty) UnmarshalBinary([]byte) error  { return nil }

// Widget is a minimal actor state for the dead-recipient scenario.
type Widget struct{ Dead bool }

func (w *Widget) MarshalBinary() ([]byte, error) { return []byte{0}, nil }
func (w *Widget) UnmarshalBinary([]byte) error   { return nil }

// LoggerState is the implementor state shared by ConsoleLogger and
// FileLogger in the trait fan-out scenario: each records what it
// received.
type LoggerState struct {
	Received []string
}

func (l *LoggerState) MarshalBinary() ([]byte, error) {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, uint32(len(l.Received)))
	for _, s := range l.Received {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
		b = append(b, s...)
	}
	return b, nil
}

func (l *LoggerState) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return fmt.Errorf("LoggerState: truncated")
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	off := 4
	l.Received = l.Received[:0]
	for i := uint32(0); i < n; i++ {
		slen := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		l.Received = append(l.Received, string(b[off:off+int(slen)]))
		off += int(slen)
	}
	return nil
}

// ConsoleLogger and FileLogger are the two implementor classes of the
// trait fan-out scenario. Each is its own Go type because RegisterClass
// identifies a class by its Go type.
type ConsoleLogger struct{ LoggerState }
type FileLogger struct{ LoggerState }

// LogMsg is the message sent to a Logger trait's broadcast address.
type LogMsg struct{ Text string }

func (m *LogMsg) MarshalBinary() ([]byte, error) { return []byte(m.Text), nil }
func (m *LogMsg) UnmarshalBinary(b []byte) error  { m.Text = string(b); return nil }
