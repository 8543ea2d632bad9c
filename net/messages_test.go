package net_test

import "encoding/binary"

// Counter is a minimal cross-machine actor state: just enough to prove a
// Hello delivered over the wire actually reached the handler on the
// receiving machine.
type Counter struct {
	Count   uint32
	History []string
}

func (c *Counter) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, c.Count)
	return b, nil
}

func (c *Counter) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return nil
	}
	c.Count = binary.LittleEndian.Uint32(b)
	return nil
}

// Hello is sent across the wire from one machine to a Counter instance
// hosted on another.
type Hello struct{ Text string }

func (m *Hello) MarshalBinary() ([]byte, error) { return []byte(m.Text), nil }
func (m *Hello) UnmarshalBinary(b []byte) error { m.Text = string(b); return nil }
