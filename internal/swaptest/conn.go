package swaptest

import (
	"fmt"

	"github.com/noot/xmrbtc-swap/net/message"
)

// Conn is one end of an in-memory message.Message pipe, standing in for
// net.Conn's websocket-backed implementation in tests that drive both
// sides of a handshake or swap in the same process.
type Conn struct {
	out chan<- message.Message
	in  <-chan message.Message
}

// NewConnPair returns two connected Conn ends: sending on one is received
// on the other.
func NewConnPair() (a, b *Conn) {
	ab := make(chan message.Message, 16)
	ba := make(chan message.Message, 16)
	return &Conn{out: ab, in: ba}, &Conn{out: ba, in: ab}
}

func (c *Conn) Send(msg message.Message) error {
	c.out <- msg
	return nil
}

func (c *Conn) Receive() (message.Message, error) {
	m, ok := <-c.in
	if !ok {
		return nil, fmt.Errorf("swaptest: connection closed")
	}
	return m, nil
}

func (c *Conn) Close() error {
	return nil
}
