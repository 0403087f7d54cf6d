// Package net implements the peer transport a swap requires: a
// reliable, ordered, bidirectional channel between buyer and seller
// carrying the setup messages and the encsig delivery message, agnostic
// to any particular swap's business logic.
package net

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"

	"github.com/noot/xmrbtc-swap/net/message"
)

var log = logging.Logger("net")

// Conn is one swap's peer channel. Send and Receive each move exactly one
// message; the underlying websocket connection's own framing and transport
// ordering gives the exactly-once, in-order delivery the core relies on.
type Conn interface {
	Send(msg message.Message) error
	Receive() (message.Message, error)
	Close() error
}

type wsConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func (w *wsConn) Send(msg message.Message) error {
	b, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteMessage(websocket.BinaryMessage, b)
}

func (w *wsConn) Receive() (message.Message, error) {
	_, b, err := w.c.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read from peer: %w", err)
	}

	return message.DecodeMessage(b)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}

// Dial opens the buyer's end of the channel; the setup protocol is
// buyer-dials, seller-listens.
func Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial peer: %w", err)
	}

	return &wsConn{c: c}, nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Listener accepts inbound peer connections on the seller side, one per
// swap.
type Listener struct {
	accept chan Conn
}

// NewListener creates a Listener ready to have its Handler mounted on an
// HTTP server.
func NewListener() *Listener {
	return &Listener{accept: make(chan Conn, 1)}
}

// Accept blocks until a buyer dials in, returning their end of the channel.
func (l *Listener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c, ok := <-l.accept:
		if !ok {
			return nil, fmt.Errorf("listener closed")
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Handler upgrades an inbound HTTP request to a websocket connection and
// hands it to Accept.
func (l *Listener) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("failed to upgrade peer connection: %s", err)
			return
		}

		l.accept <- &wsConn{c: conn}
	}
}

// Close releases the listener's accept channel. Any blocked Accept calls
// return an error.
func (l *Listener) Close() {
	close(l.accept)
}
