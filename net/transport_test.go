package net

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noot/xmrbtc-swap/net/message"
)

func TestDialAcceptSendReceive(t *testing.T) {
	l := NewListener()
	srv := httptest.NewServer(l.Handler())
	defer srv.Close()
	defer l.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	buyerConn, err := Dial(ctx, wsURL)
	require.NoError(t, err)
	defer buyerConn.Close()

	sellerConn, err := l.Accept(ctx)
	require.NoError(t, err)
	defer sellerConn.Close()

	want := &message.Contribution{RefundScript: []byte{0x00, 0x14, 0xAB}}
	require.NoError(t, buyerConn.Send(want))

	got, err := sellerConn.Receive()
	require.NoError(t, err)
	require.Equal(t, want, got)
}
