// Package swaptest provides hand-rolled in-memory fakes for the external
// traits the core depends on (bitcoin.Wallet, monero.Client, the peer
// net.Conn) so the protocol packages can be exercised without a live
// bitcoind/monero-wallet-rpc/websocket stack, the same role
// htlcswitch/mock.go's mockServer plays for lnd's link tests.
package swaptest

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wtxmgr"

	"github.com/noot/xmrbtc-swap/bitcoin"
)

// Wallet is an in-memory bitcoin.Wallet: it holds a fixed pool of funding
// coins, accepts any signature request without validating it
// cryptographically, and lets a test directly control confirmation depth
// and chain tip rather than mining real blocks.
type Wallet struct {
	mu sync.Mutex

	height        uint32
	coins         []wtxmgr.Credit
	confirmedAt   map[chainhash.Hash]uint32
	broadcast     map[chainhash.Hash]*wire.MsgTx
	changeCounter int
}

// NewWallet returns a Wallet pinned at the given starting chain tip,
// seeded with a pool of spendable coins large enough for any swap amount
// the tests use.
func NewWallet(height uint32) *Wallet {
	values := []bitcoin.Amount{
		bitcoin.BTCToSats(1),
		bitcoin.BTCToSats(0.25),
		bitcoin.BTCToSats(0.05),
		bitcoin.BTCToSats(0.01),
	}
	coins := make([]wtxmgr.Credit, len(values))
	for i, v := range values {
		var hash chainhash.Hash
		hash[0] = 0x01
		hash[1] = byte(i)

		script := make([]byte, 22)
		script[0] = 0x00
		script[1] = 0x14
		script[21] = byte(i)

		coins[i] = wtxmgr.Credit{
			OutPoint: wire.OutPoint{Hash: hash, Index: 0},
			Amount:   btcutil.Amount(v),
			PkScript: script,
		}
	}

	return &Wallet{
		height:      height,
		coins:       coins,
		confirmedAt: make(map[chainhash.Hash]uint32),
		broadcast:   make(map[chainhash.Hash]*wire.MsgTx),
	}
}

// NewChangeScript returns a distinct dummy P2WPKH-shaped script each call.
func (w *Wallet) NewChangeScript(_ context.Context) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changeCounter++
	script := make([]byte, 22)
	script[0] = 0x00
	script[1] = 0x14
	script[21] = byte(w.changeCounter)
	return script, nil
}

// SelectInputs picks funding coins from the wallet's pool, reserving a
// fixed buffer over target so bitcoin.BuildFundedTxLock has fee headroom.
func (w *Wallet) SelectInputs(_ context.Context, target bitcoin.Amount) ([]*wire.TxIn, []bitcoin.Amount, [][]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	selected, err := bitcoin.SelectCoins(w.coins, target+100000)
	if err != nil {
		return nil, nil, nil, err
	}

	inputs, values, scripts := bitcoin.FundingFromCredits(selected)
	return inputs, values, scripts, nil
}

// SignInput returns a fixed-length placeholder signature; nothing in these
// tests verifies TxLock's own funding-input signatures on-chain.
func (w *Wallet) SignInput(_ context.Context, _ *wire.MsgTx, _ int, _ []byte, _ bitcoin.Amount) ([]byte, error) {
	return make([]byte, 64), nil
}

// BroadcastTx records tx under its own hash and reports it as
// unconfirmed; a test advances it to confirmed via Confirm.
func (w *Wallet) BroadcastTx(_ context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hash := tx.TxHash()
	w.broadcast[hash] = tx
	return hash, nil
}

// Confirm marks hash as confirmed at the wallet's current tip.
func (w *Wallet) Confirm(hash chainhash.Hash) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.confirmedAt[hash] = w.height
}

// AdvanceHeight moves the simulated chain tip forward by n blocks.
func (w *Wallet) AdvanceHeight(n uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.height += n
}

func (w *Wallet) BlockHeight(_ context.Context) (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height, nil
}

func (w *Wallet) Confirmations(_ context.Context, hash chainhash.Hash) (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	at, ok := w.confirmedAt[hash]
	if !ok || w.height < at {
		return 0, nil
	}
	return w.height - at + 1, nil
}

func (w *Wallet) ConfirmedHeight(_ context.Context, hash chainhash.Hash) (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirmedAt[hash], nil
}

// GetTransaction returns the tx previously handed to BroadcastTx, or
// (nil, nil) if nothing with that hash has been broadcast yet — the
// "not found" convention the cancel/refund sub-machines poll on.
func (w *Wallet) GetTransaction(_ context.Context, hash chainhash.Hash) (*wire.MsgTx, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.broadcast[hash], nil
}

var _ bitcoin.Wallet = (*Wallet)(nil)
