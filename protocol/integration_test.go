// Package protocol_test drives the setup handshake and both sides' state
// machines together, end to end, against the in-memory swaptest fakes —
// the closest this tree comes to a live regtest/monero-wallet-rpc
// integration run. It only has access to what xmrmaker and xmrtaker
// export (NewInstance, Run), so unlike their own package-internal tests it
// can't reach into an Instance's unexported fields; it instead reads back
// each side's persisted terminal status from its own db.Store.
package protocol_test

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/noot/xmrbtc-swap/bitcoin"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/internal/swaptest"
	"github.com/noot/xmrbtc-swap/protocol/setup"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
	"github.com/noot/xmrbtc-swap/protocol/xmrmaker"
	"github.com/noot/xmrbtc-swap/protocol/xmrtaker"
	"github.com/noot/xmrbtc-swap/swap/db"
)

func integrationConfig() setup.Config {
	return setup.Config{
		BTCAmount:      1_000_000,
		XMRAmount:      10_000_000_000,
		CancelTimelock: 100,
		PunishTimelock: 50,
		XMRConfTarget:  10,
		Network:        mcrypto.Stagenet,
		FeeRate:        bitcoin.FeeRate(1000),
		TxFee:          1000,
	}
}

// swapID reproduces xmrmaker's and xmrtaker's identical, independently
// derived swap-ID formula (SHA-256 of TxLock's outpoint) so a black-box
// test can look a swap's persisted record up by ID without access to
// either package's unexported swapID helper.
func swapID(r *setup.Result) pswap.ID {
	h := sha256.New()
	hash := r.LockOutpoint.Hash
	h.Write(hash[:])

	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], r.LockOutpoint.Index)
	h.Write(idx[:])

	var id pswap.ID
	copy(id[:], h.Sum(nil))
	return id
}

func newStore(t *testing.T) *db.Store {
	t.Helper()
	database, err := db.NewBadgerDB("")
	if err != nil {
		t.Fatalf("NewBadgerDB: %s", err)
	}
	store, err := db.NewStore(database)
	if err != nil {
		t.Fatalf("NewStore: %s", err)
	}
	return store
}

// TestHappyPathEndToEnd runs the full seller/buyer setup handshake
// followed by both sides' post-setup state machines concurrently: the
// seller locks Monero, proves it, and redeems Bitcoin once the
// buyer hands over its encrypted signature; the buyer publishes TxLock,
// verifies the proof, and hands over the encsig once it's safe to.
//
// Both sides share one swaptest.Wallet, standing in for the one Bitcoin
// chain they're both watching; their Monero clients stay separate, since
// in reality each party only ever talks to their own wallet-rpc instance.
// TxLock's and TxRedeem's confirmation depths are seeded ahead of the run
// (their hashes are already known from the completed handshake and the
// pre-signed transaction family, and BIP-141 makes a transaction's hash
// independent of whatever witness is later attached to it), so neither
// side's own confirmation wait ever blocks on a real pollInterval tick.
// The one real-time cost left is the buyer noticing the seller's TxRedeem
// land on the shared wallet: that can only happen after the seller
// actually broadcasts it, so the buyer's watcher may need to wait out one
// 20-second pollInterval tick before its next poll sees it — bounded, not
// a hang.
func TestHappyPathEndToEnd(t *testing.T) {
	cfg := integrationConfig()

	buyerConn, sellerConn := swaptest.NewConnPair()
	chainWallet := swaptest.NewWallet(1000)

	buyerKeys, err := setup.GenerateKeys()
	if err != nil {
		t.Fatalf("buyer GenerateKeys: %s", err)
	}
	sellerKeys, err := setup.GenerateKeys()
	if err != nil {
		t.Fatalf("seller GenerateKeys: %s", err)
	}

	type setupOut struct {
		res *setup.Result
		err error
	}
	buyerSetupCh := make(chan setupOut, 1)
	sellerSetupCh := make(chan setupOut, 1)

	ctx := context.Background()
	go func() {
		res, err := setup.RunBuyer(ctx, buyerConn, buyerKeys, cfg, chainWallet)
		buyerSetupCh <- setupOut{res, err}
	}()
	go func() {
		res, err := setup.RunSeller(ctx, sellerConn, sellerKeys, cfg, chainWallet)
		sellerSetupCh <- setupOut{res, err}
	}()

	bOut, sOut := <-buyerSetupCh, <-sellerSetupCh
	if bOut.err != nil {
		t.Fatalf("RunBuyer: %s", bOut.err)
	}
	if sOut.err != nil {
		t.Fatalf("RunSeller: %s", sOut.err)
	}
	buyerRes, sellerRes := bOut.res, sOut.res

	chainWallet.Confirm(sellerRes.LockTx.TxHash())

	buyerXMR := swaptest.NewXMRClient(500)
	sellerXMR := swaptest.NewXMRClient(500)
	sellerXMR.Received = cfg.XMRAmount
	sellerXMR.Confirmations = cfg.XMRConfTarget
	buyerXMR.Received = cfg.XMRAmount
	buyerXMR.Confirmations = cfg.XMRConfTarget

	buyerStore := newStore(t)
	sellerStore := newStore(t)

	sellerInstance, err := xmrmaker.NewInstance(
		ctx, sellerConn, chainWallet, sellerXMR, sellerStore, cfg, sellerRes, mcrypto.Address("seller-refund-unused"), "pw",
	)
	if err != nil {
		t.Fatalf("xmrmaker.NewInstance: %s", err)
	}
	buyerDestination := mcrypto.Address("buyer-destination-address")
	buyerInstance, err := xmrtaker.NewInstance(
		ctx, buyerConn, chainWallet, buyerXMR, buyerStore, cfg, buyerRes, buyerDestination, "pw",
	)
	if err != nil {
		t.Fatalf("xmrtaker.NewInstance: %s", err)
	}

	chainWallet.Confirm(sellerRes.TxRedeem.TxHash())

	type runOut struct {
		err error
	}
	sellerRunCh := make(chan runOut, 1)
	buyerRunCh := make(chan runOut, 1)

	go func() { sellerRunCh <- runOut{sellerInstance.Run()} }()
	go func() { buyerRunCh <- runOut{buyerInstance.Run()} }()

	sRun, bRun := <-sellerRunCh, <-buyerRunCh
	if sRun.err != nil {
		t.Fatalf("seller Run: %s", sRun.err)
	}
	if bRun.err != nil {
		t.Fatalf("buyer Run: %s", bRun.err)
	}

	id := swapID(sellerRes)
	sellerRec, err := sellerStore.GetPast(id)
	if err != nil {
		t.Fatalf("seller GetPast: %s", err)
	}
	if sellerRec.Info.Status != pswap.BtcRedeemed {
		t.Fatalf("expected seller status BtcRedeemed, got %s", sellerRec.Info.Status)
	}

	buyerRec, err := buyerStore.GetPast(swapID(buyerRes))
	if err != nil {
		t.Fatalf("buyer GetPast: %s", err)
	}
	if buyerRec.Info.Status != pswap.XmrRedeemed {
		t.Fatalf("expected buyer status XmrRedeemed, got %s", buyerRec.Info.Status)
	}

	if buyerXMR.Swept != buyerDestination {
		t.Fatalf("expected buyer's recovered monero swept to %s, got %s", buyerDestination, buyerXMR.Swept)
	}
}
