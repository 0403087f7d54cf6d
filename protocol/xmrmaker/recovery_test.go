package xmrmaker

import (
	"context"
	"testing"

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/internal/swaptest"
	"github.com/noot/xmrbtc-swap/protocol/setup"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
	"github.com/noot/xmrbtc-swap/swap/db"
)

func testConfig() setup.Config {
	return setup.Config{
		BTCAmount:      1_000_000,
		XMRAmount:      2_000_000_000_000,
		CancelTimelock: 12,
		PunishTimelock: 6,
		XMRConfTarget:  10,
		Network:        mcrypto.Stagenet,
		FeeRate:        bitcoin.FeeRate(1000),
		TxFee:          1000,
	}
}

// runHandshake drives a real setup.RunBuyer/RunSeller pair over an
// in-memory swaptest.Conn, returning both sides' matched Results.
func runHandshake(t *testing.T, cfg setup.Config) (buyerRes, sellerRes *setup.Result) {
	t.Helper()

	buyerConn, sellerConn := swaptest.NewConnPair()
	buyerWallet := swaptest.NewWallet(100)
	sellerWallet := swaptest.NewWallet(100)

	buyerKeys, err := setup.GenerateKeys()
	if err != nil {
		t.Fatalf("buyer GenerateKeys: %s", err)
	}
	sellerKeys, err := setup.GenerateKeys()
	if err != nil {
		t.Fatalf("seller GenerateKeys: %s", err)
	}

	type out struct {
		res *setup.Result
		err error
	}
	buyerCh := make(chan out, 1)
	sellerCh := make(chan out, 1)

	ctx := context.Background()
	go func() {
		res, err := setup.RunBuyer(ctx, buyerConn, buyerKeys, cfg, buyerWallet)
		buyerCh <- out{res, err}
	}()
	go func() {
		res, err := setup.RunSeller(ctx, sellerConn, sellerKeys, cfg, sellerWallet)
		sellerCh <- out{res, err}
	}()

	bOut, sOut := <-buyerCh, <-sellerCh
	if bOut.err != nil {
		t.Fatalf("RunBuyer: %s", bOut.err)
	}
	if sOut.err != nil {
		t.Fatalf("RunSeller: %s", sOut.err)
	}

	return bOut.res, sOut.res
}

func newTestStore(t *testing.T) *db.Store {
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

// TestRecoverFromRefund seeds a seller Instance with a matched handshake
// Result, hand-builds the buyer's TxRefund exactly the way xmrtaker's
// refund() would (decrypt encsig_seller_refund with the buyer's own
// Monero spend-key share, combine with the buyer's fresh plain
// signature), and checks that recoverFromRefund recovers the buyer's
// Monero spend-key share and sweeps the joint wallet to the seller's
// refund destination.
func TestRecoverFromRefund(t *testing.T) {
	cfg := testConfig()
	buyerRes, sellerRes := runHandshake(t, cfg)

	ctx := context.Background()
	chainWallet := swaptest.NewWallet(100)
	sellerXMR := swaptest.NewXMRClient(1000)

	refundDest := mcrypto.Address("refund-destination-address")

	i, err := NewInstance(ctx, nil, chainWallet, sellerXMR, newTestStore(t), cfg, sellerRes, refundDest, "pw")
	if err != nil {
		t.Fatalf("NewInstance: %s", err)
	}

	// Build the buyer's TxRefund the way xmrtaker's refund() does.
	sellerSig := adaptor.Decrypt(buyerRes.Own.SpendKeyShareBTC(), buyerRes.RefundEncSig)
	buyerSig := buyerRes.Own.TxLockKey.Sign(buyerRes.RefundSigHash)

	buyerPub := buyerRes.BuyerTxLockKey.Compressed()
	sellerPub := buyerRes.SellerTxLockKey.Compressed()
	buyerSigBytes := buyerSig.Bytes()
	sellerSigBytes := sellerSig.Bytes()

	tx := buyerRes.TxRefund
	bitcoin.FinalizeTxRefund(tx, buyerRes.CancelOutput.RedeemScript, buyerPub[:], buyerSigBytes[:], sellerPub[:], sellerSigBytes[:])

	if err := i.recoverFromRefund(tx); err != nil {
		t.Fatalf("recoverFromRefund: %s", err)
	}

	if sellerXMR.Swept != refundDest {
		t.Fatalf("expected sweep to %s, got %s", refundDest, sellerXMR.Swept)
	}
	if i.rec.Info.Status != pswap.XmrRefunded {
		t.Fatalf("expected status XmrRefunded, got %s", i.rec.Info.Status)
	}
}

// TestPunish seeds a seller Instance and checks that punish() broadcasts a
// validly-finalized TxPunish using the buyer's Msg4 punish signature plus
// a fresh seller signature.
func TestPunish(t *testing.T) {
	cfg := testConfig()
	_, sellerRes := runHandshake(t, cfg)

	ctx := context.Background()
	chainWallet := swaptest.NewWallet(100)
	sellerXMR := swaptest.NewXMRClient(1000)

	i, err := NewInstance(ctx, nil, chainWallet, sellerXMR, newTestStore(t), cfg, sellerRes, mcrypto.Address(""), "pw")
	if err != nil {
		t.Fatalf("NewInstance: %s", err)
	}

	if err := i.punish(); err != nil {
		t.Fatalf("punish: %s", err)
	}
	if i.rec.PunishTxID == "" {
		t.Fatalf("expected a recorded punish txid")
	}
}
