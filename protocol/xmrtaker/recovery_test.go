package xmrtaker

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

// TestRecoverFromRedeem seeds a buyer Instance with a matched handshake
// Result, hand-builds the seller's TxRedeem exactly the way xmrmaker's
// redeem() would (decrypt encsig_buyer_redeem with the seller's own
// Monero spend-key share, combine with the seller's fresh plain
// signature), and checks that recoverFromRedeem recovers the seller's
// Monero spend-key share and sweeps the joint wallet to the buyer's
// destination.
func TestRecoverFromRedeem(t *testing.T) {
	cfg := testConfig()
	buyerRes, sellerRes := runHandshake(t, cfg)

	buyerEncSig, err := buyerRes.SignBuyerRedeemEncSig()
	if err != nil {
		t.Fatalf("SignBuyerRedeemEncSig: %s", err)
	}
	buyerRes.RedeemEncSig = buyerEncSig

	ctx := context.Background()
	chainWallet := swaptest.NewWallet(100)
	buyerXMR := swaptest.NewXMRClient(1000)

	destination := mcrypto.Address("buyer-destination-address")

	i, err := NewInstance(ctx, nil, chainWallet, buyerXMR, newTestStore(t), cfg, buyerRes, destination, "pw")
	if err != nil {
		t.Fatalf("NewInstance: %s", err)
	}

	// Build the seller's TxRedeem the way xmrmaker's redeem() does.
	decryptedBuyerSig := adaptor.Decrypt(sellerRes.Own.SpendKeyShareBTC(), buyerEncSig)
	sellerSig := sellerRes.Own.TxLockKey.Sign(sellerRes.RedeemSigHash)

	buyerPub := sellerRes.BuyerTxLockKey.Compressed()
	sellerPub := sellerRes.SellerTxLockKey.Compressed()
	buyerSigBytes := decryptedBuyerSig.Bytes()
	sellerSigBytes := sellerSig.Bytes()

	tx := sellerRes.TxRedeem
	bitcoin.FinalizeTxRedeem(tx, sellerRes.LockOutput.RedeemScript, buyerPub[:], buyerSigBytes[:], sellerPub[:], sellerSigBytes[:])

	if err := i.recoverFromRedeem(tx); err != nil {
		t.Fatalf("recoverFromRedeem: %s", err)
	}

	if buyerXMR.Swept != destination {
		t.Fatalf("expected sweep to %s, got %s", destination, buyerXMR.Swept)
	}
	if i.rec.Info.Status != pswap.XmrRedeemed {
		t.Fatalf("expected status XmrRedeemed, got %s", i.rec.Info.Status)
	}
}

// TestRefund seeds a buyer Instance and checks that refund() decrypts the
// seller's refund encsig, combines it with the buyer's own plain
// signature, and broadcasts a valid TxRefund.
func TestRefund(t *testing.T) {
	cfg := testConfig()
	buyerRes, _ := runHandshake(t, cfg)

	ctx := context.Background()
	chainWallet := swaptest.NewWallet(100)
	buyerXMR := swaptest.NewXMRClient(1000)

	i, err := NewInstance(ctx, nil, chainWallet, buyerXMR, newTestStore(t), cfg, buyerRes, mcrypto.Address(""), "pw")
	if err != nil {
		t.Fatalf("NewInstance: %s", err)
	}

	cancelHash := buyerRes.TxCancel.TxHash()
	if err := i.refund(cancelHash); err != nil {
		t.Fatalf("refund: %s", err)
	}

	if i.rec.RefundTxID == "" {
		t.Fatalf("expected a recorded refund txid")
	}
	if i.rec.Info.Status != pswap.BtcRefunded {
		t.Fatalf("expected status BtcRefunded, got %s", i.rec.Info.Status)
	}
}
