package xmrmaker

import (
	"context"
	"testing"

	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/internal/swaptest"
	"github.com/noot/xmrbtc-swap/net/message"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
)

// TestResumeAfterLockMonero exercises a seller process crashing right
// after its Monero lock transfer broadcasts and before it sees that
// transfer confirm: a new Instance reconstructed from the persisted record via
// NewInstanceFromRecord must resume at the persisted status rather than
// restart from SetupComplete, so it must never call Transfer a second
// time, yet must still drive the swap through to BtcRedeemed.
func TestResumeAfterLockMonero(t *testing.T) {
	cfg := testConfig()
	buyerRes, sellerRes := runHandshake(t, cfg)

	ctx := context.Background()
	sellerConn, peerConn := swaptest.NewConnPair()
	chainWallet := swaptest.NewWallet(100)
	sellerXMR := swaptest.NewXMRClient(1000)
	sellerXMR.Received = cfg.XMRAmount
	sellerXMR.Confirmations = cfg.XMRConfTarget

	store := newTestStore(t)

	crashed, err := NewInstance(ctx, sellerConn, chainWallet, sellerXMR, store, cfg, sellerRes, mcrypto.Address(""), "pw")
	if err != nil {
		t.Fatalf("NewInstance: %s", err)
	}

	chainWallet.Confirm(sellerRes.LockTx.TxHash())
	if err := crashed.waitForLock(); err != nil {
		t.Fatalf("waitForLock: %s", err)
	}
	if err := crashed.lockMonero(); err != nil {
		t.Fatalf("lockMonero: %s", err)
	}
	if got := sellerXMR.TransferCount(); got != 1 {
		t.Fatalf("expected 1 transfer before crash, got %d", got)
	}

	rec, err := store.GetOngoing(crashed.rec.Info.SwapID)
	if err != nil {
		t.Fatalf("GetOngoing: %s", err)
	}
	if rec.Info.Status != pswap.XmrLockTxSent {
		t.Fatalf("expected persisted status XmrLockTxSent, got %s", rec.Info.Status)
	}

	// the crashed process is gone; only its persisted record and the
	// still-live peer connection survive.
	resumed, err := NewInstanceFromRecord(ctx, sellerConn, chainWallet, sellerXMR, store, rec, mcrypto.Address(""), "pw")
	if err != nil {
		t.Fatalf("NewInstanceFromRecord: %s", err)
	}
	if resumed.result.RedeemSigHash != sellerRes.RedeemSigHash {
		t.Fatalf("resumed result does not match original setup result")
	}

	buyerEncSig, err := buyerRes.SignBuyerRedeemEncSig()
	if err != nil {
		t.Fatalf("SignBuyerRedeemEncSig: %s", err)
	}

	go func() {
		msg, err := peerConn.Receive()
		if err != nil {
			return
		}
		if _, ok := msg.(*message.TransferProof); !ok {
			return
		}
		if err := peerConn.Send(&message.TransferProofAck{}); err != nil {
			return
		}
		_ = peerConn.Send(&message.EncSigNotification{RedeemEncryptedSig: buyerEncSig.Bytes()})
	}()

	// TxRedeem's txid is witness-independent (BIP-141), so it's safe to
	// mark it confirmed before resumed.Run ever broadcasts it.
	chainWallet.Confirm(sellerRes.TxRedeem.TxHash())

	if err := resumed.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if got := sellerXMR.TransferCount(); got != 1 {
		t.Fatalf("expected monero transfer to still have happened exactly once after resume, got %d", got)
	}

	finalRec, err := store.GetPast(resumed.rec.Info.SwapID)
	if err != nil {
		t.Fatalf("GetPast: %s", err)
	}
	if finalRec.Info.Status != pswap.BtcRedeemed {
		t.Fatalf("expected final status BtcRedeemed, got %s", finalRec.Info.Status)
	}
}
