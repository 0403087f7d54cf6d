package xmrtaker

import (
	"context"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/internal/swaptest"
	"github.com/noot/xmrbtc-swap/net/message"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
)

// lockCountingWallet wraps swaptest.Wallet to count how many times TxLock
// specifically is broadcast, so a test can assert a resumed buyer never
// rebroadcasts its own lock transaction a second time.
type lockCountingWallet struct {
	*swaptest.Wallet

	mu       sync.Mutex
	lockHash chainhash.Hash
	count    int
}

func (w *lockCountingWallet) BroadcastTx(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	if tx.TxHash() == w.lockHash {
		w.mu.Lock()
		w.count++
		w.mu.Unlock()
	}
	return w.Wallet.BroadcastTx(ctx, tx)
}

func (w *lockCountingWallet) lockBroadcastCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

var _ bitcoin.Wallet = (*lockCountingWallet)(nil)

// TestResumeAfterPublishLock exercises a buyer process crashing right after
// TxLock broadcasts and before it receives the seller's transfer proof: a
// new Instance reconstructed from the persisted record via
// NewInstanceFromRecord must resume at the persisted status rather than
// restart from SetupComplete, so it must never call BroadcastTx on TxLock a
// second time, yet must still drive the swap through to XmrRedeemed.
func TestResumeAfterPublishLock(t *testing.T) {
	cfg := testConfig()
	buyerRes, sellerRes := runHandshake(t, cfg)

	ctx := context.Background()
	buyerConn, peerConn := swaptest.NewConnPair()
	chainWallet := &lockCountingWallet{Wallet: swaptest.NewWallet(100), lockHash: buyerRes.LockTx.TxHash()}
	buyerXMR := swaptest.NewXMRClient(1000)
	buyerXMR.Received = cfg.XMRAmount
	buyerXMR.Confirmations = cfg.XMRConfTarget

	destination := mcrypto.Address("buyer-destination-address")
	store := newTestStore(t)

	crashed, err := NewInstance(ctx, buyerConn, chainWallet, buyerXMR, store, cfg, buyerRes, destination, "pw")
	if err != nil {
		t.Fatalf("NewInstance: %s", err)
	}

	if err := crashed.publishLock(); err != nil {
		t.Fatalf("publishLock: %s", err)
	}
	if got := chainWallet.lockBroadcastCount(); got != 1 {
		t.Fatalf("expected 1 tx lock broadcast before crash, got %d", got)
	}

	rec, err := store.GetOngoing(crashed.rec.Info.SwapID)
	if err != nil {
		t.Fatalf("GetOngoing: %s", err)
	}
	if rec.Info.Status != pswap.BtcLockPublished {
		t.Fatalf("expected persisted status BtcLockPublished, got %s", rec.Info.Status)
	}

	// the crashed process is gone; only its persisted record and the
	// still-live peer connection survive.
	resumed, err := NewInstanceFromRecord(ctx, buyerConn, chainWallet, buyerXMR, store, rec, destination, "pw")
	if err != nil {
		t.Fatalf("NewInstanceFromRecord: %s", err)
	}
	if resumed.result.RedeemSigHash != buyerRes.RedeemSigHash {
		t.Fatalf("resumed result does not match original setup result")
	}

	chainWallet.Confirm(resumed.result.LockTx.TxHash())

	// the seller side of the wire: hands over a transfer proof, waits for
	// the ack, then once it sees the buyer's redeem encsig, builds and
	// broadcasts TxRedeem exactly the way xmrmaker's redeem() would.
	go func() {
		if err := peerConn.Send(&message.TransferProof{TxHash: "txhash-1", TxKey: "txkey-1"}); err != nil {
			return
		}
		ackMsg, err := peerConn.Receive()
		if err != nil {
			return
		}
		if _, ok := ackMsg.(*message.TransferProofAck); !ok {
			return
		}

		encSigMsg, err := peerConn.Receive()
		if err != nil {
			return
		}
		notification, ok := encSigMsg.(*message.EncSigNotification)
		if !ok {
			return
		}
		encSig, err := adaptor.NewEncryptedSignatureFromBytes(notification.RedeemEncryptedSig)
		if err != nil {
			return
		}

		decryptedBuyerSig := adaptor.Decrypt(sellerRes.Own.SpendKeyShareBTC(), encSig)
		sellerSig := sellerRes.Own.TxLockKey.Sign(sellerRes.RedeemSigHash)

		buyerPub := sellerRes.BuyerTxLockKey.Compressed()
		sellerPub := sellerRes.SellerTxLockKey.Compressed()
		buyerSigBytes := decryptedBuyerSig.Bytes()
		sellerSigBytes := sellerSig.Bytes()

		redeemTx := sellerRes.TxRedeem
		bitcoin.FinalizeTxRedeem(redeemTx, sellerRes.LockOutput.RedeemScript, buyerPub[:], buyerSigBytes[:], sellerPub[:], sellerSigBytes[:])

		if _, err := chainWallet.BroadcastTx(ctx, redeemTx); err != nil {
			return
		}
		chainWallet.Confirm(redeemTx.TxHash())
	}()

	if err := resumed.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if got := chainWallet.lockBroadcastCount(); got != 1 {
		t.Fatalf("expected tx lock to still have been broadcast exactly once after resume, got %d", got)
	}

	finalRec, err := store.GetPast(resumed.rec.Info.SwapID)
	if err != nil {
		t.Fatalf("GetPast: %s", err)
	}
	if finalRec.Info.Status != pswap.XmrRedeemed {
		t.Fatalf("expected final status XmrRedeemed, got %s", finalRec.Info.Status)
	}
}
