package xmrmaker

import (
	"context"
	"testing"
	"time"

	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/internal/swaptest"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
)

func init() {
	pollInterval = time.Millisecond
}

// TestRedeemHappyPath seeds a seller Instance with a matched handshake
// Result, signs a genuine buyer redeem encsig, and checks that redeem()
// finalizes and broadcasts a valid TxRedeem and marks the swap complete.
func TestRedeemHappyPath(t *testing.T) {
	cfg := testConfig()
	buyerRes, sellerRes := runHandshake(t, cfg)

	buyerEncSig, err := buyerRes.SignBuyerRedeemEncSig()
	if err != nil {
		t.Fatalf("SignBuyerRedeemEncSig: %s", err)
	}

	ctx := context.Background()
	chainWallet := swaptest.NewWallet(100)
	sellerXMR := swaptest.NewXMRClient(1000)

	i, err := NewInstance(ctx, nil, chainWallet, sellerXMR, newTestStore(t), cfg, sellerRes, mcrypto.Address(""), "pw")
	if err != nil {
		t.Fatalf("NewInstance: %s", err)
	}

	// TxRedeem's txid is witness-independent (BIP-141), so it's safe to
	// mark it confirmed before redeem() ever broadcasts it.
	chainWallet.Confirm(sellerRes.TxRedeem.TxHash())

	if err := i.redeem(buyerEncSig); err != nil {
		t.Fatalf("redeem: %s", err)
	}

	if i.rec.Info.Status != pswap.BtcRedeemed {
		t.Fatalf("expected status BtcRedeemed, got %s", i.rec.Info.Status)
	}
	if i.rec.RedeemTxID == "" {
		t.Fatalf("expected a recorded redeem txid")
	}
}
