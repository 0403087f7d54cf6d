package setup

import (
	"context"
	"testing"

	"github.com/noot/xmrbtc-swap/bitcoin"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/internal/swaptest"
)

func testConfig() Config {
	return Config{
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

// TestHandshakeSymmetric drives RunBuyer and RunSeller concurrently over
// an in-memory pipe and checks that both sides converge on the same
// TxLock, the same transaction family, and complementary encrypted
// signatures.
func TestHandshakeSymmetric(t *testing.T) {
	cfg := testConfig()

	buyerConn, sellerConn := swaptest.NewConnPair()
	buyerWallet := swaptest.NewWallet(100)
	sellerWallet := swaptest.NewWallet(100)

	buyerKeys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("buyer GenerateKeys: %s", err)
	}
	sellerKeys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("seller GenerateKeys: %s", err)
	}

	type out struct {
		res *Result
		err error
	}
	buyerCh := make(chan out, 1)
	sellerCh := make(chan out, 1)

	ctx := context.Background()
	go func() {
		res, err := RunBuyer(ctx, buyerConn, buyerKeys, cfg, buyerWallet)
		buyerCh <- out{res, err}
	}()
	go func() {
		res, err := RunSeller(ctx, sellerConn, sellerKeys, cfg, sellerWallet)
		sellerCh <- out{res, err}
	}()

	buyerOut := <-buyerCh
	sellerOut := <-sellerCh

	if buyerOut.err != nil {
		t.Fatalf("RunBuyer: %s", buyerOut.err)
	}
	if sellerOut.err != nil {
		t.Fatalf("RunSeller: %s", sellerOut.err)
	}

	buyerRes, sellerRes := buyerOut.res, sellerOut.res

	if buyerRes.LockAddress != sellerRes.LockAddress {
		t.Fatalf("lock address mismatch: buyer %s seller %s", buyerRes.LockAddress, sellerRes.LockAddress)
	}
	if buyerRes.LockTx.TxHash() != sellerRes.LockTx.TxHash() {
		t.Fatalf("lock tx hash mismatch")
	}
	if buyerRes.TxRedeem.TxHash() != sellerRes.TxRedeem.TxHash() {
		t.Fatalf("tx redeem hash mismatch")
	}
	if buyerRes.TxRefund.TxHash() != sellerRes.TxRefund.TxHash() {
		t.Fatalf("tx refund hash mismatch")
	}

	buyerEncSig, err := buyerRes.SignBuyerRedeemEncSig()
	if err != nil {
		t.Fatalf("SignBuyerRedeemEncSig: %s", err)
	}
	if err := sellerRes.VerifyBuyerRedeemEncSig(buyerEncSig); err != nil {
		t.Fatalf("seller failed to verify a freshly signed buyer redeem encsig: %s", err)
	}
}

// TestRunSellerRejectsMismatchedDLEqProof feeds RunSeller a Msg0 whose
// Bitcoin spend-key-share image doesn't match the one the DLEQ proof was
// made for, and checks RunSeller aborts rather than proceeding: a buyer
// who can't produce a valid cross-curve proof must never get as far as a
// funded TxLock.
func TestRunSellerRejectsMismatchedDLEqProof(t *testing.T) {
	cfg := testConfig()

	buyerConn, sellerConn := swaptest.NewConnPair()
	sellerWallet := swaptest.NewWallet(100)

	buyerKeys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("buyer GenerateKeys: %s", err)
	}
	otherKeys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("other GenerateKeys: %s", err)
	}

	refundScript, err := sellerWallet.NewChangeScript(context.Background())
	if err != nil {
		t.Fatalf("NewChangeScript: %s", err)
	}
	msg0, err := buyerKeys.Contribution(refundScript)
	if err != nil {
		t.Fatalf("Contribution: %s", err)
	}

	// Swap in an unrelated spend-key-share image: the DLEQ proof still
	// attests to buyerKeys' own secret, not otherKeys', so verification
	// must fail.
	otherSpendBTC := otherKeys.PublicSpendKeyImageBTC().Compressed()
	msg0.SpendKeyShareBTC = otherSpendBTC[:]

	if err := buyerConn.Send(msg0); err != nil {
		t.Fatalf("send tampered msg0: %s", err)
	}

	sellerKeys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("seller GenerateKeys: %s", err)
	}

	if _, err := RunSeller(context.Background(), sellerConn, sellerKeys, cfg, sellerWallet); err == nil {
		t.Fatalf("expected RunSeller to reject a mismatched DLEQ proof, got nil error")
	}
}
