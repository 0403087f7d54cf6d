package setup

import (
	"fmt"

	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// sellerPresign produces Msg3: a plain signature over TxCancel under the
// seller's own TxLock key, and an adaptor signature over TxRefund signed
// under the same key but encrypted under the buyer's S_b_btc, so the buyer
// can decrypt it with their own s_b and publishing TxRefund later leaks
// s_b back to the seller.
func sellerPresign(keys *Keys, fam *unsignedFamily, buyerSpendImageBTC *secp.PublicKey) (cancelSig []byte, refundEncSig *adaptor.EncryptedSignature, err error) {
	sig := keys.TxLockKey.Sign(fam.cancelSigHash)
	sigBytes := sig.Bytes()

	refundEncSig, err = adaptor.EncSign(keys.TxLockKey, buyerSpendImageBTC, fam.refundSigHash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to adaptor-sign tx refund: %w", err)
	}

	return sigBytes[:], refundEncSig, nil
}

// buyerPresign produces Msg4: plain signatures over TxCancel and TxPunish
// under the buyer's own TxLock key. It does not touch TxRedeem: the buyer's
// adaptor signature over it is produced later, by Result.SignBuyerRedeemEncSig,
// once it's safe to.
func buyerPresign(keys *Keys, fam *unsignedFamily) (cancelSig, punishSig []byte) {
	cSig := keys.TxLockKey.Sign(fam.cancelSigHash)
	cBytes := cSig.Bytes()

	pSig := keys.TxLockKey.Sign(fam.punishSigHash)
	pBytes := pSig.Bytes()

	return cBytes[:], pBytes[:]
}

// verifySellerSignatures checks Msg3 against the agreed transaction family
// before the buyer stores it: sig_seller_cancel must verify under the
// seller's TxLock key, and encsig_seller_refund must verify as an adaptor
// signature under the seller's key encrypted for the buyer's own spend-key
// image.
func verifySellerSignatures(fam *unsignedFamily, sellerTxLockPub, buyerSpendImageBTC *secp.PublicKey, cancelSig []byte, refundEncSig *adaptor.EncryptedSignature) error {
	sig, err := secp.NewSignatureFromCompact(cancelSig)
	if err != nil {
		return fmt.Errorf("invalid seller cancel signature: %w", err)
	}
	if err := sellerTxLockPub.Verify(fam.cancelSigHash, sig); err != nil {
		return fmt.Errorf("seller cancel signature: %w", err)
	}

	if err := adaptor.VerifyEncSig(sellerTxLockPub, buyerSpendImageBTC, fam.refundSigHash, refundEncSig); err != nil {
		return fmt.Errorf("seller refund encrypted signature: %w", err)
	}

	return nil
}

// verifyBuyerSignatures checks Msg4 against the agreed transaction family
// before the seller stores it (minus the redeem encsig, which Msg4 no
// longer carries — see
// Result.VerifyBuyerRedeemEncSig).
func verifyBuyerSignatures(fam *unsignedFamily, buyerTxLockPub *secp.PublicKey, cancelSig, punishSig []byte) error {
	cSig, err := secp.NewSignatureFromCompact(cancelSig)
	if err != nil {
		return fmt.Errorf("invalid buyer cancel signature: %w", err)
	}
	if err := buyerTxLockPub.Verify(fam.cancelSigHash, cSig); err != nil {
		return fmt.Errorf("buyer cancel signature: %w", err)
	}

	pSig, err := secp.NewSignatureFromCompact(punishSig)
	if err != nil {
		return fmt.Errorf("invalid buyer punish signature: %w", err)
	}
	if err := buyerTxLockPub.Verify(fam.punishSigHash, pSig); err != nil {
		return fmt.Errorf("buyer punish signature: %w", err)
	}

	return nil
}
