package xmrtaker

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fatih/color" //nolint:misspell

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
)

// refund decrypts the seller's pre-signature for TxRefund (delivered during
// setup as encsig_seller_refund), completes it with the buyer's own plain
// signature, and broadcasts it as soon as TxCancel confirms — the buyer's
// best chance of beating the seller's eventual TxPunish once T2 matures.
// It is re-entrant: a process resuming at CancelTimelockExpired/BtcCancelled
// calls this again, so it checks whether TxRefund already landed on-chain
// before broadcasting a second time.
func (i *Instance) refund(cancelHash chainhash.Hash) error {
	hash := i.result.TxRefund.TxHash()
	if tx, err := i.btcWallet.GetTransaction(i.ctx, hash); err == nil && tx != nil {
		return i.finishRefund(hash)
	}

	sellerSig := adaptor.Decrypt(i.result.Own.SpendKeyShareBTC(), i.result.RefundEncSig)
	buyerSig := i.result.Own.TxLockKey.Sign(i.result.RefundSigHash)

	buyerSigBytes := buyerSig.Bytes()
	sellerSigBytes := sellerSig.Bytes()
	buyerPub := i.result.BuyerTxLockKey.Compressed()
	sellerPub := i.result.SellerTxLockKey.Compressed()

	tx := i.result.TxRefund
	bitcoin.FinalizeTxRefund(tx, i.result.CancelOutput.RedeemScript, buyerPub[:], buyerSigBytes[:], sellerPub[:], sellerSigBytes[:])

	broadcastHash, err := i.btcWallet.BroadcastTx(i.ctx, tx)
	if err != nil {
		if punished, perr := i.sellerPunished(); perr == nil && punished {
			i.setStatus(pswap.BtcPunished)
			if cerr := i.store.Complete(i.rec); cerr != nil {
				log.Warnf("failed to mark swap complete: %s", cerr)
			}
			return fmt.Errorf("too late: seller already published tx punish")
		}
		return fmt.Errorf("failed to broadcast tx refund: %w", err)
	}

	return i.finishRefund(broadcastHash)
}

func (i *Instance) finishRefund(hash chainhash.Hash) error {
	i.rec.RefundTxID = hash.String()
	i.setStatus(pswap.BtcRefunded)
	if err := i.store.Complete(i.rec); err != nil {
		log.Warnf("failed to mark swap complete: %s", err)
	}

	log.Info(color.New(color.Bold).Sprintf("swap refunded: recovered own bitcoin, txid=%s", hash))
	return nil
}

// sellerPunished reports whether TxPunish has already been broadcast,
// which the buyer's refund attempt may discover only after its own
// broadcast is rejected for double-spending TxCancel's output.
func (i *Instance) sellerPunished() (bool, error) {
	tx, err := i.btcWallet.GetTransaction(i.ctx, i.result.TxPunish.TxHash())
	if err != nil {
		return false, err
	}
	return tx != nil, nil
}
