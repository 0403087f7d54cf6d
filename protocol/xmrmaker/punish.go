package xmrmaker

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fatih/color" //nolint:misspell

	"github.com/noot/xmrbtc-swap/bitcoin"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
)

// punish broadcasts TxPunish once T2 has matured without the buyer ever
// publishing TxRefund, spending TxCancel's output to the seller's own
// address using the buyer's Msg4 punish signature plus a fresh seller
// signature. It is re-entrant: a process resuming at BtcPunishable calls
// this again, so it checks whether TxPunish already landed on-chain before
// broadcasting a second time.
func (i *Instance) punish() error {
	i.setStatus(pswap.BtcPunishable)

	hash := i.result.TxPunish.TxHash()
	if tx, err := i.btcWallet.GetTransaction(i.ctx, hash); err == nil && tx != nil {
		return i.finishPunish(hash)
	}

	sellerSig := i.result.Own.TxLockKey.Sign(i.result.PunishSigHash)
	sellerSigBytes := sellerSig.Bytes()

	buyerPub := i.result.BuyerTxLockKey.Compressed()
	sellerPub := i.result.SellerTxLockKey.Compressed()

	tx := i.result.TxPunish
	bitcoin.FinalizeTxPunish(tx, i.result.CancelOutput.RedeemScript, buyerPub[:], i.result.BuyerPunishSig, sellerPub[:], sellerSigBytes[:])

	broadcastHash, err := i.btcWallet.BroadcastTx(i.ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to broadcast tx punish: %w", err)
	}

	return i.finishPunish(broadcastHash)
}

func (i *Instance) finishPunish(hash chainhash.Hash) error {
	i.rec.PunishTxID = hash.String()
	i.setStatus(pswap.BtcPunished)
	if err := i.store.Complete(i.rec); err != nil {
		log.Warnf("failed to mark swap complete: %s", err)
	}

	log.Info(color.New(color.Bold).Sprintf("swap punished: buyer forfeited the lock, txid=%s", hash))
	return nil
}
