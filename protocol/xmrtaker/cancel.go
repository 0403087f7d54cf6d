package xmrtaker

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fatih/color" //nolint:misspell

	"github.com/noot/xmrbtc-swap/bitcoin"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
)

// beginCancel drives the buyer's recourse once T1 has matured without the
// seller ever redeeming: broadcast the already-presigned TxCancel, then
// refund immediately, racing the seller's eventual TxPunish.
func (i *Instance) beginCancel() error {
	i.setStatus(pswap.CancelTimelockExpired)

	buyerPub := i.result.BuyerTxLockKey.Compressed()
	sellerPub := i.result.SellerTxLockKey.Compressed()

	tx := i.result.TxCancel
	bitcoin.FinalizeTxCancel(tx, i.result.LockOutput.RedeemScript, buyerPub[:], i.result.BuyerCancelSig, sellerPub[:], i.result.SellerCancelSig)

	cancelHash, err := i.btcWallet.BroadcastTx(i.ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to broadcast tx cancel: %w", err)
	}

	i.rec.CancelTxID = cancelHash.String()
	i.setStatus(pswap.BtcCancelled)
	log.Info(color.New(color.Bold).Sprintf("published tx cancel: txid=%s", cancelHash))

	if err := i.waitForConfirmation(cancelHash); err != nil {
		return err
	}

	return i.refund(cancelHash)
}

