package xmrmaker

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/fatih/color" //nolint:misspell

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	"github.com/noot/xmrbtc-swap/crypto/dleq"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
	"github.com/noot/xmrbtc-swap/monero"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
)

// beginCancel drives the seller's recourse once T1 has matured without the
// buyer's redeem encsig arriving: broadcast the already-presigned
// TxCancel, then race the buyer's TxRefund landing on-chain against T2
// maturing on top of it.
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

	return i.raceRefundOrPunish(cancelHash)
}

// raceRefundOrPunish polls for whichever of the buyer's TxRefund or T2's
// maturity happens first: a TxRefund appearing lets the seller recover the
// buyer's Monero spend-key share; T2 maturing first lets the seller punish
// instead.
func (i *Instance) raceRefundOrPunish(cancelHash chainhash.Hash) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		refundTx, err := i.btcWallet.GetTransaction(i.ctx, i.result.TxRefund.TxHash())
		if err == nil && refundTx != nil {
			return i.recoverFromRefund(refundTx)
		}

		cancelHeight, err := i.btcWallet.ConfirmedHeight(i.ctx, cancelHash)
		if err == nil && cancelHeight > 0 {
			tip, err := i.btcWallet.BlockHeight(i.ctx)
			if err == nil && bitcoin.ClassifyCancelTimelock(cancelHeight, tip, i.cfg.PunishTimelock) == bitcoin.StagePunish {
				return i.punish()
			}
		}

		select {
		case <-i.ctx.Done():
			return i.ctx.Err()
		case <-ticker.C:
		}
	}
}

// recoverFromRefund extracts the seller's own revealed pre-signature from
// the buyer's broadcast TxRefund — the decrypted copy of encsig_seller_refund
// the buyer had to place there to complete it — and recovers the buyer's
// Monero spend-key share from it, then sweeps the joint wallet to the
// seller's refund destination.
func (i *Instance) recoverFromRefund(tx *wire.MsgTx) error {
	i.setStatus(pswap.BtcRefunded)

	sigBytes, err := bitcoin.ExtractCounterpartySignature(tx, i.result.RefundSigHash, i.result.SellerTxLockKey)
	if err != nil {
		return fmt.Errorf("failed to extract revealed tx refund signature: %w", err)
	}
	sig, err := secp.NewSignatureFromCompact(sigBytes)
	if err != nil {
		return fmt.Errorf("failed to parse revealed tx refund signature: %w", err)
	}

	recovered, err := adaptor.Recover(i.result.BuyerSpendKeyImageBTC, sig, i.result.RefundEncSig)
	if err != nil {
		return fmt.Errorf("failed to recover buyer's monero spend key: %w", err)
	}

	buyerSpendXMR, err := dleq.RecoverMoneroSpendKey(recovered)
	if err != nil {
		return fmt.Errorf("failed to convert recovered key to monero form: %w", err)
	}

	ownSpendXMR, err := i.result.Own.SpendKeyShareXMR()
	if err != nil {
		return fmt.Errorf("failed to read own monero spend key share: %w", err)
	}
	jointSpend := mcrypto.SumPrivateSpendKeys(ownSpendXMR, buyerSpendXMR)

	wallet, err := monero.RestoreJointWallet(
		i.ctx, i.xmrClient, i.result.LockAddress, jointSpend, i.result.JointViewPrivate,
		i.walletFilename(), i.walletPassword, i.rec.RestoreHeight,
	)
	if err != nil {
		return fmt.Errorf("failed to restore joint wallet: %w", err)
	}

	if _, err := wallet.Sweep(i.ctx, i.xmrClient, i.refundDestination); err != nil {
		return fmt.Errorf("failed to sweep refunded monero: %w", err)
	}

	i.setStatus(pswap.XmrRefunded)
	if err := i.store.Complete(i.rec); err != nil {
		log.Warnf("failed to mark swap complete: %s", err)
	}

	log.Info(color.New(color.Bold).Sprint("swap refunded: recovered monero from the buyer's tx refund"))
	return nil
}

// walletFilename derives a deterministic wallet-rpc filename for this
// swap's joint wallet from its swap ID.
func (i *Instance) walletFilename() string {
	id := i.rec.Info.SwapID
	return fmt.Sprintf("xmrmaker-joint-%x", id[:8])
}
