package setup

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/noot/xmrbtc-swap/bitcoin"
)

// unsignedFamily is the entire Bitcoin transaction family and sighash set
// derivable from public information alone, once both parties' TxLock keys,
// the agreed amounts/timelocks, and the three destination scripts are
// known: the protocol is stateless on the wire, so neither party needs
// anything from the other to compute this. Both buyer and
// seller build this identically and independently before pre-signing.
type unsignedFamily struct {
	cancelOut *bitcoin.CancelOutput

	txCancel *wire.MsgTx
	txRefund *wire.MsgTx
	txPunish *wire.MsgTx
	txRedeem *wire.MsgTx

	cancelSigHash [32]byte
	refundSigHash [32]byte
	punishSigHash [32]byte
	redeemSigHash [32]byte
}

// buildUnsignedFamily builds TxCancel, TxRefund, TxPunish and TxRedeem
// against lockOutpoint (TxLock's own outpoint, known to both parties as
// soon as Msg2's PSBT is parsed) and returns their sighashes, ready for
// pre-signing.
func buildUnsignedFamily(
	cfg Config,
	lockOutpoint bitcoin.Outpoint,
	lockRedeemScript []byte,
	buyerPub, sellerPub *btcec.PublicKey,
	refundPkScript, redeemPkScript, punishPkScript []byte,
) (*unsignedFamily, error) {
	cancelAmount := cfg.BTCAmount - cfg.TxFee

	cancelOut, err := bitcoin.NewCancelOutput(buyerPub, sellerPub, cancelAmount, cfg.PunishTimelock)
	if err != nil {
		return nil, fmt.Errorf("failed to build cancel output: %w", err)
	}

	txCancel, err := bitcoin.BuildTxCancel(lockOutpoint, lockRedeemScript, cfg.BTCAmount, cfg.TxFee, cfg.CancelTimelock, cancelOut)
	if err != nil {
		return nil, fmt.Errorf("failed to build tx cancel: %w", err)
	}

	cancelOutpoint := bitcoin.Outpoint{Hash: txCancel.TxHash(), Index: 0}

	txRefund, err := bitcoin.BuildTxRefund(cancelOutpoint, cancelOut.RedeemScript, cancelAmount, cfg.TxFee, refundPkScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build tx refund: %w", err)
	}

	txPunish, err := bitcoin.BuildTxPunish(cancelOutpoint, cancelOut.RedeemScript, cancelAmount, cfg.TxFee, cfg.PunishTimelock, punishPkScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build tx punish: %w", err)
	}

	txRedeem, err := bitcoin.BuildTxRedeem(lockOutpoint, lockRedeemScript, cfg.BTCAmount, cfg.TxFee, redeemPkScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build tx redeem: %w", err)
	}

	cancelDigest, err := bitcoin.TxCancelSigHash(txCancel, lockRedeemScript, cfg.BTCAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to compute tx cancel sighash: %w", err)
	}
	refundDigest, err := bitcoin.TxRefundSigHash(txRefund, cancelOut.RedeemScript, cancelAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to compute tx refund sighash: %w", err)
	}
	punishDigest, err := bitcoin.TxPunishSigHash(txPunish, cancelOut.RedeemScript, cancelAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to compute tx punish sighash: %w", err)
	}
	redeemDigest, err := bitcoin.TxRedeemSigHash(txRedeem, lockRedeemScript, cfg.BTCAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to compute tx redeem sighash: %w", err)
	}

	return &unsignedFamily{
		cancelOut:     cancelOut,
		txCancel:      txCancel,
		txRefund:      txRefund,
		txPunish:      txPunish,
		txRedeem:      txRedeem,
		cancelSigHash: cancelDigest,
		refundSigHash: refundDigest,
		punishSigHash: punishDigest,
		redeemSigHash: redeemDigest,
	}, nil
}
