package setup

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	swapnet "github.com/noot/xmrbtc-swap/net"
	"github.com/noot/xmrbtc-swap/net/message"
)

// jointKeys derives the Monero lock address and joint view key shared by
// RunBuyer and RunSeller, the only piece of the setup protocol's output
// computable from Msg0/Msg1 alone.
func jointKeys(cfg Config, own *Keys, cp *CounterpartyContribution) (*mcrypto.PublicKey, *mcrypto.PublicKey, *mcrypto.PrivateViewKey, mcrypto.Address, error) {
	ownSpendXMR, err := own.PublicSpendKeyImageXMR()
	if err != nil {
		return nil, nil, nil, "", fmt.Errorf("failed to derive own xmr spend key image: %w", err)
	}

	jointSpend := mcrypto.SumPublicKeys(ownSpendXMR, cp.SpendImageXMRPub)
	jointViewPrivate := mcrypto.SumPrivateViewKeys(own.ViewKeyShare, cp.View)
	jointView := jointViewPrivate.Public()
	address := mcrypto.NewAddress(cfg.Network, jointSpend, jointView)

	return jointSpend, jointView, jointViewPrivate, address, nil
}

// RunBuyer drives the buyer's side of the setup handshake over conn: send
// Msg0, receive and verify Msg1, fund and send TxLock as Msg2, receive and
// verify Msg3, pre-sign and send Msg4.
func RunBuyer(ctx context.Context, conn swapnet.Conn, keys *Keys, cfg Config, wallet bitcoin.Wallet) (*Result, error) {
	refundScript, err := wallet.NewChangeScript(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to derive refund script: %w", err)
	}

	msg0, err := keys.Contribution(refundScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build contribution: %w", err)
	}
	if err := conn.Send(msg0); err != nil {
		return nil, fmt.Errorf("failed to send msg0: %w", err)
	}

	raw1, err := conn.Receive()
	if err != nil {
		return nil, fmt.Errorf("failed to receive msg1: %w", err)
	}
	msg1, ok := raw1.(*message.CounterContribution)
	if !ok {
		return nil, fmt.Errorf("expected CounterContribution, got %s", raw1.Type())
	}

	cp, err := ParseAndVerify(msg1.TxLockPublicKey, msg1.SpendKeyShareXMR, msg1.SpendKeyShareBTC, msg1.DLEqProof, msg1.ViewKeyShare)
	if err != nil {
		return nil, fmt.Errorf("failed to verify seller's contribution: %w", err)
	}

	jointSpend, jointView, jointViewPrivate, address, err := jointKeys(cfg, keys, cp)
	if err != nil {
		return nil, err
	}

	lockOut, err := bitcoin.NewLockOutput(keys.TxLockKey.PublicKey().BtcEC(), cp.TxLockKey.BtcEC(), cfg.BTCAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to build lock output: %w", err)
	}

	funded, err := bitcoin.BuildFundedTxLock(ctx, wallet, lockOut, cfg.FeeRate)
	if err != nil {
		return nil, fmt.Errorf("failed to fund tx lock: %w", err)
	}
	if err := bitcoin.SignFundingInputs(ctx, wallet, funded.Tx, funded.PrevScripts, funded.PrevValues); err != nil {
		return nil, fmt.Errorf("failed to sign tx lock funding inputs: %w", err)
	}

	psbt, err := bitcoin.EncodeTxLockPSBT(funded.Tx, funded.PrevScripts, funded.PrevValues)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tx lock psbt: %w", err)
	}
	if err := conn.Send(&message.TxLockMessage{PSBT: psbt}); err != nil {
		return nil, fmt.Errorf("failed to send msg2: %w", err)
	}

	lockOutpoint := bitcoin.Outpoint{Hash: funded.Tx.TxHash(), Index: funded.LockVout}
	fam, err := buildUnsignedFamily(cfg, lockOutpoint, lockOut.RedeemScript, keys.TxLockKey.PublicKey().BtcEC(), cp.TxLockKey.BtcEC(), msg0.RefundScript, msg1.RedeemScript, msg1.PunishScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build unsigned tx family: %w", err)
	}

	raw3, err := conn.Receive()
	if err != nil {
		return nil, fmt.Errorf("failed to receive msg3: %w", err)
	}
	msg3, ok := raw3.(*message.SellerSignatures)
	if !ok {
		return nil, fmt.Errorf("expected SellerSignatures, got %s", raw3.Type())
	}

	refundEncSig, err := adaptor.NewEncryptedSignatureFromBytes(msg3.RefundEncryptedSig)
	if err != nil {
		return nil, fmt.Errorf("invalid seller refund encrypted signature: %w", err)
	}

	if err := verifySellerSignatures(fam, cp.TxLockKey, keys.PublicSpendKeyImageBTC(), msg3.CancelSignature, refundEncSig); err != nil {
		return nil, fmt.Errorf("failed to verify msg3: %w", err)
	}

	buyerCancelSig, buyerPunishSig := buyerPresign(keys, fam)

	msg4 := &message.BuyerSignatures{
		CancelSignature: buyerCancelSig,
		PunishSignature: buyerPunishSig,
	}
	if err := conn.Send(msg4); err != nil {
		return nil, fmt.Errorf("failed to send msg4: %w", err)
	}

	return &Result{
		Own:                    keys,
		BuyerTxLockKey:         keys.TxLockKey.PublicKey(),
		SellerTxLockKey:        cp.TxLockKey,
		BuyerSpendKeyImageBTC:  keys.PublicSpendKeyImageBTC(),
		SellerSpendKeyImageBTC: cp.SpendImageBTC,
		Counterparty:           cp,
		JointSpendPublic:       jointSpend,
		JointViewPublic:        jointView,
		JointViewPrivate:       jointViewPrivate,
		LockAddress:            address,
		BuyerRefundPkScript:    msg0.RefundScript,
		SellerRedeemPkScript:   msg1.RedeemScript,
		SellerPunishPkScript:   msg1.PunishScript,
		LockOutput:             lockOut,
		LockTx:                 funded.Tx,
		LockVout:               funded.LockVout,
		LockOutpoint:           lockOutpoint,
		CancelOutput:           fam.cancelOut,
		TxCancel:               fam.txCancel,
		TxRefund:               fam.txRefund,
		TxPunish:               fam.txPunish,
		TxRedeem:               fam.txRedeem,
		CancelSigHash:          fam.cancelSigHash,
		RefundSigHash:          fam.refundSigHash,
		PunishSigHash:          fam.punishSigHash,
		RedeemSigHash:          fam.redeemSigHash,
		SellerCancelSig:        msg3.CancelSignature,
		BuyerCancelSig:         buyerCancelSig,
		BuyerPunishSig:         buyerPunishSig,
		RefundEncSig:           refundEncSig,
	}, nil
}

// RunSeller drives the seller's side of the setup handshake over conn:
// receive Msg0, send Msg1, receive and validate Msg2's TxLock, pre-sign and
// send Msg3, receive and verify Msg4.
func RunSeller(ctx context.Context, conn swapnet.Conn, keys *Keys, cfg Config, wallet bitcoin.Wallet) (*Result, error) {
	raw0, err := conn.Receive()
	if err != nil {
		return nil, fmt.Errorf("failed to receive msg0: %w", err)
	}
	msg0, ok := raw0.(*message.Contribution)
	if !ok {
		return nil, fmt.Errorf("expected Contribution, got %s", raw0.Type())
	}

	cp, err := ParseAndVerify(msg0.TxLockPublicKey, msg0.SpendKeyShareXMR, msg0.SpendKeyShareBTC, msg0.DLEqProof, msg0.ViewKeyShare)
	if err != nil {
		return nil, fmt.Errorf("failed to verify buyer's contribution: %w", err)
	}

	redeemScript, err := wallet.NewChangeScript(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to derive redeem script: %w", err)
	}
	punishScript, err := wallet.NewChangeScript(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to derive punish script: %w", err)
	}

	msg1, err := keys.CounterContribution(redeemScript, punishScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build counter contribution: %w", err)
	}
	if err := conn.Send(msg1); err != nil {
		return nil, fmt.Errorf("failed to send msg1: %w", err)
	}

	jointSpend, jointView, jointViewPrivate, address, err := jointKeys(cfg, keys, cp)
	if err != nil {
		return nil, err
	}

	lockOut, err := bitcoin.NewLockOutput(cp.TxLockKey.BtcEC(), keys.TxLockKey.PublicKey().BtcEC(), cfg.BTCAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to build lock output: %w", err)
	}

	raw2, err := conn.Receive()
	if err != nil {
		return nil, fmt.Errorf("failed to receive msg2: %w", err)
	}
	msg2, ok := raw2.(*message.TxLockMessage)
	if !ok {
		return nil, fmt.Errorf("expected TxLockMessage, got %s", raw2.Type())
	}

	lockTx, err := bitcoin.DecodeTxLockPSBT(msg2.PSBT)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tx lock psbt: %w", err)
	}

	lockVout, err := findLockVout(lockTx, lockOut)
	if err != nil {
		return nil, err
	}
	if err := bitcoin.ValidateLockOutput(lockTx, lockVout, lockOut); err != nil {
		return nil, fmt.Errorf("invalid tx lock from buyer: %w", err)
	}

	lockOutpoint := bitcoin.Outpoint{Hash: lockTx.TxHash(), Index: lockVout}
	fam, err := buildUnsignedFamily(cfg, lockOutpoint, lockOut.RedeemScript, cp.TxLockKey.BtcEC(), keys.TxLockKey.PublicKey().BtcEC(), msg0.RefundScript, redeemScript, punishScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build unsigned tx family: %w", err)
	}

	sellerCancelSig, refundEncSig, err := sellerPresign(keys, fam, cp.SpendImageBTC)
	if err != nil {
		return nil, fmt.Errorf("failed to pre-sign msg3: %w", err)
	}

	msg3 := &message.SellerSignatures{
		CancelSignature:    sellerCancelSig,
		RefundEncryptedSig: refundEncSig.Bytes(),
	}
	if err := conn.Send(msg3); err != nil {
		return nil, fmt.Errorf("failed to send msg3: %w", err)
	}

	raw4, err := conn.Receive()
	if err != nil {
		return nil, fmt.Errorf("failed to receive msg4: %w", err)
	}
	msg4, ok := raw4.(*message.BuyerSignatures)
	if !ok {
		return nil, fmt.Errorf("expected BuyerSignatures, got %s", raw4.Type())
	}

	if err := verifyBuyerSignatures(fam, cp.TxLockKey, msg4.CancelSignature, msg4.PunishSignature); err != nil {
		return nil, fmt.Errorf("failed to verify msg4: %w", err)
	}

	return &Result{
		Own:                    keys,
		BuyerTxLockKey:         cp.TxLockKey,
		SellerTxLockKey:        keys.TxLockKey.PublicKey(),
		BuyerSpendKeyImageBTC:  cp.SpendImageBTC,
		SellerSpendKeyImageBTC: keys.PublicSpendKeyImageBTC(),
		Counterparty:           cp,
		JointSpendPublic:       jointSpend,
		JointViewPublic:        jointView,
		JointViewPrivate:       jointViewPrivate,
		LockAddress:            address,
		BuyerRefundPkScript:    msg0.RefundScript,
		SellerRedeemPkScript:   redeemScript,
		SellerPunishPkScript:   punishScript,
		LockOutput:             lockOut,
		LockTx:                 lockTx,
		LockVout:               lockVout,
		LockOutpoint:           lockOutpoint,
		CancelOutput:           fam.cancelOut,
		TxCancel:               fam.txCancel,
		TxRefund:               fam.txRefund,
		TxPunish:               fam.txPunish,
		TxRedeem:               fam.txRedeem,
		CancelSigHash:          fam.cancelSigHash,
		RefundSigHash:          fam.refundSigHash,
		PunishSigHash:          fam.punishSigHash,
		RedeemSigHash:          fam.redeemSigHash,
		SellerCancelSig:        sellerCancelSig,
		BuyerCancelSig:         msg4.CancelSignature,
		BuyerPunishSig:         msg4.PunishSignature,
		RefundEncSig:           refundEncSig,
	}, nil
}

// findLockVout finds want's position among a received TxLock's outputs,
// matching by value and pkScript the same way bitcoin.BuildFundedTxLock
// locates its own lock output (the buyer chose it, so the seller can't
// assume index 0).
func findLockVout(tx *wire.MsgTx, want *bitcoin.LockOutput) (uint32, error) {
	for i, out := range tx.TxOut {
		if out.Value == want.TxOut.Value && bytes.Equal(out.PkScript, want.TxOut.PkScript) {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("tx lock from buyer does not contain the expected lock output")
}
