// Package xmrmaker drives the seller's side of a swap once setup.RunSeller
// has returned: locking Monero, proving the lock to the buyer, and
// redeeming Bitcoin once the buyer's encrypted signature arrives. Its
// cancel/punish recourse lives in cancel.go and punish.go.
//
// Structured as a per-swap struct holding the peer connection, wallets and
// mutable swap.Info, a sequential happy-path Run, and a reclaim path that
// sums private key shares and restores a wallet once the counterparty's
// half leaks on-chain.
package xmrmaker

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fatih/color" //nolint:misspell
	logging "github.com/ipfs/go-log/v2"

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/internal/backoff"
	"github.com/noot/xmrbtc-swap/monero"
	swapnet "github.com/noot/xmrbtc-swap/net"
	"github.com/noot/xmrbtc-swap/net/message"
	"github.com/noot/xmrbtc-swap/protocol/setup"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
	"github.com/noot/xmrbtc-swap/swap/db"
)

var log = logging.Logger("xmrmaker")

// pollInterval is how often the state machine re-checks chain state while
// waiting on a confirmation or a timelock to mature. Kept as a var rather
// than a const so tests can shrink it.
var pollInterval = 20 * time.Second

// lockMempoolTimeout bounds how long the seller waits for TxLock to appear
// in a block before giving up on the swap entirely.
const lockMempoolTimeout = 30 * time.Minute

// Instance drives one seller-side swap to completion. It is built once
// setup.RunSeller returns and holds everything that changes no further:
// the peer connection, both chain clients, the persisted record, and the
// already-finalized setup.Result.
type Instance struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn      swapnet.Conn
	btcWallet bitcoin.Wallet
	xmrClient monero.Client
	store     *db.Store

	cfg    setup.Config
	result *setup.Result
	rec    *db.Record

	// refundDestination is where recovered Monero is swept to if the
	// buyer refunds instead of cooperating on redeem.
	refundDestination mcrypto.Address
	walletPassword    string

	transferProof monero.TransferProof
}

// NewInstance builds the seller's post-setup state machine, persisting an
// initial db.Record so a crash between here and the first real step still
// leaves something for a resumed process to find.
func NewInstance(
	ctx context.Context,
	conn swapnet.Conn,
	btcWallet bitcoin.Wallet,
	xmrClient monero.Client,
	store *db.Store,
	cfg setup.Config,
	result *setup.Result,
	refundDestination mcrypto.Address,
	walletPassword string,
) (*Instance, error) {
	cctx, cancel := context.WithCancel(ctx)

	i := &Instance{
		ctx:               cctx,
		cancel:            cancel,
		conn:              conn,
		btcWallet:         btcWallet,
		xmrClient:         xmrClient,
		store:             store,
		cfg:               cfg,
		result:            result,
		refundDestination: refundDestination,
		walletPassword:    walletPassword,
	}

	cp, err := result.ToCheckpoint(setup.RoleSeller, result.Own, result.Counterparty, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build initial checkpoint: %w", err)
	}

	i.rec = &db.Record{
		Info:       *pswap.NewInfo(swapID(result), pswap.Seller, uint64(cfg.BTCAmount), cfg.XMRAmount),
		Checkpoint: cp,
	}
	i.rec.Info.Status = pswap.SetupComplete

	if err := store.Put(i.rec); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to persist initial swap record: %w", err)
	}

	return i, nil
}

// swapID derives a stable identifier from TxLock's outpoint, the one value
// both parties agree on independently the moment Msg2 is processed.
func swapID(r *setup.Result) pswap.ID {
	h := sha256.New()
	hash := r.LockOutpoint.Hash
	h.Write(hash[:])

	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], r.LockOutpoint.Index)
	h.Write(idx[:])

	var id pswap.ID
	copy(id[:], h.Sum(nil))
	return id
}

func (i *Instance) setStatus(s pswap.Status) {
	i.rec.Info.Status = s
	if err := i.store.Put(i.rec); err != nil {
		log.Warnf("failed to persist swap status %s: %s", s, err)
	}
}

// persistCheckpoint rebuilds and re-persists the checkpoint after mutating
// result.RedeemEncSig, the one piece of Result that changes after setup for
// the seller: without this, a process that crashes after learning the
// buyer's redeem encsig but before broadcasting tx redeem would come back
// up with no way to redeem other than waiting on the buyer to resend it.
func (i *Instance) persistCheckpoint() {
	cp, err := i.result.ToCheckpoint(setup.RoleSeller, i.result.Own, i.result.Counterparty, i.cfg)
	if err != nil {
		log.Warnf("failed to rebuild checkpoint: %s", err)
		return
	}
	i.rec.Checkpoint = cp
	if err := i.store.Put(i.rec); err != nil {
		log.Warnf("failed to persist checkpoint: %s", err)
	}
}

// NewInstanceFromRecord reconstructs a seller-side Instance from a record an
// earlier, now-dead process persisted, restoring the setup.Result from its
// checkpoint instead of re-running the handshake. Run dispatches on
// rec.Info.Status, so a swap resumed here picks up after whichever step
// last persisted rather than repeating it — in particular, a seller that
// crashed after lockMonero already ran does not call Transfer again.
func NewInstanceFromRecord(
	ctx context.Context,
	conn swapnet.Conn,
	btcWallet bitcoin.Wallet,
	xmrClient monero.Client,
	store *db.Store,
	rec *db.Record,
	refundDestination mcrypto.Address,
	walletPassword string,
) (*Instance, error) {
	result, cfg, err := setup.FromCheckpoint(rec.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to restore swap from checkpoint: %w", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	i := &Instance{
		ctx:               cctx,
		cancel:            cancel,
		conn:              conn,
		btcWallet:         btcWallet,
		xmrClient:         xmrClient,
		store:             store,
		cfg:               cfg,
		result:            result,
		rec:               rec,
		refundDestination: refundDestination,
		walletPassword:    walletPassword,
	}

	if len(rec.TransferProof) > 0 {
		if err := json.Unmarshal(rec.TransferProof, &i.transferProof); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to restore persisted transfer proof: %w", err)
		}
	}

	return i, nil
}

// Run drives the seller's swap to completion, resuming from rec.Info.Status
// instead of always starting at waitForLock: a fresh Instance from
// NewInstance starts at SetupComplete and runs the full happy path, while
// one from NewInstanceFromRecord picks up wherever a previous process left
// off, skipping any step whose persisted status shows it already ran.
func (i *Instance) Run() error {
	defer i.cancel()

	switch i.rec.Info.Status {
	case pswap.Started, pswap.SetupComplete:
		if err := i.waitForLock(); err != nil {
			return err
		}
		fallthrough
	case pswap.BtcLockSeen:
		if err := i.lockMonero(); err != nil {
			return err
		}
		fallthrough
	case pswap.XmrLockTxSent:
		if err := i.waitForMoneroConfirmed(); err != nil {
			return err
		}
		fallthrough
	case pswap.XmrLockConfirmed:
		if err := i.sendTransferProof(); err != nil {
			return err
		}
		fallthrough
	case pswap.XmrLockProofSent:
		encSig, err := i.waitForEncSigOrCancel()
		if err != nil {
			return err
		}
		if encSig == nil {
			// the cancel/punish path was taken and already ran to completion.
			return nil
		}
		return i.redeem(encSig)

	case pswap.EncSigLearned:
		if i.result.RedeemEncSig == nil {
			return fmt.Errorf("cannot resume at %s: no redeem encsig was persisted", i.rec.Info.Status)
		}
		return i.redeem(i.result.RedeemEncSig)

	case pswap.BtcRedeemPublished:
		return i.waitForRedeemConfirmation()

	case pswap.CancelTimelockExpired, pswap.BtcCancelled:
		return i.raceRefundOrPunish(i.result.TxCancel.TxHash())

	case pswap.BtcPunishable:
		return i.punish()

	default:
		return fmt.Errorf("cannot resume swap from status %s", i.rec.Info.Status)
	}
}

// waitForLock blocks until TxLock has at least one confirmation, the
// seller's signal to start locking its own Monero, the
// SetupComplete -> BtcLockSeen transition.
func (i *Instance) waitForLock() error {
	deadline := time.Now().Add(lockMempoolTimeout)
	hash := i.result.LockTx.TxHash()

	for {
		confs, err := i.btcWallet.Confirmations(i.ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to check tx lock confirmations: %w", err)
		}
		if confs > 0 {
			break
		}
		if time.Now().After(deadline) {
			i.setStatus(pswap.SafelyAborted)
			return fmt.Errorf("tx lock did not confirm within %s", lockMempoolTimeout)
		}

		select {
		case <-i.ctx.Done():
			return i.ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	i.setStatus(pswap.BtcLockSeen)
	log.Info(color.New(color.Bold).Sprintf("tx lock confirmed: txid=%s", hash))
	return nil
}

// lockMonero sends the swap's XMR amount to the joint lock address,
// pinning a restore height conservatively at the moment of broadcast
// (the BtcLockSeen -> XmrLockTxSent transition).
func (i *Instance) lockMonero() error {
	height, err := i.xmrClient.Height(i.ctx)
	if err != nil {
		return fmt.Errorf("failed to read monero chain height: %w", err)
	}

	txHash, txKey, err := i.xmrClient.Transfer(i.ctx, i.result.LockAddress, 0, i.cfg.XMRAmount)
	if err != nil {
		return fmt.Errorf("failed to send monero lock transfer: %w", err)
	}

	i.transferProof = monero.TransferProof{TxHash: txHash, TxKey: txKey}

	blob, err := json.Marshal(i.transferProof)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer proof: %w", err)
	}

	i.rec.TransferProof = blob
	i.rec.RestoreHeight = height
	i.setStatus(pswap.XmrLockTxSent)

	log.Info(color.New(color.Bold).Sprintf("locked monero: amount=%d address=%s txid=%s", i.cfg.XMRAmount, i.result.LockAddress, txHash))
	return nil
}

// waitForMoneroConfirmed blocks until the lock transfer reaches conf_target
// confirmations (the XmrLockTxSent -> XmrLockConfirmed transition).
func (i *Instance) waitForMoneroConfirmed() error {
	if err := monero.VerifyTransferProof(
		i.ctx, i.xmrClient, i.transferProof, i.result.LockAddress, i.cfg.XMRAmount, i.cfg.XMRConfTarget, backoff.DefaultPolicy,
	); err != nil {
		return fmt.Errorf("monero lock failed to reach required confirmations: %w", err)
	}

	i.setStatus(pswap.XmrLockConfirmed)
	return nil
}

// sendTransferProof hands the buyer the (tx_hash, tx_key) pair and waits
// for their acknowledgement before moving on (the XmrLockConfirmed ->
// XmrLockProofSent transition).
func (i *Instance) sendTransferProof() error {
	msg := &message.TransferProof{TxHash: i.transferProof.TxHash, TxKey: i.transferProof.TxKey}
	if err := i.conn.Send(msg); err != nil {
		return fmt.Errorf("failed to send transfer proof: %w", err)
	}

	reply, err := i.conn.Receive()
	if err != nil {
		return fmt.Errorf("failed to receive transfer proof ack: %w", err)
	}
	if _, ok := reply.(*message.TransferProofAck); !ok {
		return fmt.Errorf("expected TransferProofAck, got %s", reply.Type())
	}

	i.setStatus(pswap.XmrLockProofSent)
	return nil
}

// waitForEncSigOrCancel races the buyer's EncSigNotification against T1
// maturing, preferring the happy path whenever both become available at
// roughly the same time: every time the cancel timelock check fires, it
// first gives the message channel one last non-blocking look before
// declaring the timelock expired and falling back to cancel.go. On the
// cancel path, it returns (nil, nil) once that sub-machine finishes.
func (i *Instance) waitForEncSigOrCancel() (*adaptor.EncryptedSignature, error) {
	msgCh := make(chan message.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		m, err := i.conn.Receive()
		if err != nil {
			errCh <- err
			return
		}
		msgCh <- m
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case m := <-msgCh:
			return i.handleEncSigNotification(m)
		case err := <-errCh:
			return nil, fmt.Errorf("peer connection lost while awaiting redeem encsig: %w", err)
		case <-ticker.C:
			expired, err := i.cancelTimelockExpired()
			if err != nil {
				return nil, err
			}
			if !expired {
				continue
			}

			select {
			case m := <-msgCh:
				return i.handleEncSigNotification(m)
			default:
			}

			if err := i.beginCancel(); err != nil {
				return nil, err
			}
			return nil, nil
		case <-i.ctx.Done():
			return nil, i.ctx.Err()
		}
	}
}

func (i *Instance) handleEncSigNotification(m message.Message) (*adaptor.EncryptedSignature, error) {
	notif, ok := m.(*message.EncSigNotification)
	if !ok {
		return nil, fmt.Errorf("expected EncSigNotification, got %s", m.Type())
	}

	encSig, err := adaptor.NewEncryptedSignatureFromBytes(notif.RedeemEncryptedSig)
	if err != nil {
		return nil, fmt.Errorf("invalid redeem encsig: %w", err)
	}
	if err := i.result.VerifyBuyerRedeemEncSig(encSig); err != nil {
		return nil, fmt.Errorf("redeem encsig failed to verify: %w", err)
	}

	i.result.RedeemEncSig = encSig
	i.persistCheckpoint()
	i.setStatus(pswap.EncSigLearned)
	return encSig, nil
}

// cancelTimelockExpired reports whether T1 has matured on TxLock's own
// confirmation height.
func (i *Instance) cancelTimelockExpired() (bool, error) {
	lockHeight, err := i.btcWallet.ConfirmedHeight(i.ctx, i.result.LockTx.TxHash())
	if err != nil {
		return false, fmt.Errorf("failed to read tx lock confirmed height: %w", err)
	}
	if lockHeight == 0 {
		return false, nil
	}

	tip, err := i.btcWallet.BlockHeight(i.ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read chain tip: %w", err)
	}

	return bitcoin.ClassifyLockTimelock(lockHeight, tip, i.cfg.CancelTimelock) != bitcoin.StageNone, nil
}

// redeem decrypts the buyer's pre-signature, completes TxRedeem with the
// seller's own plain signature, and broadcasts it (the EncSigLearned ->
// BtcRedeemed transition).
func (i *Instance) redeem(buyerEncSig *adaptor.EncryptedSignature) error {
	buyerSig := adaptor.Decrypt(i.result.Own.SpendKeyShareBTC(), buyerEncSig)
	sellerSig := i.result.Own.TxLockKey.Sign(i.result.RedeemSigHash)

	buyerSigBytes := buyerSig.Bytes()
	sellerSigBytes := sellerSig.Bytes()
	buyerPub := i.result.BuyerTxLockKey.Compressed()
	sellerPub := i.result.SellerTxLockKey.Compressed()

	tx := i.result.TxRedeem
	bitcoin.FinalizeTxRedeem(tx, i.result.LockOutput.RedeemScript, buyerPub[:], buyerSigBytes[:], sellerPub[:], sellerSigBytes[:])

	hash, err := i.btcWallet.BroadcastTx(i.ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to broadcast tx redeem: %w", err)
	}

	i.rec.RedeemTxID = hash.String()
	i.setStatus(pswap.BtcRedeemPublished)

	if err := i.waitForConfirmation(hash); err != nil {
		return err
	}

	i.setStatus(pswap.BtcRedeemed)
	if err := i.store.Complete(i.rec); err != nil {
		log.Warnf("failed to mark swap complete: %s", err)
	}

	log.Info(color.New(color.Bold).Sprintf("swap complete: redeemed bitcoin, txid=%s", hash))
	return nil
}

// waitForRedeemConfirmation resumes a swap found already at
// BtcRedeemPublished: tx redeem was broadcast by an earlier process, so
// this only needs to wait for it to confirm and mark the swap complete.
func (i *Instance) waitForRedeemConfirmation() error {
	hash, err := chainhash.NewHashFromStr(i.rec.RedeemTxID)
	if err != nil {
		return fmt.Errorf("failed to parse persisted redeem txid: %w", err)
	}

	if err := i.waitForConfirmation(*hash); err != nil {
		return err
	}

	i.setStatus(pswap.BtcRedeemed)
	if err := i.store.Complete(i.rec); err != nil {
		log.Warnf("failed to mark swap complete: %s", err)
	}

	log.Info(color.New(color.Bold).Sprintf("swap complete: redeemed bitcoin, txid=%s", hash))
	return nil
}

// waitForConfirmation blocks until hash has at least one confirmation.
func (i *Instance) waitForConfirmation(hash chainhash.Hash) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		confs, err := i.btcWallet.Confirmations(i.ctx, hash)
		if err == nil && confs > 0 {
			return nil
		}

		select {
		case <-i.ctx.Done():
			return i.ctx.Err()
		case <-ticker.C:
		}
	}
}
